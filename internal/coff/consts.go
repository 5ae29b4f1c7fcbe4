// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package coff

// Machine values recognized in file headers and short-form imports.
const (
	ImageFileMachineUnknown uint16 = 0x0
	ImageFileMachineI386    uint16 = 0x14c
	ImageFileMachineAmd64   uint16 = 0x8664
)

// File header characteristics.
const (
	ImageFileLineNumsStripped uint16 = 0x0004
)

// Section characteristics.
const (
	ImageScnTypeNoPad            uint32 = 0x00000008
	ImageScnCntCode              uint32 = 0x00000020
	ImageScnCntInitializedData   uint32 = 0x00000040
	ImageScnCntUninitializedData uint32 = 0x00000080
	ImageScnLnkOther             uint32 = 0x00000100
	ImageScnLnkInfo              uint32 = 0x00000200
	ImageScnLnkRemove            uint32 = 0x00000800
	ImageScnLnkComdat            uint32 = 0x00001000
	ImageScnGPRel                uint32 = 0x00008000
	ImageScnMemPurgeable         uint32 = 0x00020000
	ImageScnMemLocked            uint32 = 0x00040000
	ImageScnMemPreload           uint32 = 0x00080000
	ImageScnLnkNRelocOvfl        uint32 = 0x01000000
	ImageScnMemDiscardable       uint32 = 0x02000000
	ImageScnMemNotCached         uint32 = 0x04000000
	ImageScnMemNotPaged          uint32 = 0x08000000
	ImageScnMemShared            uint32 = 0x10000000
	ImageScnMemExecute           uint32 = 0x20000000
	ImageScnMemRead              uint32 = 0x40000000
	ImageScnMemWrite             uint32 = 0x80000000
)

// The 4-bit section alignment field sits at bits 20-23 and encodes
// log2(align)+1, so 0x1 means 1-byte alignment and 0xE means 8192.
const (
	SectionAlignShift = 20
	sectionAlignMask  = uint32(0xf) << SectionAlignShift

	ImageScnAlign1Bytes    uint32 = 0x1 << SectionAlignShift
	ImageScnAlign2Bytes    uint32 = 0x2 << SectionAlignShift
	ImageScnAlign4Bytes    uint32 = 0x3 << SectionAlignShift
	ImageScnAlign8Bytes    uint32 = 0x4 << SectionAlignShift
	ImageScnAlign16Bytes   uint32 = 0x5 << SectionAlignShift
	ImageScnAlign32Bytes   uint32 = 0x6 << SectionAlignShift
	ImageScnAlign64Bytes   uint32 = 0x7 << SectionAlignShift
	ImageScnAlign128Bytes  uint32 = 0x8 << SectionAlignShift
	ImageScnAlign256Bytes  uint32 = 0x9 << SectionAlignShift
	ImageScnAlign512Bytes  uint32 = 0xa << SectionAlignShift
	ImageScnAlign1024Bytes uint32 = 0xb << SectionAlignShift
	ImageScnAlign2048Bytes uint32 = 0xc << SectionAlignShift
	ImageScnAlign4096Bytes uint32 = 0xd << SectionAlignShift
	ImageScnAlign8192Bytes uint32 = 0xe << SectionAlignShift
)

// Alignment returns the byte alignment encoded in characteristics, or
// zero if the alignment field is unset.
func Alignment(characteristics uint32) uint32 {
	field := (characteristics & sectionAlignMask) >> SectionAlignShift
	if field == 0 {
		return 0
	}
	return 1 << (field - 1)
}

// ZeroAlign returns characteristics with the alignment field cleared.
func ZeroAlign(characteristics uint32) uint32 {
	return characteristics &^ sectionAlignMask
}

// AlignCharacteristic encodes the byte alignment align (a power of two)
// into the characteristics alignment field.
func AlignCharacteristic(align uint32) uint32 {
	if align == 0 {
		return 0
	}
	log2 := uint32(0)
	for v := align; v > 1; v >>= 1 {
		log2++
	}
	return (log2 + 1) << SectionAlignShift
}

// Special symbol section numbers.
const (
	ImageSymUndefined int32 = 0
	ImageSymAbsolute  int32 = -1
	ImageSymDebug     int32 = -2
)

// Symbol storage classes.
const (
	ImageSymClassEndOfFunction   uint8 = 0xff
	ImageSymClassNull            uint8 = 0
	ImageSymClassAutomatic       uint8 = 1
	ImageSymClassExternal        uint8 = 2
	ImageSymClassStatic          uint8 = 3
	ImageSymClassRegister        uint8 = 4
	ImageSymClassExternalDef     uint8 = 5
	ImageSymClassLabel           uint8 = 6
	ImageSymClassUndefinedLabel  uint8 = 7
	ImageSymClassMemberOfStruct  uint8 = 8
	ImageSymClassArgument        uint8 = 9
	ImageSymClassStructTag       uint8 = 10
	ImageSymClassMemberOfUnion   uint8 = 11
	ImageSymClassUnionTag        uint8 = 12
	ImageSymClassTypeDefinition  uint8 = 13
	ImageSymClassUndefinedStatic uint8 = 14
	ImageSymClassEnumTag         uint8 = 15
	ImageSymClassMemberOfEnum    uint8 = 16
	ImageSymClassRegisterParam   uint8 = 17
	ImageSymClassBitField        uint8 = 18
	ImageSymClassBlock           uint8 = 100
	ImageSymClassFunction        uint8 = 101
	ImageSymClassEndOfStruct     uint8 = 102
	ImageSymClassFile            uint8 = 103
	ImageSymClassSection         uint8 = 104
	ImageSymClassWeakExternal    uint8 = 105
	ImageSymClassClrToken        uint8 = 107
)

// Symbol types.
const (
	ImageSymTypeNull uint16 = 0
)

// COMDAT selection values carried in auxiliary section records.
const (
	ImageComdatSelectNoDuplicates uint8 = 1
	ImageComdatSelectAny          uint8 = 2
	ImageComdatSelectSameSize     uint8 = 3
	ImageComdatSelectExactMatch   uint8 = 4
	ImageComdatSelectAssociative  uint8 = 5
	ImageComdatSelectLargest      uint8 = 6
)

// Relocation types used by the linker.
const (
	ImageRelAmd64Addr32NB uint16 = 0x0003
	ImageRelAmd64Rel32    uint16 = 0x0004
	ImageRelI386Dir32     uint16 = 0x0006
	ImageRelI386Rel32     uint16 = 0x0014
)

// On-disk record sizes.
const (
	FileHeaderSize    = 20
	SectionHeaderSize = 40
	SymbolSize        = 18
	RelocationSize    = 10
)
