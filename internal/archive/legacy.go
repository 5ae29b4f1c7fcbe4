// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/bofld/bofld/internal/coff"
)

var (
	le = binary.LittleEndian
	be = binary.BigEndian
)

// errNotLegacyImport marks a COFF member that does not have the legacy
// import symbol member shape; callers fall back to treating it as a
// plain object.
var errNotLegacyImport = errors.New("not a legacy import library symbol member")

const (
	ilt64OrdinalBit = uint64(1) << 63
	ilt32OrdinalBit = uint64(1) << 31

	iltOrdinalMask = uint64(0xffff)
)

// legacySymbolMember is the parsed 7-section member carrying one public
// import symbol.
type legacySymbolMember struct {
	publicSymbol string
	importName   coff.ImportName
	typ          coff.ImportType
	headSymbol   string
}

// parseLegacySymbolMember recognizes the dlltool-style symbol member: 7
// sections with the `.idata$7` back-reference section present.
func parseLegacySymbolMember(obj *coff.File) (*legacySymbolMember, error) {
	if len(obj.Sections()) != 7 {
		return nil, errNotLegacyImport
	}
	if obj.SectionByName(".idata$7") == nil {
		return nil, errNotLegacyImport
	}

	// The public symbol is the one external defined outside the
	// .idata group.
	var public *coff.Symbol
	symbols := obj.Symbols()
	for i := range symbols {
		sym := &symbols[i]
		if sym.StorageClass != coff.ImageSymClassExternal || !sym.IsDefinition() {
			continue
		}
		section, err := obj.SectionByIndex(int(sym.SectionNumber))
		if err != nil {
			continue
		}
		if !strings.HasPrefix(section.Name, ".idata$") {
			public = sym
			break
		}
	}
	if public == nil {
		return nil, errors.New("public symbol is missing")
	}

	publicSection, err := obj.SectionByIndex(int(public.SectionNumber))
	if err != nil {
		return nil, err
	}

	var typ coff.ImportType
	switch {
	case publicSection.Characteristics&coff.ImageScnCntCode != 0:
		typ = coff.ImportCode
	case publicSection.Characteristics&coff.ImageScnMemRead != 0 &&
		publicSection.Characteristics&coff.ImageScnMemWrite == 0:
		typ = coff.ImportConst
	default:
		typ = coff.ImportData
	}

	// The one undefined external is the back reference into the head
	// member.
	var headSymbol string
	for i := range symbols {
		sym := &symbols[i]
		if sym.StorageClass == coff.ImageSymClassExternal && sym.IsUndefined() {
			headSymbol = sym.Name
			break
		}
	}
	if headSymbol == "" {
		return nil, errors.New("'_head_*' symbol is missing")
	}

	ilt := obj.SectionByName(".idata$4")
	if ilt == nil {
		return nil, errors.New("import lookup table is missing")
	}

	var entry uint64
	var ordinal bool
	if obj.Is64() {
		if len(ilt.Data) < 8 {
			return nil, errors.New("import lookup table data is malformed")
		}
		entry = le.Uint64(ilt.Data[:8])
		ordinal = entry&ilt64OrdinalBit != 0
	} else {
		if len(ilt.Data) < 4 {
			return nil, errors.New("import lookup table data is malformed")
		}
		entry = uint64(le.Uint32(ilt.Data[:4]))
		ordinal = entry&ilt32OrdinalBit != 0
	}

	member := &legacySymbolMember{
		publicSymbol: public.Name,
		typ:          typ,
		headSymbol:   headSymbol,
	}

	if ordinal {
		member.importName = coff.ImportName{Ordinal: uint16(entry & iltOrdinalMask), ByOrdinal: true}
	} else {
		names := obj.SectionByName(".idata$6")
		if names == nil {
			return nil, errors.New("import lookup table is missing the name table section")
		}
		if len(names.Data) < 2 {
			return nil, errors.New("import lookup table name section is malformed")
		}
		// Skip the two-byte hint in front of the name.
		name := names.Data[2:]
		if end := bytes.IndexByte(name, 0); end >= 0 {
			name = name[:end]
		}
		member.importName = coff.ImportName{Name: string(name)}
	}

	return member, nil
}

// parseLegacyHeadMember recognizes the 6-section head member and
// returns the `*_iname` symbol naming the tail member.
func parseLegacyHeadMember(obj *coff.File) (string, error) {
	if len(obj.Sections()) != 6 {
		return "", errors.New("invalid legacy import library head member")
	}
	if obj.SectionByName(".idata$2") == nil {
		return "", errors.New("invalid legacy import library head member")
	}

	symbols := obj.Symbols()
	for i := range symbols {
		sym := &symbols[i]
		if sym.IsGlobal() && sym.IsUndefined() && strings.HasSuffix(sym.Name, "_iname") {
			return sym.Name, nil
		}
	}
	return "", errors.New("'*_iname' symbol for the linked tail member is missing")
}

// parseLegacyTailMember recognizes the 6-section tail member and reads
// the DLL name out of its `.idata$7` section.
func parseLegacyTailMember(obj *coff.File) (string, error) {
	if len(obj.Sections()) != 6 {
		return "", errors.New("invalid legacy import library tail member COFF")
	}
	if obj.SectionByName(".idata$4") == nil {
		return "", errors.New("invalid legacy import library tail member COFF")
	}

	symbols := obj.Symbols()
	for i := range symbols {
		sym := &symbols[i]
		if !sym.IsGlobal() || !sym.IsDefinition() || !strings.HasSuffix(sym.Name, "_iname") {
			continue
		}
		section, err := obj.SectionByIndex(int(sym.SectionNumber))
		if err != nil || section.Name != ".idata$7" {
			return "", errors.New("section with the '*_iname' symbol is not valid")
		}
		dll := section.Data
		if end := bytes.IndexByte(dll, 0); end >= 0 {
			dll = dll[:end]
		}
		return string(dll), nil
	}
	return "", errors.New("'*_iname' symbol is missing")
}

// parseLegacyImport chains a symbol member to its head and tail members
// to recover the DLL name, caching the `_head_*` to DLL mapping.
func (a *Archive) parseLegacyImport(memberName string, obj *coff.File) (*coff.ImportMember, error) {
	symbolMember, err := parseLegacySymbolMember(obj)
	if err != nil {
		if errors.Is(err, errNotLegacyImport) {
			return nil, err
		}
		return nil, &MemberError{Member: memberName, Err: err}
	}

	dll, ok := a.legacyImports[symbolMember.headSymbol]
	if !ok {
		headOffset, found := a.index.find(symbolMember.headSymbol)
		if !found {
			return nil, &MemberError{Member: memberName,
				Err: fmt.Errorf("legacy import library is missing symbol '%s'", symbolMember.headSymbol)}
		}
		headMember, err := a.MemberAtOffset(headOffset)
		if err != nil {
			return nil, &MemberError{Member: memberName, Err: err}
		}
		headCoff, err := coff.Parse(headMember.Data)
		if err != nil {
			return nil, &MemberError{Member: headMember.Name, Err: err}
		}
		tailSymbol, err := parseLegacyHeadMember(headCoff)
		if err != nil {
			return nil, &MemberError{Member: headMember.Name, Err: err}
		}

		tailOffset, found := a.index.find(tailSymbol)
		if !found {
			return nil, &MemberError{Member: headMember.Name,
				Err: fmt.Errorf("legacy import library is missing symbol '%s'", tailSymbol)}
		}
		tailMember, err := a.MemberAtOffset(tailOffset)
		if err != nil {
			return nil, &MemberError{Member: headMember.Name, Err: err}
		}
		tailCoff, err := coff.Parse(tailMember.Data)
		if err != nil {
			return nil, &MemberError{Member: tailMember.Name, Err: err}
		}
		dll, err = parseLegacyTailMember(tailCoff)
		if err != nil {
			return nil, &MemberError{Member: tailMember.Name, Err: err}
		}

		a.legacyImports[symbolMember.headSymbol] = dll
	}

	return &coff.ImportMember{
		Machine: obj.Machine(),
		Symbol:  symbolMember.publicSymbol,
		DLL:     dll,
		Import:  symbolMember.importName,
		Type:    symbolMember.typ,
	}, nil
}
