// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package archive reads `!<arch>` import libraries and static archives:
// member iteration, GNU and MSVC symbol maps, long names, and decoding
// of archive members into COFF objects or import records.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bofld/bofld/internal/coff"
)

const (
	// Magic is the global archive header.
	Magic = "!<arch>\n"

	// ThinMagic marks a thin archive, which carries no member data.
	ThinMagic = "!<thin>\n"

	memberHeaderSize = 60
)

// Errors reported while opening an archive.
var (
	ErrNotArchive  = errors.New("missing !<arch> header")
	ErrThinArchive = errors.New("thin archives are not supported")
	ErrNoSymbolMap = errors.New("archive is missing a symbol table")

	// ErrNotFound is returned by symbol lookups that miss.
	ErrNotFound = errors.New("member for symbol does not exist")
)

// Member is one archive member: its resolved name and data slice.
type Member struct {
	Name string
	Data []byte

	// Offset of the member header from the start of the archive.
	Offset uint32
}

// Archive is a parsed `!<arch>` file. Member data borrows the input
// buffer.
type Archive struct {
	data []byte

	// gnuMap and msvcMap are the contents of the first and (if present)
	// second linker members, sliced from data.
	gnuMap  []byte
	msvcMap []byte

	longNames []byte

	// firstOffset is where regular members begin.
	firstOffset uint32

	index symbolIndex

	// legacyImports caches `_head_*` symbol names to DLL names resolved
	// through head and tail members.
	legacyImports map[string]string
}

// Parse opens an archive over data. The returned Archive borrows data.
func Parse(data []byte) (*Archive, error) {
	if bytes.HasPrefix(data, []byte(ThinMagic)) {
		return nil, ErrThinArchive
	}
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return nil, ErrNotArchive
	}

	a := &Archive{data: data, legacyImports: make(map[string]string)}

	offset := uint32(len(Magic))
	sawRegular := false
	for offset+memberHeaderSize <= uint32(len(data)) && !sawRegular {
		name, memberData, next, err := a.memberAt(offset)
		if err != nil {
			return nil, err
		}
		switch {
		case name == "/" && a.gnuMap == nil:
			a.gnuMap = memberData
		case name == "/" && a.msvcMap == nil:
			a.msvcMap = memberData
		case name == "//":
			a.longNames = memberData
		default:
			sawRegular = true
			a.firstOffset = offset
			continue
		}
		offset = next
		a.firstOffset = next
	}

	if a.gnuMap == nil {
		return nil, ErrNoSymbolMap
	}

	it, err := a.newSymbolIterator()
	if err != nil {
		return nil, err
	}
	a.index = symbolIndex{
		cache: make(map[string]uint32, it.remaining()),
		iter:  it,
	}

	return a, nil
}

// memberAt parses the member header at offset. It returns the raw
// header name (long names unresolved), the member data, and the offset
// of the following member.
func (a *Archive) memberAt(offset uint32) (string, []byte, uint32, error) {
	if offset+memberHeaderSize > uint32(len(a.data)) {
		return "", nil, 0, fmt.Errorf("member header at %#x extends past end of archive", offset)
	}
	hdr := a.data[offset : offset+memberHeaderSize]
	if string(hdr[58:60]) != "`\n" {
		return "", nil, 0, fmt.Errorf("member header at %#x has invalid terminator", offset)
	}

	name := strings.TrimRight(string(hdr[0:16]), " ")
	sizeField := strings.TrimSpace(string(hdr[48:58]))
	size, err := strconv.ParseUint(sizeField, 10, 32)
	if err != nil {
		return "", nil, 0, fmt.Errorf("member header at %#x has invalid size %q", offset, sizeField)
	}

	start := offset + memberHeaderSize
	end := start + uint32(size)
	if end > uint32(len(a.data)) {
		return "", nil, 0, fmt.Errorf("member at %#x extends past end of archive", offset)
	}

	// Members are aligned to even offsets.
	next := end + end%2

	return name, a.data[start:end], next, nil
}

// MemberAtOffset resolves the member whose header starts at offset, as
// recorded in the symbol map.
func (a *Archive) MemberAtOffset(offset uint32) (Member, error) {
	rawName, data, _, err := a.memberAt(offset)
	if err != nil {
		return Member{}, err
	}

	name, err := a.resolveMemberName(rawName)
	if err != nil {
		return Member{}, err
	}

	return Member{Name: name, Data: data, Offset: offset}, nil
}

func (a *Archive) resolveMemberName(raw string) (string, error) {
	if strings.HasPrefix(raw, "/") && raw != "/" && raw != "//" {
		offset, err := strconv.Atoi(raw[1:])
		if err != nil {
			return "", fmt.Errorf("invalid long member name reference %q", raw)
		}
		if offset >= len(a.longNames) {
			return "", fmt.Errorf("member name offset %d outside long names member", offset)
		}
		rest := a.longNames[offset:]
		if end := bytes.IndexAny(rest, "\n\x00"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSuffix(string(rest), "/"), nil
	}
	return strings.TrimSuffix(raw, "/"), nil
}

// Members iterates the regular members in archive order.
func (a *Archive) Members() ([]Member, error) {
	var members []Member
	offset := a.firstOffset
	for offset+memberHeaderSize <= uint32(len(a.data)) {
		rawName, data, next, err := a.memberAt(offset)
		if err != nil {
			return nil, err
		}
		name, err := a.resolveMemberName(rawName)
		if err != nil {
			return nil, err
		}
		members = append(members, Member{Name: name, Data: data, Offset: offset})
		offset = next
	}
	return members, nil
}

// symbolIterator walks the archive's native symbol map lazily.
type symbolIterator struct {
	// GNU first linker member: big-endian offsets followed by names.
	gnuOffsets []byte
	gnuNames   []byte

	// MSVC second linker member: member offsets, symbol indices, names.
	msvcOffsets []byte
	msvcIndices []byte
	msvcNames   []byte

	count uint32
	pos   uint32
}

func (a *Archive) newSymbolIterator() (*symbolIterator, error) {
	if a.msvcMap != nil {
		if len(a.msvcMap) < 4 {
			return nil, fmt.Errorf("second linker member truncated")
		}
		nMembers := le.Uint32(a.msvcMap[0:4])
		offsetsEnd := 4 + nMembers*4
		if uint32(len(a.msvcMap)) < offsetsEnd+4 {
			return nil, fmt.Errorf("second linker member truncated")
		}
		nSymbols := le.Uint32(a.msvcMap[offsetsEnd : offsetsEnd+4])
		indicesEnd := offsetsEnd + 4 + nSymbols*2
		if uint32(len(a.msvcMap)) < indicesEnd {
			return nil, fmt.Errorf("second linker member truncated")
		}
		return &symbolIterator{
			msvcOffsets: a.msvcMap[4:offsetsEnd],
			msvcIndices: a.msvcMap[offsetsEnd+4 : indicesEnd],
			msvcNames:   a.msvcMap[indicesEnd:],
			count:       nSymbols,
		}, nil
	}

	if len(a.gnuMap) < 4 {
		return nil, fmt.Errorf("first linker member truncated")
	}
	count := be.Uint32(a.gnuMap[0:4])
	offsetsEnd := 4 + count*4
	if uint32(len(a.gnuMap)) < offsetsEnd {
		return nil, fmt.Errorf("first linker member truncated")
	}
	return &symbolIterator{
		gnuOffsets: a.gnuMap[4:offsetsEnd],
		gnuNames:   a.gnuMap[offsetsEnd:],
		count:      count,
	}, nil
}

func (it *symbolIterator) remaining() int {
	return int(it.count - it.pos)
}

// next returns the next (name, member offset) pair, or ok=false when
// the map is exhausted.
func (it *symbolIterator) next() (name string, offset uint32, ok bool) {
	if it.pos >= it.count {
		return "", 0, false
	}
	i := it.pos
	it.pos++

	if it.msvcNames != nil {
		end := bytes.IndexByte(it.msvcNames, 0)
		if end < 0 {
			return "", 0, false
		}
		name = string(it.msvcNames[:end])
		it.msvcNames = it.msvcNames[end+1:]

		index := le.Uint16(it.msvcIndices[i*2 : i*2+2])
		if index == 0 || uint32(index)*4 > uint32(len(it.msvcOffsets)) {
			return "", 0, false
		}
		offset = le.Uint32(it.msvcOffsets[(index-1)*4 : index*4])
		return name, offset, true
	}

	end := bytes.IndexByte(it.gnuNames, 0)
	if end < 0 {
		return "", 0, false
	}
	name = string(it.gnuNames[:end])
	it.gnuNames = it.gnuNames[end+1:]
	offset = be.Uint32(it.gnuOffsets[i*4 : i*4+4])
	return name, offset, true
}

// symbolIndex caches symbol-map entries as the iterator advances, so
// repeat lookups during resolution stay amortized linear in the number
// of distinct names.
type symbolIndex struct {
	cache map[string]uint32
	iter  *symbolIterator
}

func (idx *symbolIndex) find(symbol string) (uint32, bool) {
	if offset, ok := idx.cache[symbol]; ok {
		return offset, true
	}
	for {
		name, offset, ok := idx.iter.next()
		if !ok {
			return 0, false
		}
		if _, seen := idx.cache[name]; !seen {
			idx.cache[name] = offset
		}
		if name == symbol {
			return offset, true
		}
	}
}

// ExtractedMember is a decoded archive member for one symbol: either a
// full COFF object or an import record.
type ExtractedMember struct {
	// Name of the member inside the archive.
	Name string

	// Coff is non-nil when the member is a relocatable object.
	Coff *coff.File

	// Import is non-nil when the member decodes to an import record.
	Import *coff.ImportMember
}

// ExtractSymbol locates the member providing symbol through the symbol
// map and decodes it.
func (a *Archive) ExtractSymbol(symbol string) (*ExtractedMember, error) {
	offset, ok := a.index.find(symbol)
	if !ok {
		return nil, ErrNotFound
	}

	member, err := a.MemberAtOffset(offset)
	if err != nil {
		return nil, err
	}

	return a.decodeMember(member)
}

func (a *Archive) decodeMember(member Member) (*ExtractedMember, error) {
	if coff.IsImportHeader(member.Data) {
		imp, err := coff.ParseImport(member.Data)
		if err != nil {
			return nil, &MemberError{Member: member.Name, Err: err}
		}
		return &ExtractedMember{Name: member.Name, Import: imp}, nil
	}

	obj, err := coff.Parse(member.Data)
	if err != nil {
		return nil, &MemberError{Member: member.Name, Err: err}
	}

	imp, err := a.parseLegacyImport(member.Name, obj)
	switch {
	case err == nil:
		return &ExtractedMember{Name: member.Name, Import: imp}, nil
	case errors.Is(err, errNotLegacyImport):
		return &ExtractedMember{Name: member.Name, Coff: obj}, nil
	default:
		return nil, err
	}
}

// ExtractImport decodes the member for symbol strictly as an import
// record; a plain COFF member is an error. This is the lookup used when
// the archive acts as an API table.
func (a *Archive) ExtractImport(symbol string) (*coff.ImportMember, error) {
	extracted, err := a.ExtractSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if extracted.Import == nil {
		return nil, &MemberError{Member: extracted.Name, Err: errors.New("invalid COFF import library member")}
	}
	return extracted.Import, nil
}

// MemberError is an error decoding a particular archive member.
type MemberError struct {
	Member string
	Err    error
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("could not parse member %s: %v", e.Member, e.Err)
}

func (e *MemberError) Unwrap() error {
	return e.Err
}
