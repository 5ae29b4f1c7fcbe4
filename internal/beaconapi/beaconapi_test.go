// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package beaconapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bofld/bofld/internal/coff"
)

func TestExtractPlainName(t *testing.T) {
	r := NewRoster(coff.ImageFileMachineAmd64)

	imp, found := r.ExtractSymbol("BeaconPrintf")
	require.True(t, found)
	assert.Equal(t, "BeaconPrintf", imp.Symbol)
	assert.Equal(t, DLL, imp.DLL)
	assert.Equal(t, coff.ImportCode, imp.Type)
	assert.Equal(t, "BeaconPrintf", imp.Import.Name)
	assert.Equal(t, coff.ImageFileMachineAmd64, imp.Machine)
}

func TestExtractImpPrefix(t *testing.T) {
	r := NewRoster(coff.ImageFileMachineAmd64)

	imp, found := r.ExtractSymbol("__imp_BeaconOutput")
	require.True(t, found)
	assert.Equal(t, "BeaconOutput", imp.Symbol)
}

func TestExtract32BitDecorations(t *testing.T) {
	r := NewRoster(coff.ImageFileMachineI386)

	// The 32-bit target strips the __imp__ decoration...
	imp, found := r.ExtractSymbol("__imp__BeaconDataParse")
	require.True(t, found)
	assert.Equal(t, "BeaconDataParse", imp.Symbol)

	// ...and the plain cdecl underscore.
	imp, found = r.ExtractSymbol("_BeaconDataParse")
	require.True(t, found)
	assert.Equal(t, "BeaconDataParse", imp.Symbol)
}

func TestExtractMiss(t *testing.T) {
	r := NewRoster(coff.ImageFileMachineAmd64)

	_, found := r.ExtractSymbol("GetProcAddress")
	assert.False(t, found)

	// The 64-bit roster does not strip the 32-bit decoration.
	_, found = r.ExtractSymbol("__imp__BeaconPrintf")
	assert.False(t, found)
}
