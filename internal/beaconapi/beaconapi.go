// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package beaconapi holds the built-in Beacon API roster used to
// resolve host-provided symbols when no custom API archive is given.
package beaconapi

import (
	"strings"

	"github.com/bofld/bofld/internal/coff"
)

// DLL is the library name recorded for resolved API imports.
const DLL = "Beacon API"

// Symbols lists the Beacon API function names, sorted roughly by how
// often real BOF sources reference them.
var Symbols = [...]string{
	"BeaconPrintf",
	"BeaconDataParse",
	"BeaconOutput",
	"BeaconDataExtract",
	"BeaconDataInt",
	"BeaconGetSpawnTo",
	"BeaconCleanupProcess",
	"BeaconSpawnTemporaryProcess",
	"BeaconDataShort",
	"toWideChar",
	"BeaconUseToken",
	"BeaconGetValue",
	"BeaconRemoveValue",
	"BeaconInjectProcess",
	"BeaconDataLength",
	"BeaconAddValue",
	"BeaconRevertToken",
	"BeaconOpenThread",
	"BeaconUnmapViewOfFile",
	"BeaconFormatInt",
	"BeaconGetSyscallInformation",
	"BeaconDataStoreProtectItem",
	"BeaconFormatFree",
	"BeaconDataStoreUnprotectItem",
	"BeaconInformation",
	"BeaconDataStoreMaxEntries",
	"BeaconDuplicateHandle",
	"BeaconOpenProcess",
	"BeaconDataStoreGetItem",
	"BeaconEnableBeaconGate",
	"BeaconVirtualQuery",
	"BeaconWriteProcessMemory",
	"BeaconSetThreadContext",
	"BeaconVirtualProtect",
	"BeaconFormatAppend",
	"BeaconDisableBeaconGate",
	"BeaconResumeThread",
	"BeaconDataPtr",
	"BeaconGetThreadContext",
	"BeaconIsAdmin",
	"BeaconVirtualAlloc",
	"BeaconCloseHandle",
	"BeaconReadProcessMemory",
	"BeaconFormatReset",
	"BeaconVirtualAllocEx",
	"BeaconFormatPrintf",
	"BeaconFormatToString",
	"BeaconInjectTemporaryProcess",
	"BeaconVirtualFree",
	"BeaconGetCustomUserData",
	"BeaconVirtualProtectEx",
	"BeaconFormatAlloc",
}

// Roster resolves symbols against the fixed API list for one target
// machine.
type Roster struct {
	machine uint16
}

// NewRoster returns a Roster for the given machine value.
func NewRoster(machine uint16) *Roster {
	return &Roster{machine: machine}
}

// Path implements the API source path used in error messages.
func (r *Roster) Path() string {
	return DLL
}

// ExtractSymbol resolves symbol to an import record, or reports
// (nil, false) when the roster does not contain it. The 32-bit target
// strips the `__imp__` decoration, or failing that a bare leading
// underscore, before matching.
func (r *Roster) ExtractSymbol(symbol string) (*coff.ImportMember, bool) {
	unprefixed := symbol
	if r.machine == coff.ImageFileMachineI386 {
		if stripped, ok := strings.CutPrefix(symbol, "__imp__"); ok {
			unprefixed = stripped
		} else {
			unprefixed = strings.TrimPrefix(symbol, "_")
		}
	} else {
		unprefixed = strings.TrimPrefix(symbol, "__imp_")
	}

	for _, contained := range Symbols {
		if contained == unprefixed {
			return &coff.ImportMember{
				Machine: r.machine,
				Symbol:  contained,
				DLL:     DLL,
				Import:  coff.ImportName{Name: contained},
				Type:    coff.ImportCode,
			}, true
		}
	}
	return nil, false
}
