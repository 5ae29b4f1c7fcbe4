// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linker

import (
	"errors"

	"github.com/bofld/bofld/internal/archive"
	"github.com/bofld/bofld/internal/beaconapi"
	"github.com/bofld/bofld/internal/coff"
)

// apiSource resolves a symbol name to an import record. found is false
// when the source simply does not provide the symbol; err reports a
// malformed source.
type apiSource interface {
	Path() string
	ExtractSymbol(symbol string) (imp *coff.ImportMember, found bool, err error)
}

// rosterAPI adapts the built-in Beacon roster.
type rosterAPI struct {
	roster *beaconapi.Roster
}

func (r *rosterAPI) Path() string {
	return r.roster.Path()
}

func (r *rosterAPI) ExtractSymbol(symbol string) (*coff.ImportMember, bool, error) {
	imp, found := r.roster.ExtractSymbol(symbol)
	return imp, found, nil
}

// archiveAPI adapts an opened archive acting as an API table.
type archiveAPI struct {
	path    string
	archive *archive.Archive
}

func (a *archiveAPI) Path() string {
	return a.path
}

func (a *archiveAPI) ExtractSymbol(symbol string) (*coff.ImportMember, bool, error) {
	imp, err := a.archive.ExtractImport(symbol)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return imp, true, nil
}
