// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linker

import (
	"errors"
	"strings"
)

// ErrNoInput is returned when a link was requested with no input files.
var ErrNoInput = errors.New("no input files")

// ErrArchitectureDetect is returned when no machine was forced and none
// of the inputs yielded one.
var ErrArchitectureDetect = errors.New("could not detect architecture")

// PathError attributes an error to an input file and, for archive
// members, the member inside it.
type PathError struct {
	Path   string
	Member string
	Err    error
}

func (e *PathError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Path)
	if e.Member != "" {
		sb.WriteString("(")
		sb.WriteString(e.Member)
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// SetupErrors batches every error found while ingesting inputs, opening
// libraries and initializing the API source.
type SetupErrors struct {
	Errors []error
}

func (e *SetupErrors) Error() string {
	return joinLines(e.Errors, "\n")
}

// SymbolErrors batches the undefined, duplicate and multiply-defined
// symbol errors found after resolution.
type SymbolErrors struct {
	Errors []error
}

func (e *SymbolErrors) Error() string {
	return joinLines(e.Errors, "\n")
}

func joinLines(errs []error, sep string) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, sep)
}

// LibraryNotFoundError reports a `.drectve`-discovered library that the
// searcher could not locate.
type LibraryNotFoundError struct {
	Name string
}

func (e *LibraryNotFoundError) Error() string {
	return "unable to find library " + e.Name
}

// APINotFoundError reports a custom API archive that could not be
// located.
type APINotFoundError struct {
	Name string
}

func (e *APINotFoundError) Error() string {
	return "unable to find custom API '" + e.Name + "'"
}
