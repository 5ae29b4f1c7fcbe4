// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package linkgraph

import (
	"path/filepath"
	"strings"
)

// CoffNode identifies one input by its file path and, for archive
// members, the member path inside it. Immutable after creation.
type CoffNode struct {
	filePath   string
	memberPath string
}

// FilePath returns the on-disk path of the input.
func (c *CoffNode) FilePath() string {
	return c.filePath
}

// MemberPath returns the archive member path, or "" for plain objects.
func (c *CoffNode) MemberPath() string {
	return c.memberPath
}

func (c *CoffNode) String() string {
	if c.memberPath != "" {
		return c.filePath + "(" + c.memberPath + ")"
	}
	return c.filePath
}

// ShortName renders just the file names, for compact display.
func (c *CoffNode) ShortName() string {
	if c.memberPath != "" {
		return filepath.Base(c.filePath) + "(" + filepath.Base(c.memberPath) + ")"
	}
	return filepath.Base(c.filePath)
}

// LibraryName is a DLL name.
type LibraryName string

// TrimDllSuffix returns the name without a trailing ".dll", compared
// case-insensitively.
func (n LibraryName) TrimDllSuffix() string {
	s := string(n)
	if i := strings.LastIndexByte(s, '.'); i >= 0 && strings.EqualFold(s[i+1:], "dll") {
		return s[:i]
	}
	return s
}

func (n LibraryName) String() string {
	return string(n)
}

// LibraryNode is a library in the link graph, holding the imports
// resolved through it.
type LibraryNode struct {
	// imports is the incoming import edge list.
	imports EdgeList[SymbolNode, LibraryNode, ImportWeight]

	name LibraryName
}

// Imports returns the library's incoming import edges.
func (l *LibraryNode) Imports() *EdgeList[SymbolNode, LibraryNode, ImportWeight] {
	return &l.imports
}

// Name returns the library name.
func (l *LibraryNode) Name() LibraryName {
	return l.name
}
