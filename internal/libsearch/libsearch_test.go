// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package libsearch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o666))
	return path
}

func TestFindCandidateNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "libfrob.a", []byte("frob archive"))

	s := NewSearcher()
	s.AddSearchPaths(dir)

	found, err := s.FindLibrary("frob")
	require.NoError(t, err)
	assert.Equal(t, path, found.Path)
	assert.Equal(t, []byte("frob archive"), found.Data)
}

func TestCandidatePreference(t *testing.T) {
	dir := t.TempDir()
	preferred := writeFile(t, dir, "libfrob.dll.a", []byte("import lib"))
	writeFile(t, dir, "libfrob.a", []byte("static lib"))

	s := NewSearcher()
	s.AddSearchPaths(dir)

	found, err := s.FindLibrary("frob")
	require.NoError(t, err)
	assert.Equal(t, preferred, found.Path)
}

func TestSearchPathOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	expected := writeFile(t, first, "frob.lib", []byte("first"))
	writeFile(t, second, "frob.lib", []byte("second"))

	s := NewSearcher()
	s.AddSearchPaths(first, second)

	found, err := s.FindLibrary("frob")
	require.NoError(t, err)
	assert.Equal(t, expected, found.Path)
}

func TestExactFilename(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "odd-name.ar", []byte("odd"))

	s := NewSearcher()
	s.AddSearchPaths(dir)

	found, err := s.FindLibrary(":odd-name.ar")
	require.NoError(t, err)
	assert.Equal(t, path, found.Path)

	// The candidate expansion does not apply to exact names.
	_, err = s.FindLibrary("odd-name.ar")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestNotFound(t *testing.T) {
	s := NewSearcher()
	s.AddSearchPaths(t.TempDir())

	_, err := s.FindLibrary("nonexistent")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nonexistent", notFound.Name)
}

func TestNoSearchPaths(t *testing.T) {
	s := NewSearcher()
	_, err := s.FindLibrary("anything")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRepeatLookupsCached(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "libfrob.a", []byte("v1"))

	s := NewSearcher()
	s.AddSearchPaths(dir)

	first, err := s.FindLibrary("frob")
	require.NoError(t, err)

	// Rewrite the file; the cached bytes win for the rest of the
	// invocation.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o666))

	second, err := s.FindLibrary("frob")
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
}

func TestDuplicateSearchPaths(t *testing.T) {
	dir := t.TempDir()
	s := NewSearcher()
	s.AddSearchPaths(dir, dir, dir)
	assert.Len(t, s.searchPaths, 1)
}
