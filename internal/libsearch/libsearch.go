// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package libsearch locates link libraries on disk by logical name.
package libsearch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// File is a loaded input with the path it was read from.
type File struct {
	Path string
	Data []byte
}

// Finder locates a library by its logical name.
type Finder interface {
	FindLibrary(name string) (File, error)
}

// NotFoundError reports a library that no search path provided.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unable to find library -l%s", e.Name)
}

// IOError reports a search path candidate that existed but could not be
// read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("could not open link library %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// readCacheSize bounds the number of loaded libraries kept around for
// repeat lookups within one invocation.
const readCacheSize = 64

// Searcher finds libraries by probing an ordered list of directories
// with the conventional file name candidates.
type Searcher struct {
	searchPaths []string
	cache       *lru.Cache[string, File]
}

// NewSearcher returns a Searcher with no search paths.
func NewSearcher() *Searcher {
	cache, _ := lru.New[string, File](readCacheSize)
	return &Searcher{cache: cache}
}

// AddSearchPaths appends directories to the search path, preserving
// order and skipping duplicates.
func (s *Searcher) AddSearchPaths(paths ...string) {
	for _, path := range paths {
		seen := false
		for _, existing := range s.searchPaths {
			if existing == path {
				seen = true
				break
			}
		}
		if !seen {
			s.searchPaths = append(s.searchPaths, path)
		}
	}
}

// candidates returns the file names probed for a library name. Names
// prefixed with ':' are exact file names.
func candidates(name string) []string {
	if exact, ok := strings.CutPrefix(name, ":"); ok {
		return []string{exact}
	}
	return []string{
		"lib" + name + ".dll.a",
		name + ".dll.a",
		"lib" + name + ".a",
		name + ".lib",
		"lib" + name + ".lib",
		name + ".a",
	}
}

// FindLibrary probes every search path for the library's candidate file
// names and returns the first match. A candidate that exists but cannot
// be read ends the search with an IOError.
func (s *Searcher) FindLibrary(name string) (File, error) {
	if found, ok := s.cache.Get(name); ok {
		return found, nil
	}

	if len(s.searchPaths) == 0 {
		return File{}, &NotFoundError{Name: name}
	}

	for _, searchPath := range s.searchPaths {
		for _, filename := range candidates(name) {
			fullPath := filepath.Join(searchPath, filename)
			data, err := os.ReadFile(fullPath)
			if err == nil {
				found := File{Path: fullPath, Data: data}
				s.cache.Add(name, found)
				return found, nil
			}
			if !os.IsNotExist(err) {
				return File{}, &IOError{Path: fullPath, Err: err}
			}
		}
	}

	return File{}, &NotFoundError{Name: name}
}
