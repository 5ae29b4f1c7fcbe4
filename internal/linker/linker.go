// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package linker drives one link invocation: it ingests the inputs
// into the link graph, resolves undefined symbols through the API
// source and the opened archives, and hands the finished graph to the
// output builder.
package linker

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/bofld/bofld/internal/archive"
	"github.com/bofld/bofld/internal/beaconapi"
	"github.com/bofld/bofld/internal/coff"
	"github.com/bofld/bofld/internal/drectve"
	"github.com/bofld/bofld/internal/libsearch"
	"github.com/bofld/bofld/internal/linkgraph"
	"github.com/bofld/bofld/internal/slogutil"
)

// TargetArch is the link target machine.
type TargetArch uint16

const (
	// TargetAmd64 is the 64-bit x86 target (i386pep emulation).
	TargetAmd64 = TargetArch(coff.ImageFileMachineAmd64)

	// TargetI386 is the 32-bit x86 target (i386pe emulation).
	TargetI386 = TargetArch(coff.ImageFileMachineI386)
)

// Options configures one link invocation.
type Options struct {
	// Machine forces the target architecture; zero detects it from the
	// first parsable input.
	Machine TargetArch

	// Entry is the entry point symbol seeded as undefined; prefixed
	// with an underscore on the 32-bit target.
	Entry string

	// MergeBss merges the .bss output section into .data.
	MergeBss bool

	// CustomAPI is a path or library name of an archive that replaces
	// the built-in Beacon API roster.
	CustomAPI string

	// DumpGraphPath writes the link graph in dot form after
	// resolution.
	DumpGraphPath string

	// Inputs are the loaded command-line files, objects or archives.
	Inputs []libsearch.File

	// Libraries are the -l link library names.
	Libraries []string

	// Searcher locates link libraries by name.
	Searcher libsearch.Finder
}

// Linker is a configured link invocation.
type Linker struct {
	opts Options

	setupErrors []error

	// libraries are the opened archives in insertion order.
	libraries     []openArchive
	libraryPaths  map[string]struct{}
	libraryNames  map[string]struct{}
	drectveQueue  []drectveEntry
	parsedInputs  []parsedInput
	graph         *linkgraph.LinkGraph
}

type openArchive struct {
	path    string
	archive *archive.Archive
}

type parsedInput struct {
	path string
	obj  *coff.File
}

// drectveEntry is a deferred library discovered from a directive
// section, with the source recorded for error attribution.
type drectveEntry struct {
	path   string
	member string
	name   string
}

// New returns a Linker over opts.
func New(opts Options) *Linker {
	if opts.Searcher == nil {
		opts.Searcher = libsearch.NewSearcher()
	}
	return &Linker{
		opts:         opts,
		libraryPaths: make(map[string]struct{}),
		libraryNames: make(map[string]struct{}),
	}
}

func (l *Linker) setupError(err error) {
	l.setupErrors = append(l.setupErrors, err)
}

// queueDrectveLibraries queues the drectve libraries of obj that have
// not been seen yet.
func (l *Linker) queueDrectveLibraries(path, member string, obj *coff.File) {
	for _, name := range drectve.Libraries(obj) {
		name = strings.TrimSuffix(name, ".lib")
		if _, seen := l.libraryNames[name]; seen {
			continue
		}
		l.libraryNames[name] = struct{}{}
		l.drectveQueue = append(l.drectveQueue, drectveEntry{path: path, member: member, name: name})
	}
}

// openLibrary locates, reads and parses a library by name, adding it to
// the opened archive list. Duplicate paths are skipped.
func (l *Linker) openLibrary(name string, attribute func(error) error) {
	found, err := l.opts.Searcher.FindLibrary(name)
	if err != nil {
		l.setupError(attribute(err))
		return
	}
	if _, seen := l.libraryPaths[found.Path]; seen {
		return
	}

	parsed, err := archive.Parse(found.Data)
	if err != nil {
		l.setupError(&PathError{Path: found.Path, Err: err})
		return
	}

	l.libraryPaths[found.Path] = struct{}{}
	l.libraries = append(l.libraries, openArchive{path: found.Path, archive: parsed})
}

// drainDrectveQueue opens every queued drectve library.
func (l *Linker) drainDrectveQueue() {
	for len(l.drectveQueue) > 0 {
		entry := l.drectveQueue[0]
		l.drectveQueue = l.drectveQueue[1:]

		l.openLibrary(entry.name, func(err error) error {
			var notFound *libsearch.NotFoundError
			if errors.As(err, &notFound) {
				err = &LibraryNotFoundError{Name: notFound.Name}
			}
			return &PathError{Path: entry.path, Member: entry.member, Err: err}
		})
	}
}

// Link runs the invocation and returns the linked output bytes.
func (l *Linker) Link() ([]byte, error) {
	spec := linkgraph.NewSpec()

	// Ingest command-line inputs: archives open as libraries, objects
	// parse and queue their drectve libraries.
	for _, input := range l.opts.Inputs {
		if bytes.HasPrefix(input.Data, []byte(archive.Magic)) || bytes.HasPrefix(input.Data, []byte(archive.ThinMagic)) {
			parsed, err := archive.Parse(input.Data)
			if err != nil {
				l.setupError(&PathError{Path: input.Path, Err: err})
				continue
			}
			if _, seen := l.libraryPaths[input.Path]; !seen {
				l.libraryPaths[input.Path] = struct{}{}
				l.libraries = append(l.libraries, openArchive{path: input.Path, archive: parsed})
			}
			continue
		}

		obj, err := coff.Parse(input.Data)
		if err != nil {
			l.setupError(&PathError{Path: input.Path, Err: err})
			continue
		}

		l.queueDrectveLibraries(input.Path, "", obj)
		spec.AddCoff(obj)
		l.parsedInputs = append(l.parsedInputs, parsedInput{path: input.Path, obj: obj})
	}

	// Open the command-line libraries, then the drectve libraries
	// discovered so far.
	for _, name := range l.opts.Libraries {
		l.libraryNames[strings.TrimSuffix(name, ".lib")] = struct{}{}
		l.openLibrary(name, func(err error) error { return err })
	}
	l.drainDrectveQueue()

	// Settle the target architecture.
	machine := uint16(l.opts.Machine)
	if machine == 0 && len(l.parsedInputs) > 0 {
		machine = l.parsedInputs[0].obj.Machine()
	}
	if machine == 0 {
		if len(l.setupErrors) > 0 {
			return nil, &SetupErrors{Errors: l.setupErrors}
		}
		if len(l.opts.Inputs) == 0 {
			return nil, ErrNoInput
		}
		return nil, ErrArchitectureDetect
	}

	// Initialize the API source.
	api, err := l.initAPI(machine)
	if err != nil {
		l.setupError(err)
		return nil, &SetupErrors{Errors: l.setupErrors}
	}

	if len(l.setupErrors) > 0 {
		return nil, &SetupErrors{Errors: l.setupErrors}
	}
	if len(l.opts.Inputs) == 0 {
		return nil, ErrNoInput
	}

	// Build the graph from the parsed inputs.
	arena := spec.Arena()
	l.graph = spec.Graph(arena, machine)

	for _, input := range l.parsedInputs {
		if err := l.graph.AddCoff(input.path, "", input.obj); err != nil {
			l.setupError(&PathError{Path: input.path, Err: err})
		}
	}
	if len(l.setupErrors) > 0 {
		return nil, &SetupErrors{Errors: l.setupErrors}
	}

	// Seed the entry point so archives can provide it.
	if entry := l.opts.Entry; entry != "" {
		if machine == coff.ImageFileMachineI386 {
			entry = "_" + entry
		}
		l.graph.AddExternalSymbol(entry)
	}

	l.resolveSymbols(api)

	if path := l.opts.DumpGraphPath; path != "" {
		l.dumpGraph(path)
	}

	if len(l.setupErrors) > 0 {
		return nil, &SetupErrors{Errors: l.setupErrors}
	}

	built, symbolErrors := l.graph.Finish()
	if symbolErrors != nil {
		return nil, &SymbolErrors{Errors: symbolErrors}
	}

	if l.opts.MergeBss {
		built.MergeBss()
	}

	return built.Link()
}

// resolveSymbols loops until no new undefined symbol appears, trying
// the API source first and then every opened archive in insertion
// order. Libraries discovered from pulled-in members are opened at the
// next draining step.
func (l *Linker) resolveSymbols(api apiSource) {
	tried := make(map[string]struct{})

	for {
		var search []string
		for _, name := range l.graph.UndefinedSymbols() {
			if _, done := tried[name]; !done {
				search = append(search, name)
			}
		}
		if len(search) == 0 {
			return
		}

		for _, symbolName := range search {
			if l.resolveOne(api, symbolName) {
				continue
			}
			// No source satisfied the symbol; it stays permanently
			// undefined.
			tried[symbolName] = struct{}{}
		}
	}
}

// resolveOne attempts to resolve one symbol. It reports whether a
// source provided the symbol.
func (l *Linker) resolveOne(api apiSource, symbolName string) bool {
	// The API source wins over the archives.
	imp, found, err := api.ExtractSymbol(symbolName)
	if err != nil {
		l.setupError(&PathError{Path: api.Path(), Err: err})
	} else if found {
		if err := l.graph.AddAPIImport(symbolName, imp); err != nil {
			l.setupError(&PathError{Path: api.Path(), Err: err})
		} else {
			return true
		}
	}

	// Open libraries queued since the last symbol.
	l.drainDrectveQueue()

	for _, library := range l.libraries {
		extracted, err := library.archive.ExtractSymbol(symbolName)
		if err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				continue
			}
			var memberErr *archive.MemberError
			if errors.As(err, &memberErr) {
				l.setupError(&PathError{Path: library.path, Member: memberErr.Member, Err: memberErr.Err})
			} else {
				l.setupError(&PathError{Path: library.path, Err: err})
			}
			continue
		}

		if extracted.Coff != nil {
			l.queueDrectveLibraries(library.path, extracted.Name, extracted.Coff)

			if err := l.graph.AddCoff(library.path, extracted.Name, extracted.Coff); err != nil {
				l.setupError(&PathError{Path: library.path, Member: extracted.Name, Err: err})
				continue
			}

			// The member was already in the graph and did not define
			// the symbol after all; scanning further archives cannot
			// help, and retrying next round would loop forever.
			return !contains(l.graph.UndefinedSymbols(), symbolName)
		}

		if err := l.graph.AddLibraryImport(symbolName, extracted.Import); err != nil {
			l.setupError(&PathError{Path: library.path, Member: extracted.Name, Err: err})
			continue
		}
		return true
	}

	return false
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// initAPI builds the API source: the custom archive when one was
// requested, the built-in roster otherwise.
func (l *Linker) initAPI(machine uint16) (apiSource, error) {
	name := l.opts.CustomAPI
	if name == "" {
		return &rosterAPI{roster: beaconapi.NewRoster(machine)}, nil
	}

	data, path, err := l.readCustomAPI(name)
	if err != nil {
		return nil, err
	}

	parsed, err := archive.Parse(data)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	return &archiveAPI{path: path, archive: parsed}, nil
}

// readCustomAPI loads the custom API by path, falling back to a library
// search when no such file exists.
func (l *Linker) readCustomAPI(name string) ([]byte, string, error) {
	data, err := os.ReadFile(name)
	if err == nil {
		return data, name, nil
	}
	if !os.IsNotExist(err) {
		return nil, "", &PathError{Path: name, Err: err}
	}

	found, err := l.opts.Searcher.FindLibrary(name)
	if err != nil {
		var notFound *libsearch.NotFoundError
		if errors.As(err, &notFound) {
			return nil, "", &APINotFoundError{Name: name}
		}
		return nil, "", err
	}
	return found.Data, found.Path, nil
}

func (l *Linker) dumpGraph(path string) {
	f, err := os.Create(path)
	if err != nil {
		slog.Warn("could not open link graph output", slogutil.FilePath(path), slogutil.Error(err))
		return
	}
	defer f.Close()

	if err := l.graph.WriteDotGraph(f); err != nil {
		slog.Warn("could not write link graph", slogutil.Error(err))
	}
}
