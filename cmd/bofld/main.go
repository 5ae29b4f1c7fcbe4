// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command bofld links COFF relocatable objects and import libraries
// into a single Beacon Object File.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"
	pkgerrors "github.com/pkg/errors"

	"github.com/bofld/bofld/internal/libsearch"
	"github.com/bofld/bofld/internal/linker"
	"github.com/bofld/bofld/internal/slogutil"
)

var cli struct {
	Output string `short:"o" default:"a.bof" placeholder:"file" help:"Set the output file name."`

	Files []string `arg:"" optional:"" help:"Files to link."`

	Library     []string `short:"l" name:"library" placeholder:"libname" help:"Add the specified library to search for symbols."`
	LibraryPath []string `short:"L" name:"library-path" placeholder:"directory" help:"Add the directory to the library search path."`
	Sysroot     string   `placeholder:"directory" help:"Set the sysroot path."`

	Machine string `short:"m" enum:",i386pep,i386pe" default:"" placeholder:"emulation" help:"Set the target machine emulation (i386pep, i386pe)."`
	Entry   string `short:"e" default:"go" placeholder:"entry" help:"Name of the entrypoint."`

	DumpLinkGraph string `placeholder:"file" help:"Dump the link graph to the specified file."`
	CustomAPI     string `name:"custom-api" aliases:"api" placeholder:"library" help:"Custom API to use instead of the Beacon API."`
	MergeBss      bool   `name:"merge-bss" help:"Initialize the .bss section and merge it with the .data section."`

	Color       string `enum:"auto,always,never" default:"auto" help:"Print colored output (auto, always, never)."`
	Verbose     int    `short:"v" type:"counter" help:"Increase log verbosity."`
	PrintTiming bool   `help:"Print timing information."`

	Version kong.VersionFlag `short:"V" help:"Print version information and quit."`
}

const version = "0.3.1"

func main() {
	parser, err := kong.New(&cli,
		kong.Name("bofld"),
		kong.Description("Linker for producing Beacon Object Files."),
		kong.UsageOnError(),
		kong.Vars{"version": "bofld " + version},
	)
	if err != nil {
		panic(err)
	}

	// Response files and the -Bdynamic shim some build systems pass
	// are handled before flag parsing, the way GNU ld would.
	args, err := expandResponseFiles(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "bofld:", err)
		os.Exit(1)
	}

	if _, err := parser.Parse(args); err != nil {
		parser.FatalIfErrorf(err)
	}

	setupLogging()

	if err := run(); err != nil {
		var setupErrors *linker.SetupErrors
		var symbolErrors *linker.SymbolErrors
		switch {
		case errors.As(err, &setupErrors):
			for _, setupErr := range setupErrors.Errors {
				slog.Error(setupErr.Error())
			}
		case errors.As(err, &symbolErrors):
			last := len(symbolErrors.Errors) - 1
			for i, symbolErr := range symbolErrors.Errors {
				if i < last {
					slog.Error(symbolErr.Error() + "\n")
				} else {
					slog.Error(symbolErr.Error())
				}
			}
		default:
			slog.Error(err.Error())
		}
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	switch {
	case cli.Verbose == 1:
		level = slog.LevelDebug
	case cli.Verbose > 1:
		level = slog.Level(-8)
	}

	color := false
	switch cli.Color {
	case "always":
		color = true
	case "auto":
		color = isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("NO_COLOR") == ""
	}

	slogutil.Setup(level, color)
}

func run() error {
	started := time.Now()

	inputs := make([]libsearch.File, 0, len(cli.Files))
	for _, path := range cli.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			return pkgerrors.Wrap(err, "reading input")
		}
		inputs = append(inputs, libsearch.File{Path: path, Data: data})
	}

	searcher := libsearch.NewSearcher()
	if cli.Sysroot != "" {
		searcher.AddSearchPaths(cli.Sysroot)
	}
	searcher.AddSearchPaths(cli.LibraryPath...)

	var machine linker.TargetArch
	switch cli.Machine {
	case "i386pep":
		machine = linker.TargetAmd64
	case "i386pe":
		machine = linker.TargetI386
	}

	loaded := time.Now()

	l := linker.New(linker.Options{
		Machine:       machine,
		Entry:         cli.Entry,
		MergeBss:      cli.MergeBss,
		CustomAPI:     cli.CustomAPI,
		DumpGraphPath: cli.DumpLinkGraph,
		Inputs:        inputs,
		Libraries:     cli.Library,
		Searcher:      searcher,
	})

	linked, err := l.Link()
	if err != nil {
		return err
	}

	linkDone := time.Now()

	if err := os.WriteFile(cli.Output, linked, 0o666); err != nil {
		return pkgerrors.Wrap(err, "writing output")
	}

	slog.Info("linked "+cli.Output, slog.Int("bytes", len(linked)))

	if cli.PrintTiming {
		fmt.Fprintf(os.Stderr, "load:  %v\nlink:  %v\ntotal: %v\n",
			loaded.Sub(started), linkDone.Sub(loaded), time.Since(started))
	}

	return nil
}

// expandResponseFiles replaces @file arguments with the
// whitespace-separated tokens read from the file. The -Bdynamic shim
// some build systems pass is dropped.
func expandResponseFiles(args []string) ([]string, error) {
	expanded := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "-Bdynamic" {
			continue
		}
		if !strings.HasPrefix(arg, "@") {
			expanded = append(expanded, arg)
			continue
		}

		content, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, pkgerrors.Wrap(err, "reading response file")
		}
		expanded = append(expanded, strings.Fields(string(content))...)
	}
	return expanded, nil
}
