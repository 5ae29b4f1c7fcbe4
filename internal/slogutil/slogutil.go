// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package slogutil wires log/slog to a line-oriented handler suitable
// for a command line linker: level-tagged human-readable lines on
// stderr, optional color, and per-package level overrides.
package slogutil

import (
	"log/slog"
	"os"
	"strings"
)

var globalLevels = &levelTracker{
	levels: make(map[string]slog.Level),
}

// Setup installs the default handler. Color selects ANSI level tags.
func Setup(level slog.Level, color bool) {
	globalLevels.SetDefault(level)
	slog.SetDefault(slog.New(&lineHandler{
		out:   os.Stderr,
		color: color,
	}))

	// BOFLDTRACE enables debug logging per package:
	//   BOFLDTRACE="linkgraph,archive"
	// with an optional level after a colon:
	//   BOFLDTRACE="linkgraph:WARN"
	SetLevelOverrides(os.Getenv("BOFLDTRACE"))
}

// SetLevelOverrides applies a comma-separated pkg[:LEVEL] override list.
func SetLevelOverrides(overrides string) {
	for _, pkg := range strings.Split(overrides, ",") {
		pkg = strings.TrimSpace(pkg)
		if pkg == "" {
			continue
		}
		level := slog.LevelDebug
		if cutPkg, levelStr, ok := strings.Cut(pkg, ":"); ok {
			pkg = cutPkg
			if err := level.UnmarshalText([]byte(levelStr)); err != nil {
				slog.Warn("Bad log level requested in BOFLDTRACE", slog.String("pkg", pkg), slog.String("level", levelStr))
				continue
			}
		}
		globalLevels.Set(pkg, level)
	}
}

// Error returns a standard error attr.
func Error(err any) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// FilePath returns a standard path attr.
func FilePath(path string) slog.Attr {
	return slog.String("path", path)
}

// Symbol returns a standard symbol-name attr.
func Symbol(name string) slog.Attr {
	return slog.String("symbol", name)
}

// Section returns a standard section-name attr.
func Section(name string) slog.Attr {
	return slog.String("section", name)
}

// Library returns a standard library-name attr.
func Library(name string) slog.Attr {
	return slog.String("library", name)
}
