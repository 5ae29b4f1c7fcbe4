// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package slogutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"sync"
)

// lineHandler formats records as single lines:
//
//	warning: found ordinal import value (symbol=foo)
type lineHandler struct {
	mut   sync.Mutex
	out   io.Writer
	color bool
	attrs []slog.Attr
}

var _ slog.Handler = (*lineHandler)(nil)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	// Per-package filtering happens in Handle where the caller package
	// is known.
	return true
}

func (h *lineHandler) Handle(_ context.Context, rec slog.Record) error {
	frames := runtime.CallersFrames([]uintptr{rec.PC})
	if frame, _ := frames.Next(); frame.Function != "" {
		pkg := funcPackage(frame.Function)
		if globalLevels.Get(pkg) > rec.Level {
			return nil
		}
	}

	var sb strings.Builder
	sb.WriteString(h.levelTag(rec.Level))
	sb.WriteString(rec.Message)

	attrCount := 0
	writeAttr := func(attr slog.Attr) {
		if attr.Equal(slog.Attr{}) {
			return
		}
		if attrCount == 0 {
			sb.WriteString(" (")
		} else {
			sb.WriteString(", ")
		}
		attrCount++
		sb.WriteString(attr.Key)
		sb.WriteByte('=')
		sb.WriteString(attr.Value.String())
	}
	rec.Attrs(func(attr slog.Attr) bool {
		writeAttr(attr)
		return true
	})
	for _, attr := range h.attrs {
		writeAttr(attr)
	}
	if attrCount > 0 {
		sb.WriteByte(')')
	}
	sb.WriteByte('\n')

	h.mut.Lock()
	defer h.mut.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func (h *lineHandler) levelTag(level slog.Level) string {
	var tag, color string
	switch {
	case level >= slog.LevelError:
		tag, color = "error: ", ansiRed
	case level >= slog.LevelWarn:
		tag, color = "warning: ", ansiYellow
	case level >= slog.LevelInfo:
		return ""
	default:
		tag, color = "debug: ", ansiCyan
	}
	if h.color {
		return color + tag + ansiReset
	}
	return tag
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lineHandler{
		out:   h.out,
		color: h.color,
		attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
	}
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	return h
}

// funcPackage extracts the trailing package name from a fully qualified
// function name like
// "github.com/bofld/bofld/internal/linkgraph.(*LinkGraph).AddCoff".
func funcPackage(fn string) string {
	base := path.Base(fn)
	if dot := strings.IndexByte(base, '.'); dot > 0 {
		return base[:dot]
	}
	return base
}

// String formats a value for attr output the way fmt would.
func String(key string, value any) slog.Attr {
	return slog.String(key, fmt.Sprint(value))
}
