// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package slogutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer, color bool) *slog.Logger {
	return slog.New(&lineHandler{out: buf, color: color})
}

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, false)

	l.Warn("found ordinal import value", slog.String("symbol", "frob"))

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "warning: found ordinal import value"), line)
	assert.Contains(t, line, "(symbol=frob)")
	assert.True(t, strings.HasSuffix(line, ")\n"))
}

func TestInfoHasNoTag(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, false)

	l.Info("linked a.bof")
	assert.Equal(t, "linked a.bof\n", buf.String())
}

func TestColorTags(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, true)

	l.Error("boom")
	assert.Contains(t, buf.String(), ansiRed)
	assert.Contains(t, buf.String(), ansiReset)
}

func TestMultipleAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := testLogger(&buf, false)

	l.Warn("msg", slog.String("a", "1"), slog.String("b", "2"))
	assert.Contains(t, buf.String(), "(a=1, b=2)")
}

func TestPackageLevelOverride(t *testing.T) {
	tracker := &levelTracker{levels: make(map[string]slog.Level)}
	tracker.SetDefault(slog.LevelInfo)
	assert.Equal(t, slog.LevelInfo, tracker.Get("linkgraph"))

	tracker.Set("linkgraph", slog.LevelDebug)
	assert.Equal(t, slog.LevelDebug, tracker.Get("linkgraph"))
	assert.Equal(t, slog.LevelInfo, tracker.Get("archive"))
}

func TestErrorAttrHelpers(t *testing.T) {
	assert.Equal(t, slog.Attr{}, Error(nil))
	require.Equal(t, "path", FilePath("x").Key)
	require.Equal(t, "symbol", Symbol("x").Key)
	require.Equal(t, "section", Section("x").Key)
	require.Equal(t, "library", Library("x").Key)
}

func TestHandlerEnabled(t *testing.T) {
	h := &lineHandler{out: &bytes.Buffer{}}
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}
