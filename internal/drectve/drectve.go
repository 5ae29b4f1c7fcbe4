// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package drectve extracts linker directives from a COFF object's
// `.drectve` section.
package drectve

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/bofld/bofld/internal/coff"
)

var bom = []byte{0xef, 0xbb, 0xbf}

// Libraries returns the DEFAULTLIB library names from the object's
// directive section, in order. Objects without a directive section, and
// directive sections without the LnkInfo characteristic, yield nil.
func Libraries(obj *coff.File) []string {
	section := obj.SectionByName(".drectve")
	if section == nil || section.Characteristics&coff.ImageScnLnkInfo == 0 {
		return nil
	}

	data := section.Data
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		return nil
	}

	return parse(string(data))
}

// parse scans `/FLAG:value` and `-FLAG:value` tokens, returning the
// values of the DEFAULTLIB directives. Values are either bare tokens or
// double-quoted strings. Scanning stops at the first token that does
// not have the directive shape.
func parse(input string) []string {
	var libraries []string

	for {
		input = strings.TrimLeft(input, " \t\r\n")
		if input == "" {
			return libraries
		}

		if input[0] != '/' && input[0] != '-' {
			return libraries
		}
		input = input[1:]

		colon := strings.IndexByte(input, ':')
		if colon < 0 {
			return libraries
		}
		flag := input[:colon]
		input = input[colon+1:]

		var value string
		if strings.HasPrefix(input, "\"") {
			end := strings.IndexByte(input[1:], '"')
			if end < 0 {
				return libraries
			}
			value = input[1 : 1+end]
			input = input[end+2:]
		} else {
			end := strings.IndexAny(input, " \t\r\n")
			if end < 0 {
				value, input = input, ""
			} else {
				value, input = input[:end], input[end+1:]
			}
		}

		if strings.EqualFold(flag, "DEFAULTLIB") && value != "" {
			libraries = append(libraries, value)
		}
	}
}
