// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package jamcrc

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum(t *testing.T) {
	// The classic check value: CRC-32/JAMCRC of "123456789".
	assert.Equal(t, uint32(0x340bc6d9), Checksum([]byte("123456789")))
}

func TestComplementOfIEEE(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	assert.Equal(t, ^crc32.ChecksumIEEE(data), Checksum(data))
}

func TestIncremental(t *testing.T) {
	d := New()
	d.Update([]byte("12345"))
	d.Update([]byte("6789"))
	assert.Equal(t, Checksum([]byte("123456789")), d.Sum32())
}

func TestEmpty(t *testing.T) {
	assert.Equal(t, ^uint32(0), Checksum(nil))
}
