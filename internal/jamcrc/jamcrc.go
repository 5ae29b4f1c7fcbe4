// Copyright (C) 2026 The Bofld Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package jamcrc implements the JAMCRC checksum: reflected CRC-32 with
// the standard polynomial, an all-ones initial value and no final
// inversion. COFF auxiliary section records carry the complement of this
// value as their checksum field.
package jamcrc

import "hash/crc32"

// Digest is a running JAMCRC computation.
type Digest struct {
	crc uint32
}

// New returns a Digest with the all-ones initial state.
func New() *Digest {
	return &Digest{crc: ^uint32(0)}
}

// Update feeds p into the digest.
func (d *Digest) Update(p []byte) {
	// crc32.Update performs both the initial and the final inversion
	// around the raw register, so undo them to keep the bare state.
	d.crc = ^crc32.Update(^d.crc, crc32.IEEETable, p)
}

// Sum32 returns the JAMCRC value of the bytes fed so far.
func (d *Digest) Sum32() uint32 {
	return d.crc
}

// Checksum returns the JAMCRC of data.
func Checksum(data []byte) uint32 {
	d := New()
	d.Update(data)
	return d.Sum32()
}
