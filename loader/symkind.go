// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

// symKind classifies a resolved symbol for diagnostic logging, mirroring
// nm's single-letter symbol kinds. It carries no weight in the loader's
// actual resolution algorithm (§4.6) — it exists purely so Debug-level
// logs read like "resolved foo (U) -> 0x..." instead of a bare address.
type symKind byte

const (
	symUnknown symKind = '?'
	symUndef   symKind = 'U'
	symText    symKind = 'T'
	symROData  symKind = 'R'
	symData    symKind = 'D'
	symBSS     symKind = 'B'
	symSection symKind = 'S'
)

func (k symKind) String() string {
	return string([]byte{byte(k)})
}

// kindOfSection derives a symKind from the logical section name a defined
// symbol belongs to.
func kindOfSection(name string) symKind {
	switch name {
	case ".text":
		return symText
	case ".rodata":
		return symROData
	case ".data":
		return symData
	case ".bss":
		return symBSS
	default:
		return symSection
	}
}
