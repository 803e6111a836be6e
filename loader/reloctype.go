// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"

	"github.com/lucaspwo/flipperzero-firmware/elfload/elf32"
)

// relocType names one of the four ARM relocation kinds this engine
// understands (§4.4, §4.7), with a size in bytes for the raw patch it
// performs. Unsupported types report size -1 and Supported() == false; the
// engine records them as an accumulated ErrUnsupportedRelocation rather
// than patching blindly.
type relocType struct {
	elfType uint32
}

type relocInfo struct {
	name string
	size int
}

var armRelocs = map[uint32]relocInfo{
	elf32.R_ARM_NONE:       {"R_ARM_NONE", 0},
	elf32.R_ARM_ABS32:      {"R_ARM_ABS32", 4},
	elf32.R_ARM_THM_PC22:   {"R_ARM_THM_PC22", 4},
	elf32.R_ARM_THM_JUMP24: {"R_ARM_THM_JUMP24", 4},
}

func (t relocType) String() string {
	if r, ok := armRelocs[t.elfType]; ok {
		return r.name
	}
	return fmt.Sprintf("R_ARM_<unknown %d>", t.elfType)
}

// Size returns the byte width of the relocation site, or -1 if t is a
// relocation type this engine doesn't implement.
func (t relocType) Size() int {
	if r, ok := armRelocs[t.elfType]; ok {
		return r.size
	}
	return -1
}

// Supported reports whether the relocation engine can patch sites of this
// type.
func (t relocType) Supported() bool {
	_, ok := armRelocs[t.elfType]
	return ok
}
