// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"

	"github.com/lucaspwo/flipperzero-firmware/elfload/cursor"
	"github.com/lucaspwo/flipperzero-firmware/elfload/elf32"
)

// LoadHeaders reads the ELF file header at offset 0, validates it (if
// WithStrictValidation was set), and records the section-header-string
// table's file offset so later stages can resolve section names (§4.2).
//
// Precondition: img was just created by New. Postcondition: the ELF
// summary fields are populated, or an error is returned and img is left
// safe to Close.
func (img *Image) LoadHeaders() error {
	if img.stage != stageNew {
		return ErrWrongStage
	}

	if err := img.cur.Seek(0); err != nil {
		return fmt.Errorf("loader: seeking to file header: %w", err)
	}
	h, err := elf32.ReadHeader(cursor.AsReader(img.cur))
	if err != nil {
		return fmt.Errorf("loader: reading file header: %w", err)
	}
	if img.strict && !h.Valid() {
		return ErrInvalidFormat
	}

	// Seek to the e_shstrndx'th section header to find the section-name
	// string table's base offset.
	strShdrOff := int64(h.Shoff) + int64(h.Shstrndx)*elf32.SectionHeaderSize
	if err := img.cur.Seek(strShdrOff); err != nil {
		return fmt.Errorf("loader: seeking to shstrtab header: %w", err)
	}
	strShdr, err := elf32.ReadSectionHeader(cursor.AsReader(img.cur))
	if err != nil {
		return fmt.Errorf("loader: reading shstrtab header: %w", err)
	}

	img.entry = h.Entry
	img.shoff = h.Shoff
	img.shnum = h.Shnum
	img.shstrndx = h.Shstrndx
	img.shstrOffset = strShdr.Offset

	img.log.Debug("loaded ELF headers", "entry", h.Entry, "shnum", h.Shnum, "shstrndx", h.Shstrndx)

	img.stage = stageHeaders
	return nil
}

// sectionHeaderOffset returns the absolute file offset of the idx'th
// section header.
func (img *Image) sectionHeaderOffset(idx uint32) int64 {
	return int64(img.shoff) + int64(idx)*elf32.SectionHeaderSize
}

// readSectionHeader reads the idx'th section header.
func (img *Image) readSectionHeader(idx uint32) (*elf32.SectionHeader, error) {
	if err := img.cur.Seek(img.sectionHeaderOffset(idx)); err != nil {
		return nil, fmt.Errorf("loader: seeking to section header %d: %w", idx, err)
	}
	return elf32.ReadSectionHeader(cursor.AsReader(img.cur))
}

// readSectionName reads the name of a section given its sh_name field.
func (img *Image) readSectionName(shName uint32) (string, error) {
	return img.readCString(int64(img.shstrOffset) + int64(shName))
}
