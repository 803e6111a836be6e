// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lucaspwo/flipperzero-firmware/elfload/arch"
	"github.com/lucaspwo/flipperzero-firmware/elfload/cursor"
	"github.com/lucaspwo/flipperzero-firmware/elfload/elf32"
)

// relocateSection walks r's paired relocation section and patches r.Data
// in place (§4.7). It yields to the Scheduler every yieldStep entries
// rather than on each one, matching the cooperative pacing of the original
// firmware loader.
//
// A failed individual relocation (undefined symbol, unsupported type) is
// accumulated into the returned error rather than aborting the section:
// every entry is attempted, and the caller surfaces the aggregate as
// StatusMissingImports.
func (img *Image) relocateSection(r *SectionRecord) error {
	if r.RelSecIdx == 0 || r.Data == nil {
		return nil
	}

	relShdr, err := img.readSectionHeader(r.RelSecIdx)
	if err != nil {
		return fmt.Errorf("loader: reading relocation header for %s: %w", r.Name, err)
	}
	count := relShdr.Size / elf32.RelSize

	if err := img.cur.Seek(int64(relShdr.Offset)); err != nil {
		return fmt.Errorf("loader: seeking to relocations for %s: %w", r.Name, err)
	}

	var accumulated error
	for i := uint32(0); i < count; i++ {
		if img.yieldStep > 0 && int(i)%img.yieldStep == 0 {
			img.sched.Yield()
		}

		rel, err := elf32.ReadRel(cursor.AsReader(img.cur))
		if err != nil {
			return fmt.Errorf("loader: reading relocation %d of %s: %w", i, r.Name, err)
		}

		if err := img.applyRelocation(r, rel); err != nil {
			img.log.Debug("relocation not applied", "section", r.Name, "index", i, "err", err)
			accumulated = errors.Join(accumulated, err)
		}
	}
	return accumulated
}

// applyRelocation patches a single relocation site within r.Data.
func (img *Image) applyRelocation(r *SectionRecord, rel *elf32.Rel) error {
	rt := relocType{rel.Type()}
	if !rt.Supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedRelocation, rt)
	}
	if rel.Type() == elf32.R_ARM_NONE {
		return nil
	}

	if int(rel.Offset)+rt.Size() > len(r.Data) {
		return fmt.Errorf("loader: relocation offset 0x%x out of bounds for section %s (size %d)", rel.Offset, r.Name, len(r.Data))
	}

	symAddr, err := img.resolveSymbol(rel.Sym())
	if err != nil {
		return err
	}

	site := r.Data[rel.Offset : rel.Offset+uint32(rt.Size())]
	relAddr := sectionBase(r) + rel.Offset
	order := arch.ARMThumb.Layout.Order()

	switch rel.Type() {
	case elf32.R_ARM_ABS32:
		order.PutUint32(site, arch.ARMThumb.Layout.Uint32(site)+symAddr)

	case elf32.R_ARM_THM_PC22, elf32.R_ARM_THM_JUMP24:
		relocateThumbCall(site, order, relAddr, symAddr)
	}
	return nil
}

// relocateThumbCall patches a Thumb-2 BL/B.W instruction pair (R_ARM_THM_PC22,
// R_ARM_THM_JUMP24): decode the existing 25-bit signed branch offset out of
// the upper/lower halfwords, add the distance from the relocation site to
// the resolved symbol, and re-encode. This mirrors ARM's BL encoding T1/T2
// (ARMv7-M Architecture Reference Manual A6.7.13) bit for bit.
func relocateThumbCall(site []byte, order binary.ByteOrder, relAddr, symAddr uint32) {
	upper := order.Uint16(site[0:2])
	lower := order.Uint16(site[2:4])

	s := uint32(upper>>10) & 1
	j1 := uint32(lower>>13) & 1
	j2 := uint32(lower>>11) & 1

	offset := int32((s << 24) |
		((^(j1 ^ s) & 1) << 23) |
		((^(j2 ^ s) & 1) << 22) |
		(uint32(upper&0x03ff) << 12) |
		(uint32(lower&0x07ff) << 1))
	if offset&0x01000000 != 0 {
		offset -= 0x02000000
	}

	offset += int32(symAddr - relAddr)

	u := uint32(offset)
	s = (u >> 24) & 1
	j1 = s ^ (^(u>>23)&1)
	j2 = s ^ (^(u>>22)&1)

	upper = (upper & 0xf800) | uint16(s<<10) | uint16((u>>12)&0x03ff)
	lower = (lower & 0xd000) | uint16(j1<<13) | uint16(j2<<11) | uint16((u>>1)&0x07ff)

	order.PutUint16(site[0:2], upper)
	order.PutUint16(site[2:4], lower)
}
