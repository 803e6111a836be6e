// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"errors"
	"fmt"

	"github.com/lucaspwo/flipperzero-firmware/elfload/elf32"
)

// LoadSections allocates and populates every classified section's runtime
// buffer, applies all relocations, and — on success — rebases the entry
// point and publishes the memory map (§4.5, §4.7, §4.8). It is the fourth
// and final external operation (§6).
//
// Precondition: LoadSectionTable succeeded. Postcondition: every section
// with SecIdx != 0 and a non-zero size has either a populated Data buffer
// or an error aborted the load (a zero-size section keeps Data nil);
// img.EntryPoint and img.MemoryMap are only populated on
// StatusSuccess — a StatusMissingImports load leaves them at their zero
// values rather than publishing a layout built from a partial relocation
// pass.
func (img *Image) LoadSections() (Status, error) {
	if img.stage != stageSectionTable {
		return StatusUnspecifiedError, ErrWrongStage
	}

	var loadErr error
	img.sections.forEach(func(r *SectionRecord) {
		if loadErr != nil || r.SecIdx == 0 {
			return
		}
		if err := img.loadSectionData(r); err != nil {
			loadErr = fmt.Errorf("loader: loading section %s: %w", r.Name, err)
		}
	})
	if loadErr != nil {
		return StatusUnspecifiedError, loadErr
	}

	var relocErr error
	img.sections.forEach(func(r *SectionRecord) {
		if err := img.relocateSection(r); err != nil {
			relocErr = errors.Join(relocErr, fmt.Errorf("%s: %w", r.Name, err))
		}
	})
	img.relocCache = nil

	// The memory map and entry-point rebase only get published after a
	// clean relocation pass (§4.8: "After all sections relocate
	// successfully"), mirroring flipper_application_load_sections's
	// status-gated block in the original loader: a MissingImports load
	// leaves EntryPoint/MemoryMap at their zero values instead of
	// guessing at a partially-relocated image's layout.
	if relocErr == nil {
		img.fixupEntryPoint()
	}

	img.stage = stageSections
	if relocErr != nil {
		img.log.Warn("image loaded with missing imports", "err", relocErr)
		return StatusMissingImports, relocErr
	}
	return StatusSuccess, nil
}

// loadSectionData allocates r's runtime buffer and fills it (§4.5): read
// sh_size bytes from file for PROGBITS, or leave it zeroed (the
// Allocator's contract) for NOBITS (".bss").
func (img *Image) loadSectionData(r *SectionRecord) error {
	if r.Size == 0 {
		return nil
	}

	buf, err := img.alloc.Alloc(r.Size, r.Align)
	if err != nil {
		return fmt.Errorf("allocating %d bytes aligned to %d: %w", r.Size, r.Align, err)
	}
	if len(buf) != int(r.Size) {
		return fmt.Errorf("allocator returned %d bytes, want %d", len(buf), r.Size)
	}

	if r.ShType != elf32.SHT_NOBITS {
		sh, err := img.readSectionHeader(r.SecIdx)
		if err != nil {
			img.alloc.Free(buf)
			return err
		}
		if err := img.cur.Seek(int64(sh.Offset)); err != nil {
			img.alloc.Free(buf)
			return fmt.Errorf("seeking to section data: %w", err)
		}
		if err := img.cur.ReadExact(buf); err != nil {
			img.alloc.Free(buf)
			return fmt.Errorf("reading section data: %w", err)
		}
	}

	r.Data = buf
	img.log.Debug("loaded section", "name", r.Name, "size", r.Size, "addr", sectionBase(r))
	return nil
}
