// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

// fixupEntryPoint builds the published memory map and rebases the ELF
// entry point to the runtime base of ".text" (§4.8).
//
// Precondition: every section has been through loadSectionData (Data is
// populated or the section was empty/unused), and the caller has already
// confirmed a clean relocation pass. Postcondition: img.MemoryMap holds
// one entry per populated .text*/.rodata*/.data*/.bss* record in section
// map iteration order (invariant P3/P4), and img.EntryPoint is e_entry
// plus ".text"'s runtime base (invariant P1/P5) — or just e_entry if no
// section is named exactly ".text", matching the original loader, which
// looks the base up by that exact key and otherwise leaves it at 0 rather
// than treating the absence as an error.
func (img *Image) fixupEntryPoint() {
	var textBase uint32

	var mmap []MemoryMapEntry
	img.sections.forEach(func(r *SectionRecord) {
		if !r.gdbRelevant() {
			return
		}
		addr := sectionBase(r)
		mmap = append(mmap, MemoryMapEntry{Name: r.Name, Address: addr})
		if r.Name == ".text" {
			textBase = addr
		}
	})

	img.MemoryMap = mmap
	img.EntryPoint = img.entry + textBase
	img.log.Debug("fixed up entry point", "entry", img.EntryPoint, "text_base", textBase, "sections", len(mmap))
}
