// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"
	"strings"

	"github.com/lucaspwo/flipperzero-firmware/elfload/elf32"
)

// category is a bitmask of section kinds the classifier has observed,
// used to check the "required categories present" postcondition (§4.4,
// invariant 2).
type category uint8

const (
	catSymTab category = 1 << iota
	catStrTab
	catManifest
)

const catRequired = catSymTab | catStrTab | catManifest

// lookupSections mirrors the original loader's lookup_sections[] table: a
// payload section is recognized by NAME PREFIX, not exact match, so
// toolchain output like ".text.startup" (routine under
// -ffunction-sections) is still picked up. The three relocation rows are
// checked after their payload counterparts, in the same order the
// original array lists them, and the match is first-match-wins.
var lookupSections = []struct {
	prefix string
	kind   sectionKind
	isRel  bool
}{
	{".text", kindText, false},
	{".rodata", kindRodata, false},
	{".data", kindData, false},
	{".bss", kindBss, false},
	{".rel.text", kindText, true},
	{".rel.rodata", kindRodata, true},
	{".rel.data", kindData, true},
}

// LoadManifest performs the "manifest-only quick pass" (§2): it scans the
// section table solely for ".fapmeta" and stops as soon as it's found,
// without building the full section map. A host that only needs to read an
// application's manifest (e.g. to show a name and icon in a launcher,
// without loading the code) can call this instead of LoadSectionTable.
//
// Precondition: LoadHeaders succeeded. Postcondition: the manifest buffer
// is filled if ".fapmeta" is present; img.stage is unchanged, so
// LoadSectionTable can still run afterward.
func (img *Image) LoadManifest() error {
	if img.stage != stageHeaders {
		return ErrWrongStage
	}

	for idx := uint32(1); idx < uint32(img.shnum); idx++ {
		sh, err := img.readSectionHeader(idx)
		if err != nil {
			return fmt.Errorf("loader: reading section header %d: %w", idx, err)
		}
		name, err := img.readSectionName(sh.Name)
		if err != nil {
			return fmt.Errorf("loader: reading name of section %d: %w", idx, err)
		}
		if name == ".fapmeta" {
			return img.loadManifestData(sh)
		}
	}
	return nil
}

// loadManifestData copies the manifest record out of a ".fapmeta" section
// header. Per the spec's Open Question (§9, resolved in SPEC_FULL.md §9):
// a section strictly smaller than ManifestSize is rejected; a larger one
// is accepted and its trailing bytes silently ignored, for forward
// compatibility with future manifest fields.
func (img *Image) loadManifestData(sh *elf32.SectionHeader) error {
	if sh.Size < ManifestSize {
		return ErrManifestTooSmall
	}
	if err := img.cur.Seek(int64(sh.Offset)); err != nil {
		return fmt.Errorf("loader: seeking to manifest: %w", err)
	}
	if err := img.cur.ReadExact(img.manifest[:]); err != nil {
		return fmt.Errorf("loader: reading manifest: %w", err)
	}
	img.haveManifest = true
	return nil
}

// LoadSectionTable performs the full section classification pass (§4.4):
// it walks every section, builds the logical section map, records the
// symbol and string table descriptors, copies the manifest and debug-link
// blobs, and checks that the required categories are all present.
//
// Precondition: LoadHeaders succeeded. Postcondition: the section map is
// populated and required categories are present, or ErrMissingSections (or
// a lower-level I/O error) is returned and no section data has been
// allocated yet.
func (img *Image) LoadSectionTable() error {
	if img.stage != stageHeaders {
		return ErrWrongStage
	}

	var seen category

	for idx := uint32(1); idx < uint32(img.shnum); idx++ {
		sh, err := img.readSectionHeader(idx)
		if err != nil {
			return fmt.Errorf("loader: reading section header %d: %w", idx, err)
		}
		name, err := img.readSectionName(sh.Name)
		if err != nil {
			return fmt.Errorf("loader: reading name of section %d: %w", idx, err)
		}

		matched := false
		for _, ls := range lookupSections {
			if !strings.HasPrefix(name, ls.prefix) {
				continue
			}
			matched = true
			if ls.isRel {
				img.upsertReloc(name[len(".rel"):], idx)
			} else {
				img.upsertPayload(name, idx, sh, ls.kind)
			}
			break
		}

		switch {
		case matched:
			// handled above

		case name == ".symtab":
			img.symtabOff = sh.Offset
			img.symCount = sh.Size / elf32.SymSize
			seen |= catSymTab

		case name == ".strtab":
			img.strtabOff = sh.Offset
			seen |= catStrTab

		case name == ".fapmeta":
			if err := img.loadManifestData(sh); err != nil {
				return err
			}
			seen |= catManifest

		case name == ".gnu_debuglink":
			if err := img.loadDebugLink(sh); err != nil {
				return err
			}

		default:
			// Unused: debug info, build-id notes, etc. Skipped per §4.4.
		}
	}

	if seen&catRequired != catRequired {
		img.log.Debug("classification missing required sections", "have", seen)
		return ErrMissingSections
	}

	img.log.Debug("classified sections", "names", img.sections.order)
	img.stage = stageSectionTable
	return nil
}

func (img *Image) upsertPayload(name string, idx uint32, sh *elf32.SectionHeader, kind sectionKind) {
	r := img.sections.upsert(name)
	if r.SecIdx != 0 {
		img.log.Debug("duplicate section name, last write wins", "name", name, "previous_idx", r.SecIdx, "new_idx", idx)
	}
	r.SecIdx = idx
	r.Align = sh.AddrAlign
	r.ShType = sh.Type
	r.Size = sh.Size
	r.Kind = kind
}

func (img *Image) upsertReloc(logicalName string, idx uint32) {
	r := img.sections.upsert(logicalName)
	if r.RelSecIdx != 0 {
		img.log.Debug("duplicate relocation section, last write wins", "name", logicalName, "previous_idx", r.RelSecIdx, "new_idx", idx)
	}
	r.RelSecIdx = idx
}

func (img *Image) loadDebugLink(sh *elf32.SectionHeader) error {
	buf := make([]byte, sh.Size)
	if err := img.cur.Seek(int64(sh.Offset)); err != nil {
		return fmt.Errorf("loader: seeking to debug link: %w", err)
	}
	if err := img.cur.ReadExact(buf); err != nil {
		return fmt.Errorf("loader: reading debug link: %w", err)
	}
	img.debugLink = buf
	return nil
}
