// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

// sectionKind identifies which of the four payload categories a section
// belongs to, independent of its exact name: ".text.startup" and ".text"
// are both kindText. classify.go assigns this from the prefix that
// matched; gdbRelevant uses it instead of comparing names, matching the
// original loader's SectionTypeGdbSection bitmask (which is type-based,
// not name-based).
type sectionKind uint8

const (
	kindNone sectionKind = iota
	kindText
	kindRodata
	kindData
	kindBss
)

// SectionRecord is one logical section of a loaded image (e.g. ".text",
// ".data"), pairing the payload section with its relocation section and,
// once the Section Loader (§4.5) has run, the runtime image itself.
//
// A SectionRecord uniquely owns Data: no other record or the memory map
// shares the underlying array, so teardown can free each one independently
// (§4.9, §9 "Ownership of section bytes").
type SectionRecord struct {
	// Name is the logical name (the ".rel" prefix is stripped before
	// insertion — see classify.go).
	Name string

	// SecIdx is the section-table index of the payload section, or 0 if
	// absent (e.g. a ".rel.bss" with no corresponding ".bss" would be
	// unusual, but the sentinel exists for exactly that case).
	SecIdx uint32

	// RelSecIdx is the section-table index of the paired relocation
	// section, or 0 if this section has no relocations.
	RelSecIdx uint32

	// Align is the sh_addralign declared for the payload section. Data,
	// once allocated, is aligned to this (invariant P2).
	Align uint32

	// ShType is the sh_type of the payload section (PROGBITS, NOBITS,
	// ...), recorded so the Section Loader knows whether to read bytes
	// from file or zero-fill.
	ShType uint32

	// Size is the sh_size of the payload section.
	Size uint32

	// Kind is the payload category this section's name prefix matched
	// (kindNone for non-payload records such as bare relocation targets
	// that never got a payload counterpart).
	Kind sectionKind

	// Data is the loaded runtime image, or nil until the Section Loader
	// runs (or if Size == 0).
	Data []byte
}

// gdbRelevant reports whether this section belongs in the published memory
// map (§4.8: any .text*/.rodata*/.data*/.bss* section, by prefix, and only
// once loaded).
func (s *SectionRecord) gdbRelevant() bool {
	return s.Kind != kindNone && s.Data != nil
}

// sectionMap is the "keyed container with iteration" the spec's design
// notes call for (§9): a small map keyed by logical section name that also
// remembers first-insertion order, so the published memory map iterates
// consistently with however the classifier walked the section table.
//
// Re-inserting under a name that already exists overwrites in place
// (last-write-wins, per the spec's Open Question on duplicate logical
// names) without disturbing that name's position in the iteration order.
type sectionMap struct {
	order []string
	byKey map[string]*SectionRecord
}

func newSectionMap() *sectionMap {
	return &sectionMap{byKey: make(map[string]*SectionRecord)}
}

// upsert returns the record for name, creating it (and appending it to the
// iteration order) if it doesn't already exist.
func (m *sectionMap) upsert(name string) *SectionRecord {
	if r, ok := m.byKey[name]; ok {
		return r
	}
	r := &SectionRecord{Name: name}
	m.byKey[name] = r
	m.order = append(m.order, name)
	return r
}

func (m *sectionMap) get(name string) (*SectionRecord, bool) {
	r, ok := m.byKey[name]
	return r, ok
}

// bySecIdx finds the record whose payload section index equals idx. It's a
// linear scan: the section map only ever holds a handful of entries
// (.text/.rodata/.data/.bss), so this is cheaper than maintaining a second
// reverse index.
func (m *sectionMap) bySecIdx(idx uint32) (*SectionRecord, bool) {
	for _, name := range m.order {
		r := m.byKey[name]
		if r.SecIdx == idx {
			return r, true
		}
	}
	return nil, false
}

// forEach visits records in insertion order.
func (m *sectionMap) forEach(f func(*SectionRecord)) {
	for _, name := range m.order {
		f(m.byKey[name])
	}
}

func (m *sectionMap) reset() {
	m.order = nil
	m.byKey = make(map[string]*SectionRecord)
}

// MemoryMapEntry is one published {name, address} pair (§4.8, §6).
type MemoryMapEntry struct {
	Name    string
	Address uint32
}
