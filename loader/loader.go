// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"log/slog"

	"github.com/lucaspwo/flipperzero-firmware/elfload/cursor"
)

// ManifestSize is the fixed size of the embedded application manifest
// record this loader copies out of the required ".fapmeta" section. The
// manifest's own layout is opaque to the core (§1): the host interprets
// these bytes, the loader only moves them.
const ManifestSize = 12

// DefaultYieldInterval is how many relocation entries the engine processes
// before calling Scheduler.Yield once (§4.7; matches the original
// RESOLVER_THREAD_YIELD_STEP).
const DefaultYieldInterval = 30

// stage tracks how far through the documented load order (§2, §6) an
// Image has progressed, so operations called out of order fail fast
// instead of reading garbage offsets.
type stage int

const (
	stageNew stage = iota
	stageHeaders
	stageSectionTable
	stageSections
)

// Image is the process-lifetime handle for one loaded application (§3). It
// is created by New, driven through LoadHeaders -> [LoadManifest] ->
// LoadSectionTable -> LoadSections by its owner, and released by Close.
// An Image is not safe for concurrent use: it is exclusively owned by
// whichever goroutine is loading it (§5).
type Image struct {
	cur       cursor.Cursor
	resolver  Resolver
	alloc     Allocator
	sched     Scheduler
	log       *slog.Logger
	strict    bool
	yieldStep int

	stage stage

	// Header fields (§4.2).
	entry       uint32
	shoff       uint32
	shnum       uint16
	shstrndx    uint16
	shstrOffset uint32

	// Symbol table descriptor (§3).
	symtabOff uint32
	symCount  uint32
	strtabOff uint32

	sections *sectionMap

	// relocCache maps a symbol-table index to its resolved runtime
	// address. Scoped to one load; cleared at the end regardless of
	// outcome (§3 invariant 3, §5).
	relocCache map[uint32]uint32

	manifest   [ManifestSize]byte
	haveManifest bool

	debugLink []byte

	// EntryPoint and MemoryMap are populated by LoadSections on success
	// (§4.8). Reading them before that returns zero values.
	EntryPoint uint32
	MemoryMap  []MemoryMapEntry
}

// Option configures an Image at construction time.
type Option func(*Image)

// WithLogger overrides the default logger (slog.Default()).
func WithLogger(log *slog.Logger) Option {
	return func(img *Image) { img.log = log }
}

// WithStrictValidation makes LoadHeaders reject files whose class, data
// encoding, or machine don't match 32-bit little-endian ARM. Spec.md marks
// this validation optional but recommended (§4.2); callers embedding this
// loader in a context where only trusted, pre-vetted objects are ever
// loaded may disable it.
func WithStrictValidation() Option {
	return func(img *Image) { img.strict = true }
}

// WithYieldInterval overrides DefaultYieldInterval.
func WithYieldInterval(n int) Option {
	return func(img *Image) {
		if n > 0 {
			img.yieldStep = n
		}
	}
}

// New creates an empty Image bound to cur, resolver, alloc, and sched. No
// I/O happens until LoadHeaders is called.
func New(cur cursor.Cursor, resolver Resolver, alloc Allocator, sched Scheduler, opts ...Option) *Image {
	img := &Image{
		cur:       cur,
		resolver:  resolver,
		alloc:     alloc,
		sched:     sched,
		log:       slog.Default(),
		yieldStep: DefaultYieldInterval,
		sections:  newSectionMap(),
	}
	for _, opt := range opts {
		opt(img)
	}
	return img
}

// Sections returns the logical section names this image classified,
// in iteration order. It's a read-only introspection hook for hosts and
// the CLI; the loader itself never consults the return value.
func (img *Image) Sections() []string {
	names := make([]string, len(img.sections.order))
	copy(names, img.sections.order)
	return names
}

// Section returns the SectionRecord for a logical name, or nil.
func (img *Image) Section(name string) *SectionRecord {
	r, ok := img.sections.get(name)
	if !ok {
		return nil
	}
	return r
}

// Manifest returns the raw bytes copied from ".fapmeta", or nil if
// LoadManifest/LoadSectionTable hasn't run yet.
func (img *Image) Manifest() []byte {
	if !img.haveManifest {
		return nil
	}
	out := make([]byte, ManifestSize)
	copy(out, img.manifest[:])
	return out
}

// DebugLink returns the raw bytes copied from ".gnu_debuglink", or nil if
// absent.
func (img *Image) DebugLink() []byte {
	return img.debugLink
}

// Close tears down the image (§4.9): every section buffer is released
// through the Allocator, the section map and relocation cache are
// cleared, and the debug-link and memory-map buffers are freed. Close is
// idempotent and safe to call on a partially constructed Image (e.g. after
// a failed LoadSections).
func (img *Image) Close() {
	if img.sections != nil {
		img.sections.forEach(func(r *SectionRecord) {
			if r.Data != nil {
				img.alloc.Free(r.Data)
				r.Data = nil
			}
		})
		img.sections.reset()
	}
	img.relocCache = nil
	img.debugLink = nil
	img.MemoryMap = nil
}
