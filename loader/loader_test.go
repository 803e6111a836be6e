// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lucaspwo/flipperzero-firmware/elfload/cursor"
	"github.com/lucaspwo/flipperzero-firmware/elfload/elf32"
	"github.com/lucaspwo/flipperzero-firmware/elfload/hostsim"
	"github.com/lucaspwo/flipperzero-firmware/elfload/loader"
)

func newImage(t *testing.T, data []byte, resolver *hostsim.MapResolver, opts ...loader.Option) *loader.Image {
	t.Helper()
	if resolver == nil {
		resolver = hostsim.NewMapResolver(nil)
	}
	img := loader.New(cursor.NewMemory(data), resolver, hostsim.NewHeapAllocator(), hostsim.NoopScheduler{}, opts...)
	t.Cleanup(img.Close)
	return img
}

// loadThrough drives an Image through LoadHeaders and LoadSectionTable,
// the two stages every test needs regardless of what it's exercising next.
func loadThrough(t *testing.T, img *loader.Image) {
	t.Helper()
	require.NoError(t, img.LoadHeaders())
	require.NoError(t, img.LoadSectionTable())
}

func TestMinimalNoImportObject(t *testing.T) {
	fx := &elfFixture{
		sections: []section{
			{name: ".text", data: []byte{0x70, 0x47, 0x00, 0xBF}},
		},
	}
	img := newImage(t, fx.build(), nil)
	loadThrough(t, img)

	status, err := img.LoadSections()
	require.NoError(t, err)
	require.Equal(t, loader.StatusSuccess, status)

	require.Len(t, img.MemoryMap, 1)
	require.Equal(t, ".text", img.MemoryMap[0].Name)
	require.Equal(t, img.MemoryMap[0].Address, img.EntryPoint)
}

func TestAbs32Relocation(t *testing.T) {
	const initialValue = uint32(0x10)
	const symbolValue = uint32(0x4)

	site := make([]byte, 4)
	binary.LittleEndian.PutUint32(site, initialValue)

	fx := &elfFixture{
		sections: []section{
			{name: ".text", data: []byte{0x70, 0x47, 0x00, 0xBF}},
			{name: ".rodata", data: []byte{1, 2, 3, 4}},
			{
				name: ".data",
				data: site,
				rels: []rel{{offset: 0, symIdx: 1, typ: elf32.R_ARM_ABS32}},
			},
		},
		symbols: []symbol{
			{name: "target", value: symbolValue, section: ".rodata"},
		},
	}
	img := newImage(t, fx.build(), nil)
	loadThrough(t, img)

	status, err := img.LoadSections()
	require.NoError(t, err)
	require.Equal(t, loader.StatusSuccess, status)

	var rodataAddr uint32
	for _, e := range img.MemoryMap {
		if e.Name == ".rodata" {
			rodataAddr = e.Address
		}
	}
	require.NotZero(t, rodataAddr)

	got := binary.LittleEndian.Uint32(img.Section(".data").Data)
	require.Equal(t, initialValue+rodataAddr+symbolValue, got)
}

// TestThumbJump24SelfReferenceStaysCanonical relocates a BL instruction
// whose target is the instruction's own address (a common pattern for a
// placeholder "call to self" the linker leaves for the loader to fix up).
// Because the resolved symbol address equals the relocation site's own
// address, the branch offset contribution is zero and the canonical
// encoding this engine produces must equal its canonical input bit for
// bit — the same invariant the original firmware's round trip relies on.
func TestThumbJump24SelfReferenceStaysCanonical(t *testing.T) {
	// Canonical Thumb-2 BL encoding for branch offset 0: upper=0xF000,
	// lower=0xF800 (T1 encoding, S=0, J1=J2=1, imm10=imm11=0).
	placeholder := []byte{0x00, 0xF0, 0x00, 0xF8}

	text := append([]byte{0, 0, 0, 0}, placeholder...)

	fx := &elfFixture{
		sections: []section{
			{
				name: ".text",
				data: text,
				rels: []rel{{offset: 4, symIdx: 1, typ: elf32.R_ARM_THM_JUMP24}},
			},
		},
		symbols: []symbol{
			{name: "self", value: 4, section: ".text"},
		},
	}
	img := newImage(t, fx.build(), nil)
	loadThrough(t, img)

	status, err := img.LoadSections()
	require.NoError(t, err)
	require.Equal(t, loader.StatusSuccess, status)

	got := img.Section(".text").Data[4:8]
	require.Equal(t, placeholder, got)
}

func TestUndefinedSymbolReturnsMissingImports(t *testing.T) {
	site := make([]byte, 4)

	fx := &elfFixture{
		sections: []section{
			{name: ".text", data: []byte{0x70, 0x47, 0x00, 0xBF}},
			{
				name: ".data",
				data: site,
				rels: []rel{{offset: 0, symIdx: 1, typ: elf32.R_ARM_ABS32}},
			},
		},
		symbols: []symbol{
			{name: "missing_from_host"},
		},
	}
	img := newImage(t, fx.build(), nil)
	loadThrough(t, img)

	status, err := img.LoadSections()
	require.Error(t, err)
	require.True(t, errors.Is(err, loader.ErrUndefinedSymbol))
	require.Equal(t, loader.StatusMissingImports, status)
}

func TestMissingRequiredSectionReturnsError(t *testing.T) {
	fx := &elfFixture{
		sections: []section{
			{name: ".text", data: []byte{0x70, 0x47, 0x00, 0xBF}},
		},
	}
	b := fx.build()

	// elfFixture.build always emits .fapmeta, .symtab, and .strtab, so to
	// exercise the missing-category path we blank out the manifest
	// section's name: the classifier matches purely on section name, so
	// an empty name ("" at shstrtab offset 0) falls through to the
	// default "Unused" case and the manifest category is never set. The
	// section header table sits after shoff; .fapmeta is always the
	// second-from-last entry here (no .rel sections precede it, and
	// .shstrtab is last), so overwrite its sh_name field in place.
	shoff := binary.LittleEndian.Uint32(b[32:36])
	shnum := binary.LittleEndian.Uint16(b[48:50])
	fapmetaHdr := int(shoff) + (int(shnum)-2)*elf32.SectionHeaderSize
	binary.LittleEndian.PutUint32(b[fapmetaHdr:fapmetaHdr+4], 0) // sh_name = ""

	img := newImage(t, b, nil)
	require.NoError(t, img.LoadHeaders())
	err := img.LoadSectionTable()
	require.ErrorIs(t, err, loader.ErrMissingSections)
}

func TestManifestTooSmall(t *testing.T) {
	fx := &elfFixture{
		sections: []section{
			{name: ".text", data: []byte{0x70, 0x47, 0x00, 0xBF}},
		},
		manifest: []byte{1, 2, 3}, // shorter than ManifestSize
	}
	img := newImage(t, fx.build(), nil)
	require.NoError(t, img.LoadHeaders())
	err := img.LoadSectionTable()
	require.ErrorIs(t, err, loader.ErrManifestTooSmall)
}

func TestWrongStageOrder(t *testing.T) {
	fx := &elfFixture{
		sections: []section{
			{name: ".text", data: []byte{0x70, 0x47, 0x00, 0xBF}},
		},
	}
	img := newImage(t, fx.build(), nil)

	err := img.LoadSectionTable()
	require.ErrorIs(t, err, loader.ErrWrongStage)

	_, err = img.LoadSections()
	require.ErrorIs(t, err, loader.ErrWrongStage)
}

func TestDuplicateSectionNameLastWriteWins(t *testing.T) {
	fx := &elfFixture{
		sections: []section{
			{name: ".text", data: []byte{1, 1, 1, 1}},
			{name: ".text", data: []byte{2, 2, 2, 2}},
		},
	}
	img := newImage(t, fx.build(), nil)
	loadThrough(t, img)

	status, err := img.LoadSections()
	require.NoError(t, err)
	require.Equal(t, loader.StatusSuccess, status)

	require.Equal(t, []byte{2, 2, 2, 2}, img.Section(".text").Data)
	require.Len(t, img.Sections(), 1)
}
