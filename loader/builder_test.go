// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader_test

import (
	"bytes"

	"github.com/lucaspwo/flipperzero-firmware/elfload/elf32"
)

// section describes one payload section to synthesize. A zero-value Data
// with ShType == elf32.SHT_NOBITS models ".bss".
type section struct {
	name   string
	shType uint32
	align  uint32
	data   []byte
	rels   []rel
}

type rel struct {
	offset uint32
	symIdx uint32
	typ    uint32
}

type symbol struct {
	name    string
	value   uint32
	section string // logical name from sections, or "" for SHN_UNDEF
}

// elfFixture assembles a minimal but structurally valid 32-bit ARM ET_REL
// ELF object in memory, laid out the way a real linker would: header,
// then every section's raw bytes back to back, then the section header
// table at the end. It exists purely to drive loader tests without a real
// toolchain or fixture files on disk.
type elfFixture struct {
	sections []section
	symbols  []symbol
	manifest []byte // defaults to ManifestSize zero bytes if nil
}

const fixtureManifestSize = 12

func (f *elfFixture) build() []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, elf32.HeaderSize)) // placeholder, patched at the end

	type laidOut struct {
		name   string
		shType uint32
		flags  uint32
		offset uint32
		size   uint32
		align  uint32
		link   uint32
		info   uint32
		entsz  uint32
	}
	var laid []laidOut
	laid = append(laid, laidOut{}) // SHN_UNDEF / null section

	write := func(b []byte) uint32 {
		off := uint32(buf.Len())
		buf.Write(b)
		return off
	}

	secIdx := map[string]int{}

	for _, s := range f.sections {
		data := s.data
		shType := s.shType
		if shType == 0 {
			shType = elf32.SHT_PROGBITS
		}
		var off uint32
		if shType != elf32.SHT_NOBITS {
			off = write(data)
		} else {
			off = uint32(buf.Len())
		}
		align := s.align
		if align == 0 {
			align = 1
		}
		secIdx[s.name] = len(laid)
		laid = append(laid, laidOut{name: s.name, shType: shType, offset: off, size: uint32(len(data)), align: align})
	}

	for _, s := range f.sections {
		if len(s.rels) == 0 {
			continue
		}
		var rb bytes.Buffer
		for _, r := range s.rels {
			rec := elf32.Rel{Offset: r.offset, Info: (r.symIdx << 8) | (r.typ & 0xff)}
			elf32.PackRel(&rb, &rec)
		}
		off := write(rb.Bytes())
		laid = append(laid, laidOut{
			name: ".rel" + s.name, shType: elf32.SHT_REL, offset: off,
			size: uint32(rb.Len()), align: 4, info: uint32(secIdx[s.name]),
		})
	}

	// .strtab: symbol names, "" first.
	var strtab bytes.Buffer
	strtab.WriteByte(0)
	symNameOff := map[string]uint32{}
	for _, sym := range f.symbols {
		if sym.name == "" {
			continue
		}
		if _, ok := symNameOff[sym.name]; ok {
			continue
		}
		symNameOff[sym.name] = uint32(strtab.Len())
		strtab.WriteString(sym.name)
		strtab.WriteByte(0)
	}
	strtabOff := write(strtab.Bytes())

	// .symtab: null entry first, then every symbol.
	var symtab bytes.Buffer
	elf32.PackSym(&symtab, &elf32.Sym{})
	for _, sym := range f.symbols {
		shndx := uint16(elf32.SHN_UNDEF)
		if sym.section != "" {
			shndx = uint16(secIdx[sym.section])
		}
		elf32.PackSym(&symtab, &elf32.Sym{Name: symNameOff[sym.name], Value: sym.value, Shndx: shndx})
	}
	symtabOff := write(symtab.Bytes())
	symtabSize := uint32(symtab.Len())

	manifest := f.manifest
	if manifest == nil {
		manifest = make([]byte, fixtureManifestSize)
	}
	manifestOff := write(manifest)

	// .shstrtab: every section name including the meta sections.
	metaNames := []string{".symtab", ".strtab", ".fapmeta", ".shstrtab"}
	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	shNameOff := map[string]uint32{}
	nameOf := func(name string) uint32 {
		if off, ok := shNameOff[name]; ok {
			return off
		}
		off := uint32(shstrtab.Len())
		shNameOff[name] = off
		shstrtab.WriteString(name)
		shstrtab.WriteByte(0)
		return off
	}
	for _, l := range laid[1:] {
		nameOf(l.name)
	}
	for _, n := range metaNames {
		nameOf(n)
	}
	shstrtabOff := write(shstrtab.Bytes())

	laid = append(laid, laidOut{name: ".symtab", shType: elf32.SHT_SYMTAB, offset: symtabOff, size: symtabSize, align: 4, link: uint32(len(laid) + 1)})
	laid = append(laid, laidOut{name: ".strtab", shType: elf32.SHT_STRTAB, offset: strtabOff, size: uint32(strtab.Len()), align: 1})
	laid = append(laid, laidOut{name: ".fapmeta", shType: elf32.SHT_PROGBITS, offset: manifestOff, size: uint32(len(manifest)), align: 1})
	shstrndx := len(laid)
	laid = append(laid, laidOut{name: ".shstrtab", shType: elf32.SHT_STRTAB, offset: shstrtabOff, size: uint32(shstrtab.Len()), align: 1})

	shoff := uint32(buf.Len())
	for _, l := range laid {
		var name uint32
		if l.name != "" {
			name = nameOf(l.name)
		}
		sh := elf32.SectionHeader{
			Name: name, Type: l.shType, Offset: l.offset, Size: l.size,
			AddrAlign: l.align, Link: l.link, Info: l.info,
		}
		elf32.PackSectionHeader(&buf, &sh)
	}

	out := buf.Bytes()
	hdr := elf32.Header{
		Ident:    [16]byte{0x7f, 'E', 'L', 'F', elf32.ELFCLASS32, elf32.ELFDATA2LSB, 1},
		Type:     elf32.ET_REL,
		Machine:  elf32.EM_ARM,
		Version:  1,
		Entry:    0,
		Shoff:    shoff,
		Ehsize:   elf32.HeaderSize,
		Shentsize: elf32.SectionHeaderSize,
		Shnum:    uint16(len(laid)),
		Shstrndx: uint16(shstrndx),
	}
	var hb bytes.Buffer
	elf32.PackHeader(&hb, &hdr)
	copy(out[:elf32.HeaderSize], hb.Bytes())

	return out
}
