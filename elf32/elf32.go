// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elf32 declares the wire format of the 32-bit little-endian ARM
// ELF relocatable objects this loader consumes, and decodes them directly
// off a cursor.Cursor using github.com/lunixbochs/struc struct tags rather
// than hand-rolled encoding/binary byte shuffling.
package elf32

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
)

// Class/data-encoding/machine values this loader accepts. Anything else
// fails header validation when StrictValidation is requested.
const (
	ELFCLASS32 = 1
	ELFDATA2LSB = 1
	EM_ARM     = 40
	ET_REL     = 1
)

// Section types (sh_type) this loader cares about.
const (
	SHT_NULL     = 0
	SHT_PROGBITS = 1
	SHT_SYMTAB   = 2
	SHT_STRTAB   = 3
	SHT_REL      = 9
	SHT_NOBITS   = 8
)

// SHN_UNDEF marks an undefined (externally imported) symbol.
const SHN_UNDEF = 0

// ARM relocation types this loader implements (§4.4/§4.7 of the spec).
const (
	R_ARM_NONE       = 0
	R_ARM_ABS32      = 2
	R_ARM_THM_PC22   = 10
	R_ARM_THM_JUMP24 = 30
)

const (
	HeaderSize        = 52
	SectionHeaderSize = 40
	SymSize           = 16
	RelSize           = 8
)

var byteOrder = binary.LittleEndian

func unpackOptions() *struc.Options {
	return &struc.Options{Order: byteOrder}
}

// Header is the fixed-size ELF32 file header (Elf32_Ehdr).
type Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// ReadHeader decodes a Header from r, which must be positioned at offset 0.
func ReadHeader(r io.Reader) (*Header, error) {
	var h Header
	if err := struc.UnpackWithOptions(r, &h, unpackOptions()); err != nil {
		return nil, fmt.Errorf("elf32: reading file header: %w", err)
	}
	return &h, nil
}

// Valid reports whether h describes a format this loader supports: 32-bit,
// little-endian, ARM, relocatable.
func (h *Header) Valid() bool {
	return h.Ident[4] == ELFCLASS32 && h.Ident[5] == ELFDATA2LSB &&
		h.Machine == EM_ARM && h.Type == ET_REL
}

// PackHeader encodes h to w. It exists mainly to build synthetic ELF
// images for tests; the loader itself only ever reads.
func PackHeader(w io.Writer, h *Header) error {
	return struc.PackWithOptions(w, h, unpackOptions())
}

// SectionHeader is the fixed-size ELF32 section header (Elf32_Shdr).
type SectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	AddrAlign uint32
	EntSize   uint32
}

// ReadSectionHeader decodes one section header from r's current position;
// callers seek to the header first. It does not move the reader back afterward;
// callers that need to preserve cursor position (string table reads) do
// that themselves.
func ReadSectionHeader(r io.Reader) (*SectionHeader, error) {
	var sh SectionHeader
	if err := struc.UnpackWithOptions(r, &sh, unpackOptions()); err != nil {
		return nil, fmt.Errorf("elf32: reading section header: %w", err)
	}
	return &sh, nil
}

// PackSectionHeader encodes sh to w. See PackHeader.
func PackSectionHeader(w io.Writer, sh *SectionHeader) error {
	return struc.PackWithOptions(w, sh, unpackOptions())
}

// Sym is the fixed-size ELF32 symbol table entry (Elf32_Sym).
type Sym struct {
	Name  uint32
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

// ReadSym decodes one symbol table entry.
func ReadSym(r io.Reader) (*Sym, error) {
	var s Sym
	if err := struc.UnpackWithOptions(r, &s, unpackOptions()); err != nil {
		return nil, fmt.Errorf("elf32: reading symbol: %w", err)
	}
	return &s, nil
}

// PackSym encodes s to w. See PackHeader.
func PackSym(w io.Writer, s *Sym) error {
	return struc.PackWithOptions(w, s, unpackOptions())
}

// Rel is the fixed-size ELF32 REL relocation entry (Elf32_Rel). This
// loader only supports REL (implicit addend) objects, not RELA (§9 of the
// spec): the addend lives at the relocation site, not in the entry.
type Rel struct {
	Offset uint32
	Info   uint32
}

// ReadRel decodes one relocation entry.
func ReadRel(r io.Reader) (*Rel, error) {
	var rel Rel
	if err := struc.UnpackWithOptions(r, &rel, unpackOptions()); err != nil {
		return nil, fmt.Errorf("elf32: reading relocation: %w", err)
	}
	return &rel, nil
}

// PackRel encodes rel to w. See PackHeader.
func PackRel(w io.Writer, rel *Rel) error {
	return struc.PackWithOptions(w, rel, unpackOptions())
}

// Sym decomposes r_info into the symbol table index and relocation type,
// per ELF32_R_SYM/ELF32_R_TYPE.
func (r *Rel) Sym() uint32  { return r.Info >> 8 }
func (r *Rel) Type() uint32 { return r.Info & 0xff }
