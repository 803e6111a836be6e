// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"fmt"

	"github.com/lucaspwo/flipperzero-firmware/elfload/cursor"
	"github.com/lucaspwo/flipperzero-firmware/elfload/elf32"
)

// resolveSymbol returns the runtime address a relocation's symbol-table
// index resolves to (§4.6). Results are memoized in img.relocCache for the
// lifetime of this load only — never across images, never across Close
// (§3 invariant 3, §5).
//
// An undefined symbol the Resolver can't find returns ErrUndefinedSymbol
// wrapping the symbol's name; the caller treats this as an accumulable,
// non-fatal condition.
func (img *Image) resolveSymbol(symIdx uint32) (uint32, error) {
	if addr, ok := img.relocCache[symIdx]; ok {
		return addr, nil
	}

	sym, err := img.readSym(symIdx)
	if err != nil {
		return 0, err
	}

	var addr uint32
	var kind symKind

	if sym.Shndx == elf32.SHN_UNDEF {
		name, err := img.readCString(int64(img.strtabOff) + int64(sym.Name))
		if err != nil {
			return 0, fmt.Errorf("loader: reading name of symbol %d: %w", symIdx, err)
		}
		resolved, ok := img.resolver.Resolve(name)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUndefinedSymbol, name)
		}
		addr, kind = resolved, symUndef
	} else {
		r, ok := img.sections.bySecIdx(uint32(sym.Shndx))
		if !ok {
			return 0, fmt.Errorf("loader: symbol %d references unclassified section %d", symIdx, sym.Shndx)
		}
		addr, kind = sectionBase(r)+sym.Value, kindOfSection(r.Name)
	}

	img.log.Debug("resolved symbol", "index", symIdx, "kind", kind, "addr", addr)

	if img.relocCache == nil {
		img.relocCache = make(map[uint32]uint32)
	}
	img.relocCache[symIdx] = addr
	return addr, nil
}

// readSym decodes the symIdx'th entry of the symbol table.
func (img *Image) readSym(symIdx uint32) (*elf32.Sym, error) {
	off := int64(img.symtabOff) + int64(symIdx)*elf32.SymSize
	if err := img.cur.Seek(off); err != nil {
		return nil, fmt.Errorf("loader: seeking to symbol %d: %w", symIdx, err)
	}
	sym, err := elf32.ReadSym(cursor.AsReader(img.cur))
	if err != nil {
		return nil, fmt.Errorf("loader: reading symbol %d: %w", symIdx, err)
	}
	return sym, nil
}
