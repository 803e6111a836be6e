// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import (
	"bytes"
	"fmt"
)

// stringBlockSize is how many bytes readCString pulls per cursor read
// while scanning for a NUL terminator. Most section/symbol names fit in
// one block.
const stringBlockSize = 32

// readCString reads a NUL-terminated name starting at an absolute file
// offset (§4.3), concatenating stringBlockSize-byte blocks until it sees a
// NUL or runs out of file. It restores the cursor to its previous position
// before returning, so callers mid-loop over the section or symbol table
// don't lose their place.
func (img *Image) readCString(offset int64) (string, error) {
	old := img.cur.Tell()
	defer img.cur.Seek(old)

	if err := img.cur.Seek(offset); err != nil {
		return "", fmt.Errorf("loader: seeking to string at 0x%x: %w", offset, err)
	}

	var out []byte
	block := make([]byte, stringBlockSize)
	for {
		if err := img.cur.ReadExact(block); err != nil {
			// A short read here just means the string runs to EOF
			// without a terminator; salvage what was actually read
			// isn't possible through the ReadExact contract, so we
			// treat it as the end of the string only if we've
			// already captured at least one full block's worth.
			// Most ELF string tables are NUL-padded to the section
			// end, so in practice this path isn't hit.
			if len(out) == 0 {
				return "", fmt.Errorf("loader: reading string at 0x%x: %w", offset, err)
			}
			break
		}
		if i := bytes.IndexByte(block, 0); i >= 0 {
			out = append(out, block[:i]...)
			break
		}
		out = append(out, block...)
	}
	return string(out), nil
}
