// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package loader

import "unsafe"

// sectionBase returns the runtime address of r's loaded buffer: the actual
// address the Allocator handed back, the same way the firmware this loader
// is modeled on treats a heap allocation's pointer as its link-time base
// address. A nil or empty buffer (not yet loaded, or a zero-size section)
// has no meaningful address and returns 0.
func sectionBase(r *SectionRecord) uint32 {
	if len(r.Data) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(&r.Data[0])))
}
