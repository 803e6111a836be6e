// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostsim

import (
	"fmt"
	"unsafe"
)

// HeapAllocator satisfies loader.Allocator on top of the Go heap. It
// over-allocates to guarantee the requested alignment, the same trick a
// bare-metal aligned_alloc implementation uses over a plain malloc.
type HeapAllocator struct{}

// NewHeapAllocator returns an Allocator that serves every request from the
// Go heap.
func NewHeapAllocator() *HeapAllocator { return &HeapAllocator{} }

// Alloc implements loader.Allocator. align must be a power of two; 0 or 1
// are treated as "no alignment requirement" (byte granularity).
func (a *HeapAllocator) Alloc(size, align uint32) ([]byte, error) {
	if align&(align-1) != 0 {
		return nil, fmt.Errorf("hostsim: alignment %d is not a power of two", align)
	}
	if align <= 1 {
		return make([]byte, size), nil
	}

	raw := make([]byte, uint64(size)+uint64(align)-1)
	base := uintptr(unsafe.Pointer(&raw[0]))
	pad := int((uintptr(align) - base%uintptr(align)) % uintptr(align))
	return raw[pad : pad+int(size) : pad+int(size)], nil
}

// Free implements loader.Allocator. The Go garbage collector reclaims the
// backing array once buf (and its over-allocated sibling slice, if any)
// are no longer referenced; Free exists only to satisfy the interface and
// to let callers record the release for diagnostics.
func (a *HeapAllocator) Free(buf []byte) {}
