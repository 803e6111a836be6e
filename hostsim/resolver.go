// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hostsim provides reference implementations of the collaborators
// loader.Image depends on (Resolver, Allocator, Scheduler): the pieces the
// core spec explicitly leaves to the host platform. They're simple enough
// to use directly in tests and in the CLI, but a real embedded host would
// replace all three with code backed by its actual symbol table, heap, and
// RTOS scheduler.
package hostsim

// MapResolver resolves symbol names against an in-memory table. It's the
// simplest possible Resolver and has no internal locking: callers that add
// entries with Set while another goroutine resolves must synchronize
// themselves.
type MapResolver struct {
	symbols map[string]uint32
}

// NewMapResolver returns a Resolver backed by symbols, which maps an
// external symbol name to its runtime address.
func NewMapResolver(symbols map[string]uint32) *MapResolver {
	m := &MapResolver{symbols: make(map[string]uint32, len(symbols))}
	for name, addr := range symbols {
		m.symbols[name] = addr
	}
	return m
}

// Resolve implements loader.Resolver.
func (m *MapResolver) Resolve(name string) (uint32, bool) {
	addr, ok := m.symbols[name]
	return addr, ok
}

// Set adds or overwrites one symbol. Useful for building up a table
// incrementally in test fixtures.
func (m *MapResolver) Set(name string, addr uint32) {
	m.symbols[name] = addr
}
