// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostsim

// CountingScheduler satisfies loader.Scheduler by recording how many times
// Yield was called, so tests can assert the relocation engine actually
// paced itself (§4.7), without depending on a real RTOS tick.
type CountingScheduler struct {
	Yields int
}

// Yield implements loader.Scheduler.
func (s *CountingScheduler) Yield() { s.Yields++ }

// NoopScheduler satisfies loader.Scheduler by doing nothing, for hosts
// that already run under a preemptive scheduler and have no cooperative
// yield point to honor.
type NoopScheduler struct{}

// Yield implements loader.Scheduler.
func (NoopScheduler) Yield() {}
