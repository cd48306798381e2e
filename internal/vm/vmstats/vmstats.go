// Package vmstats is the VM Statistics component of spec.md §3: global
// counters updated under one mutex. Each field uses gvisor.dev/gvisor's
// atomicbitops.Int64, the same type gVisor's own pkg/sentry/mm uses for
// memory-manager counters — here for its convenient zero-value Load/Add
// API, with the package mutex (not the atomic operations themselves) as
// the authority spec.md §5 requires ("every field update under the lock").
package vmstats

import (
	"fmt"
	"sync"

	"gvisor.dev/gvisor/pkg/atomicbitops"
)

// Stats holds the counters named in spec.md §3.
type Stats struct {
	mu sync.Mutex

	Pages          atomicbitops.Int64
	Frames         atomicbitops.Int64
	DiskBlocks     atomicbitops.Int64
	FreeFrames     atomicbitops.Int64
	FreeDiskBlocks atomicbitops.Int64
	Switches       atomicbitops.Int64
	Faults         atomicbitops.Int64
	New            atomicbitops.Int64
	PageIns        atomicbitops.Int64
	PageOuts       atomicbitops.Int64
	Replaced       atomicbitops.Int64
}

// New initializes a Stats for the given geometry, mirroring
// original_source/phase5utility.c's initVmStats.
func New(pages, frames, diskBlocks int) *Stats {
	s := &Stats{}
	s.Pages.Store(int64(pages))
	s.Frames.Store(int64(frames))
	s.DiskBlocks.Store(int64(diskBlocks))
	s.FreeFrames.Store(int64(frames))
	s.FreeDiskBlocks.Store(int64(diskBlocks))
	return s
}

// IncFaults increments the fault counter (spec.md I6: exactly once per
// delivered hardware fault interrupt).
func (s *Stats) IncFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Faults.Add(1)
}

// IncSwitches increments the context-switch counter (spec.md P4).
func (s *Stats) IncSwitches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Switches.Add(1)
}

// IncNew increments the distinct-first-fault counter (spec.md P5).
func (s *Stats) IncNew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.New.Add(1)
}

// IncPageIns increments the page-in counter.
func (s *Stats) IncPageIns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PageIns.Add(1)
}

// IncPageOuts increments the page-out counter.
func (s *Stats) IncPageOuts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PageOuts.Add(1)
}

// IncReplaced increments the replaced-page counter (a frame reused for a
// different page, whether or not it required I/O).
func (s *Stats) IncReplaced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Replaced.Add(1)
}

// AdjustFreeFrames adds delta (positive or negative) to the free-frame
// count.
func (s *Stats) AdjustFreeFrames(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FreeFrames.Add(delta)
}

// AdjustFreeDiskBlocks adds delta (positive or negative) to the
// free-disk-block count.
func (s *Stats) AdjustFreeDiskBlocks(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FreeDiskBlocks.Add(delta)
}

// Snapshot is an immutable copy of the counters, for printing or exposing
// over the stats dashboard's HTTP endpoint.
type Snapshot struct {
	Pages, Frames, DiskBlocks               int64
	FreeFrames, FreeDiskBlocks               int64
	Switches, Faults, New                    int64
	PageIns, PageOuts, Replaced              int64
}

// Snapshot takes a consistent point-in-time copy of every counter.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Pages:          s.Pages.Load(),
		Frames:         s.Frames.Load(),
		DiskBlocks:     s.DiskBlocks.Load(),
		FreeFrames:     s.FreeFrames.Load(),
		FreeDiskBlocks: s.FreeDiskBlocks.Load(),
		Switches:       s.Switches.Load(),
		Faults:         s.Faults.Load(),
		New:            s.New.Load(),
		PageIns:        s.PageIns.Load(),
		PageOuts:       s.PageOuts.Load(),
		Replaced:       s.Replaced.Load(),
	}
}

// String renders the snapshot the way original_source/phase5.c's
// PrintStats does, field for field.
func (sn Snapshot) String() string {
	return fmt.Sprintf(
		"VmStats\npages:          %d\nframes:         %d\ndiskBlocks:     %d\n"+
			"freeFrames:     %d\nfreeDiskBlocks: %d\nswitches:       %d\n"+
			"faults:         %d\nnew:            %d\npageIns:        %d\n"+
			"pageOuts:       %d\nreplaced:       %d\n",
		sn.Pages, sn.Frames, sn.DiskBlocks, sn.FreeFrames, sn.FreeDiskBlocks,
		sn.Switches, sn.Faults, sn.New, sn.PageIns, sn.PageOuts, sn.Replaced)
}
