// Package pagetable implements spec.md §3/§4.3: the page-table entry
// state machine, the per-process page table, the frame table, and the
// clock-algorithm replacement policy that lives on the frame table.
package pagetable

import "sync"

// Sentinel marks an absent frame, disk block, or occupant. Spec.md's -1
// sentinel, expressed as a named constant instead of a magic number.
const Sentinel = -1

// State is a PTE's residency state (spec.md §4.8).
type State int

const (
	Unused State = iota
	Inmem
	Ondisk
)

func (s State) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Inmem:
		return "INMEM"
	case Ondisk:
		return "ONDISK"
	default:
		return "INVALID"
	}
}

// PTE is one page table entry: state, resident frame (if any), and the
// swap block the page has ever been written to (if any).
type PTE struct {
	State     State
	Frame     int
	DiskBlock int
}

func unusedPTE() PTE { return PTE{State: Unused, Frame: Sentinel, DiskBlock: Sentinel} }

// PageTable is one process's fixed-size array of PTEs. A mutex guards it
// because, unlike the single-CPU cooperative kernel spec.md assumes, this
// Go translation runs pagers and the context-switch hooks as real
// concurrent goroutines; the mutex makes the translation race-free without
// changing which writes are logically permitted (spec.md §5's discipline
// already establishes that concurrent writers to one table never
// conflict in content, only in the absence of a memory barrier Go needs
// explicitly).
type PageTable struct {
	mu      sync.Mutex
	entries []PTE
}

// New allocates a page table of the given length, all entries UNUSED.
func New(pages int) *PageTable {
	pt := &PageTable{entries: make([]PTE, pages)}
	for i := range pt.entries {
		pt.entries[i] = unusedPTE()
	}
	return pt
}

// Len returns the number of virtual pages.
func (pt *PageTable) Len() int { return len(pt.entries) }

// Get returns a copy of the PTE for page p.
func (pt *PageTable) Get(p int) PTE {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.entries[p]
}

// SetInmem transitions page p to INMEM, resident in frame.
func (pt *PageTable) SetInmem(p, frame int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	e := &pt.entries[p]
	e.State = Inmem
	e.Frame = frame
}

// SetOndisk transitions page p to ONDISK, recording the swap block it was
// written to. Called after a dirty eviction completes, or when the page
// had already been written out and is evicted clean (diskBlock is
// unchanged in that case — pass the PTE's existing DiskBlock).
func (pt *PageTable) SetOndisk(p, diskBlock int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	e := &pt.entries[p]
	e.State = Ondisk
	e.Frame = Sentinel
	e.DiskBlock = diskBlock
}

// Reset restores every entry to UNUSED, for process quit / table reuse.
func (pt *PageTable) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	for i := range pt.entries {
		pt.entries[i] = unusedPTE()
	}
}

// ResidentPages returns the virtual pages currently INMEM, used by the
// context-switch hooks to walk a process's mapped pages.
func (pt *PageTable) ResidentPages() []int {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	var pages []int
	for p, e := range pt.entries {
		if e.State == Inmem && e.Frame != Sentinel {
			pages = append(pages, p)
		}
	}
	return pages
}
