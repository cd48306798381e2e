// Package procvm is the Process VM State component of spec.md §4.5/§4.6:
// the lifecycle of a per-process page table and private wake semaphore.
package procvm

import (
	"fmt"
	"sync"

	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/pagetable"
)

// Sentinel marks a free process-table slot.
const Sentinel = -1

// Record is one process's VM state: its page table and the private
// semaphore the fault handler blocks the process on (spec.md §3).
type Record struct {
	Pid        int
	PageTable  *pagetable.PageTable
	PrivateSem *kernel.Semaphore
}

// Table is the fixed-size, pid-indexed process VM table. maxProc bounds
// how many processes can have VM state at once, mirroring USLOSS's
// MAXPROC; pids here are assumed to lie in [0, maxProc), as in the source
// this was distilled from.
type Table struct {
	mu      sync.Mutex
	pages   int
	records []*Record // nil entry == free slot
}

// NewTable allocates an empty table; each process's page table, once
// forked, has the given number of virtual pages.
func NewTable(maxProc, pages int) *Table {
	return &Table{pages: pages, records: make([]*Record, maxProc)}
}

// Fork creates VM state for pid: a zeroed page table and a fresh private
// semaphore (spec.md §4.6's onFork). Forking a pid that already has a
// record, or a pid outside [0, maxProc), returns an error.
func (t *Table) Fork(pid int) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pid < 0 || pid >= len(t.records) {
		return nil, fmt.Errorf("procvm: pid %d out of MAXPROC range", pid)
	}
	if t.records[pid] != nil {
		return nil, fmt.Errorf("procvm: pid %d already has VM state", pid)
	}
	r := &Record{
		Pid:        pid,
		PageTable:  pagetable.New(t.pages),
		PrivateSem: kernel.NewSemaphore(0),
	}
	t.records[pid] = r
	return r, nil
}

// Get returns pid's VM record, or ok=false if it has none.
func (t *Table) Get(pid int) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pid < 0 || pid >= len(t.records) {
		return nil, false
	}
	r := t.records[pid]
	return r, r != nil
}

// Quit frees pid's slot (spec.md §4.6's onQuit, minus the MMU/frame
// teardown the context-switch manager performs first).
func (t *Table) Quit(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pid >= 0 && pid < len(t.records) {
		t.records[pid] = nil
	}
}
