package pagetable

import (
	"sync"

	"github.com/tinyrange/vmpager/internal/kernel"
)

// AccessProvider is the slice of the MMU abstraction the clock algorithm
// needs: reading and clearing a frame's REF bit. Satisfied by
// *mmuiface.MMU; expressed as an interface here so pagetable does not
// import mmuiface (mmuiface already depends on the lower-level kernel
// package, and pagetable must stay a leaf — see spec.md §9's component
// ordering).
type AccessProvider interface {
	GetAccess(frame int) kernel.AccessBits
	SetAccess(frame int, bits kernel.AccessBits)
}

// frameEntry is one physical frame's occupancy record (spec.md §3).
type frameEntry struct {
	Page   int
	Pid    int
	Locked bool
}

func freeFrame() frameEntry { return frameEntry{Page: Sentinel, Pid: Sentinel} }

// FrameTable is the physical-frame-indexed array plus the clock hand
// (nextCheckedFrame), guarded by a single mutex (spec.md §5's framesMutex).
type FrameTable struct {
	mu     sync.Mutex
	frames []frameEntry
	next   int
}

// NewFrameTable allocates a frame table of the given size, all frames free
// and unlocked.
func NewFrameTable(n int) *FrameTable {
	ft := &FrameTable{frames: make([]frameEntry, n)}
	for i := range ft.frames {
		ft.frames[i] = freeFrame()
	}
	return ft
}

// Len returns the number of physical frames.
func (ft *FrameTable) Len() int { return len(ft.frames) }

// Peek returns a snapshot of a frame's occupancy, for invariant
// cross-checks (I1/I2) in the context-switch hooks and tests.
func (ft *FrameTable) Peek(frame int) (page, pid int, locked bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	e := ft.frames[frame]
	return e.Page, e.Pid, e.Locked
}

// SelectAndLock implements getNextFrame() (spec.md §4.3) plus the locking
// fix from §9: the chosen frame is marked locked inside the same critical
// section that selects it, closing the race the original source had.
//
// It returns the selected frame, the pid/page that previously occupied it
// (if any — hadOutgoing is false for a frame that was already free), and
// ok=false if no unlocked frame is currently available (transient
// starvation, spec.md §7).
func (ft *FrameTable) SelectAndLock(acc AccessProvider) (frame, outgoingPid, outgoingPage int, hadOutgoing, ok bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	n := len(ft.frames)

	// Pass 1: any frame with no resident page needs no eviction.
	for i := range ft.frames {
		if ft.frames[i].Page == Sentinel {
			ft.frames[i].Locked = true
			return i, Sentinel, Sentinel, false, true
		}
	}

	// Pass 2: clock scan, up to one full lap plus one extra step to
	// account for a lap that only cleared REF bits.
	for i := 0; i < n+1; i++ {
		idx := (ft.next + i) % n
		e := &ft.frames[idx]
		if e.Locked {
			continue
		}
		bits := acc.GetAccess(idx)
		if bits&kernel.AccessRef != 0 {
			acc.SetAccess(idx, bits&^kernel.AccessRef)
			continue
		}
		// Victim found: ref clear, unlocked.
		ft.next = (idx + 1) % n
		outgoingPid, outgoingPage = e.Pid, e.Page
		e.Locked = true
		e.Page, e.Pid = Sentinel, Sentinel
		return idx, outgoingPid, outgoingPage, true, true
	}

	return Sentinel, Sentinel, Sentinel, false, false
}

// CommitOccupant records the incoming (page, pid) for a frame the caller
// already holds locked. The write is made under the frame-table mutex so
// that concurrent Peek/FreeCount readers see a consistent entry.
func (ft *FrameTable) CommitOccupant(frame, page, pid int) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.frames[frame].Page = page
	ft.frames[frame].Pid = pid
}

// Unlock clears a frame's locked bit, making it eligible for replacement
// again. Called by the fault handler after a successful reply (spec.md
// §4.4), never by the pager itself.
func (ft *FrameTable) Unlock(frame int) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.frames[frame].Locked = false
}

// FreeOwnedBy releases every frame owned by pid, for process quit
// (spec.md §4.6's onQuit), returning how many frames were freed.
func (ft *FrameTable) FreeOwnedBy(pid int) int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	n := 0
	for i := range ft.frames {
		if ft.frames[i].Pid == pid {
			ft.frames[i] = freeFrame()
			n++
		}
	}
	return n
}

// FreeCount returns the number of currently unoccupied frames.
func (ft *FrameTable) FreeCount() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	n := 0
	for _, e := range ft.frames {
		if e.Page == Sentinel {
			n++
		}
	}
	return n
}
