// Package ctxswitch is the Context-Switch Mapping Manager of spec.md §4.6:
// the two dispatch hooks that tear down and re-establish MMU mappings
// consistently with each process's page table, plus the fork/quit hooks
// that create and destroy a process's VM state.
package ctxswitch

import (
	"log/slog"

	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/mmuiface"
	"github.com/tinyrange/vmpager/internal/vm/pagetable"
	"github.com/tinyrange/vmpager/internal/vm/procvm"
	"github.com/tinyrange/vmpager/internal/vm/vmerr"
	"github.com/tinyrange/vmpager/internal/vm/vmstats"
)

// Manager owns the dispatch hooks. It holds no state of its own beyond
// references to the shared tables — spec.md §9's "single VM context"
// pattern, here expressed as several small collaborators rather than one
// monolithic struct.
type Manager struct {
	MMU    *mmuiface.MMU
	Frames *pagetable.FrameTable
	Procs  *procvm.Table
	Stats  *vmstats.Stats
	Logger *slog.Logger
	Halt   vmerr.Halt
}

// SwitchOut unmaps every page old still has resident, verifying the
// reciprocal frame-table entry first (spec.md I1/I2). The frame itself
// keeps its content and owner; only the MMU's visibility of it is
// withdrawn (spec.md §4.6).
func (m *Manager) SwitchOut(oldPid int) {
	rec, ok := m.Procs.Get(oldPid)
	if !ok {
		return
	}
	for _, p := range rec.PageTable.ResidentPages() {
		pte := rec.PageTable.Get(p)
		page, pid, _ := m.Frames.Peek(pte.Frame)
		if page != p || pid != oldPid {
			vmerr.Fatalf(m.Logger, m.Halt,
				"ctxswitch: I1/I2 violated on switch-out: pid %d page %d claims frame %d, but frame holds (page=%d,pid=%d)",
				oldPid, p, pte.Frame, page, pid)
			return
		}
		m.MMU.Unmap(p)
	}
}

// SwitchIn re-maps every page new has resident, after the same
// cross-check, then counts the switch (spec.md P4: switches counts
// onSwitchOut/In pairs, so it is incremented once per SwitchIn here,
// paired with the SwitchOut that precedes it).
func (m *Manager) SwitchIn(newPid int) {
	rec, ok := m.Procs.Get(newPid)
	if !ok {
		return
	}
	for _, p := range rec.PageTable.ResidentPages() {
		pte := rec.PageTable.Get(p)
		page, pid, _ := m.Frames.Peek(pte.Frame)
		if page != p || pid != newPid {
			vmerr.Fatalf(m.Logger, m.Halt,
				"ctxswitch: I1/I2 violated on switch-in: pid %d page %d claims frame %d, but frame holds (page=%d,pid=%d)",
				newPid, p, pte.Frame, page, pid)
			return
		}
		m.MMU.Map(p, pte.Frame, kernel.ProtRead|kernel.ProtWrite)
	}
	m.Stats.IncSwitches()
}

// OnFork allocates VM state for a newly-forked process (spec.md §4.6).
func (m *Manager) OnFork(pid int) (*procvm.Record, error) {
	return m.Procs.Fork(pid)
}

// OnQuit tears down a quitting process's mappings, frees its frames, and
// frees its VM-table slot (spec.md §4.6).
func (m *Manager) OnQuit(pid int) {
	m.SwitchOut(pid)
	freed := m.Frames.FreeOwnedBy(pid)
	m.Stats.AdjustFreeFrames(int64(freed))
	m.Procs.Quit(pid)
}
