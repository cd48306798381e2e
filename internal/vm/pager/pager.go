// Package pager is the Pager Pool of spec.md §4.5: cooperative kernel
// threads that drain the fault channel, select frames, evict, load, and
// reply.
package pager

import (
	"fmt"
	"log/slog"

	"golang.org/x/net/trace"

	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/faultchan"
	"github.com/tinyrange/vmpager/internal/vm/mmuiface"
	"github.com/tinyrange/vmpager/internal/vm/pagetable"
	"github.com/tinyrange/vmpager/internal/vm/procvm"
	"github.com/tinyrange/vmpager/internal/vm/swapstore"
	"github.com/tinyrange/vmpager/internal/vm/vmerr"
	"github.com/tinyrange/vmpager/internal/vm/vmstats"
)

// Pool runs a fixed number of pager goroutines against one shared set of
// VM tables.
type Pool struct {
	Channel *faultchan.Channel
	Frames  *pagetable.FrameTable
	Procs   *procvm.Table
	MMU     *mmuiface.MMU
	Swap    *swapstore.Store
	RAM     *kernel.RAM
	Stats   *vmstats.Stats
	Logger  *slog.Logger
	Halt    vmerr.Halt

	// Shutdown is V'd once by every pager goroutine as it exits in
	// response to a kill sentinel (spec.md §4.5 step 1).
	Shutdown *kernel.Semaphore
}

// Run launches n pager goroutines. Each exits when it reads
// faultchan.KillSentinel from the channel.
func (p *Pool) Run(n int) {
	for i := 0; i < n; i++ {
		go p.loop(i)
	}
}

func (p *Pool) loop(id int) {
	for {
		pid := p.Channel.Receive()
		if pid == faultchan.KillSentinel {
			p.Shutdown.V()
			return
		}
		p.handleFault(id, pid)
	}
}

// handleFault implements spec.md §4.5's eleven steps for one fault cycle.
func (p *Pool) handleFault(pagerID, pid int) {
	tr := trace.New("vmpager.pager", fmt.Sprintf("pid=%d", pid))
	defer tr.Finish()

	desc := p.Channel.Descriptor(pid)
	rec, ok := p.Procs.Get(pid)
	if !ok {
		vmerr.Fatalf(p.Logger, p.Halt, "pager %d: fault for pid %d with no VM record", pagerID, pid)
		return
	}

	pageSize := p.MMU.PageSize()
	incomingPage := int((desc.Addr - p.MMU.RegionBase()) / uintptr(pageSize))
	incomingPTE := rec.PageTable.Get(incomingPage)
	isNew := incomingPTE.State == pagetable.Unused
	tr.LazyPrintf("page=%d new=%v state=%s", incomingPage, isNew, incomingPTE.State)

	frame, outPid, outPage, hadOutgoing, ok := p.Frames.SelectAndLock(p.MMU)
	if !ok {
		tr.LazyPrintf("no frame available, failing fault for retry")
		desc.Failed = true
		rec.PrivateSem.V()
		return
	}

	if hadOutgoing {
		p.Stats.IncReplaced()
		if terminate := p.evict(tr, outPid, outPage, frame); terminate {
			p.Stats.AdjustFreeFrames(1)
			p.Frames.Unlock(frame)
			desc.ShouldTerminate = true
			rec.PrivateSem.V()
			return
		}
		// The outgoing page no longer resolves to this frame — its
		// owner must fault again to bring it back, not silently read
		// whatever the frame holds next.
		p.MMU.Unmap(outPage)
	} else {
		p.Stats.AdjustFreeFrames(-1)
	}

	p.Frames.CommitOccupant(frame, incomingPage, pid)
	rec.PageTable.SetInmem(incomingPage, frame)

	buf := make([]byte, pageSize)
	if incomingPTE.DiskBlock != pagetable.Sentinel {
		if err := p.Swap.Read(incomingPTE.DiskBlock, buf); err != nil {
			vmerr.Fatalf(p.Logger, p.Halt, "pager %d: swap read block %d: %v", pagerID, incomingPTE.DiskBlock, err)
			return
		}
		p.Stats.IncPageIns()
		tr.LazyPrintf("loaded from disk block %d", incomingPTE.DiskBlock)
	} else {
		tr.LazyPrintf("zero-filled")
	}
	if err := p.RAM.Write(frame, buf); err != nil {
		vmerr.Fatalf(p.Logger, p.Halt, "pager %d: ram write frame %d: %v", pagerID, frame, err)
		return
	}
	p.MMU.SetAccess(frame, p.MMU.GetAccess(frame)&^kernel.AccessDirty)

	if isNew {
		p.Stats.IncNew()
	}
	desc.ReceivedFrame = frame
	desc.Failed = false
	rec.PrivateSem.V()
}

// evict handles spec.md §4.5 step 5: if the outgoing page is dirty, write
// it to swap (allocating a block on first write); otherwise it is dropped.
// Returns true if the faulter must be terminated (swap exhausted).
func (p *Pool) evict(tr trace.Trace, outPid, outPage, frame int) (terminate bool) {
	outRec, ok := p.Procs.Get(outPid)
	if !ok {
		vmerr.Fatalf(p.Logger, p.Halt, "pager: evicting page %d of unknown pid %d from frame %d", outPage, outPid, frame)
		return false
	}
	outPTE := outRec.PageTable.Get(outPage)
	diskBlock := outPTE.DiskBlock

	bits := p.MMU.GetAccess(frame)
	if bits&kernel.AccessDirty != 0 {
		buf := make([]byte, p.RAM.PageSize())
		if err := p.RAM.Read(frame, buf); err != nil {
			vmerr.Fatalf(p.Logger, p.Halt, "pager: ram read frame %d: %v", frame, err)
			return false
		}
		if diskBlock == pagetable.Sentinel {
			allocated, err := p.Swap.Allocate()
			if err != nil {
				tr.LazyPrintf("swap exhausted evicting pid=%d page=%d", outPid, outPage)
				return true
			}
			diskBlock = allocated
			p.Stats.AdjustFreeDiskBlocks(-1)
		}
		if err := p.Swap.Write(diskBlock, buf); err != nil {
			vmerr.Fatalf(p.Logger, p.Halt, "pager: swap write block %d: %v", diskBlock, err)
			return false
		}
		p.Stats.IncPageOuts()
		tr.LazyPrintf("wrote dirty page pid=%d page=%d to block %d", outPid, outPage, diskBlock)
	}

	outRec.PageTable.SetOndisk(outPage, diskBlock)
	return false
}
