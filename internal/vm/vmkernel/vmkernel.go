// Package vmkernel is the Lifecycle Controller of spec.md §4.7: it
// initializes the MMU, the page/frame tables, the fault channel, and the
// pager pool, and tears them down symmetrically; invariant violations it
// detects are routed to the vmerr.Fatalf halt path (spec.md §7).
package vmkernel

import (
	"fmt"
	"log/slog"

	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/ctxswitch"
	"github.com/tinyrange/vmpager/internal/vm/faultchan"
	"github.com/tinyrange/vmpager/internal/vm/mmuiface"
	"github.com/tinyrange/vmpager/internal/vm/pager"
	"github.com/tinyrange/vmpager/internal/vm/pagetable"
	"github.com/tinyrange/vmpager/internal/vm/procvm"
	"github.com/tinyrange/vmpager/internal/vm/swapstore"
	"github.com/tinyrange/vmpager/internal/vm/vmerr"
	"github.com/tinyrange/vmpager/internal/vm/vmstats"
)

// MaxPagers bounds how many pager goroutines a Controller will fork,
// mirroring USLOSS's MAXPAGERS.
const MaxPagers = 8

// Controller owns every VM subsystem for the lifetime of one vmInit/
// vmDestroy cycle (spec.md §9's "single VM context value").
type Controller struct {
	dev        *kernel.MMU
	disk       *kernel.SwapDisk
	osProcs    *kernel.ProcessTable
	maxProc    int
	logger     *slog.Logger
	halt       vmerr.Halt

	mmu     *mmuiface.MMU
	ram     *kernel.RAM
	swap    *swapstore.Store
	frames  *pagetable.FrameTable
	procs   *procvm.Table
	channel *faultchan.Channel
	stats   *vmstats.Stats
	ctx     *ctxswitch.Manager
	pool    *pager.Pool

	pagerCount  int
	initialized bool
}

// NewController wires a Controller to the given simulated hardware and
// host-process table. logger and halt are used for lifecycle logging and
// the invariant-violation halt path respectively; pass vmerr.ExitHalt in
// production and vmerr.PanicHalt (or a recording stub) in tests.
func NewController(dev *kernel.MMU, disk *kernel.SwapDisk, osProcs *kernel.ProcessTable, maxProc int, logger *slog.Logger, halt vmerr.Halt) *Controller {
	return &Controller{dev: dev, disk: disk, osProcs: osProcs, maxProc: maxProc, logger: logger, halt: halt}
}

// InitReal validates arguments and brings every VM subsystem online,
// returning the MMU region base address (spec.md §4.7).
func (c *Controller) InitReal(mappings, pages, frames, pagers int) (uintptr, error) {
	c.logger.Debug("vmInitReal called", "mappings", mappings, "pages", pages, "frames", frames, "pagers", pagers)

	if mappings < 0 || pages < 0 || frames < 0 || pagers < 0 {
		return 0, fmt.Errorf("%w: negative argument", vmerr.ErrBadConfig)
	}
	if mappings != pages {
		return 0, fmt.Errorf("%w: mappings (%d) != pages (%d)", vmerr.ErrBadConfig, mappings, pages)
	}
	if pagers > MaxPagers {
		return 0, fmt.Errorf("%w: pagers (%d) exceeds MaxPagers (%d)", vmerr.ErrBadConfig, pagers, MaxPagers)
	}

	c.mmu = mmuiface.New(c.dev, c.logger, c.halt)
	if err := c.mmu.Init(mappings, pages, frames); err != nil {
		return 0, fmt.Errorf("%w: mmu init failed: %v", vmerr.ErrBadConfig, err)
	}

	pageSize := c.mmu.PageSize()
	c.ram = kernel.NewRAM(frames, pageSize)
	c.swap = swapstore.New(c.disk, pageSize)
	c.frames = pagetable.NewFrameTable(frames)
	c.procs = procvm.NewTable(c.maxProc, pages)
	c.channel = faultchan.New(c.maxProc)
	c.stats = vmstats.New(pages, frames, c.swap.DiskBlocks())

	c.ctx = &ctxswitch.Manager{
		MMU:    c.mmu,
		Frames: c.frames,
		Procs:  c.procs,
		Stats:  c.stats,
		Logger: c.logger,
		Halt:   c.halt,
	}

	c.mmu.SetHandler(c.faultHandler)

	c.pool = &pager.Pool{
		Channel:  c.channel,
		Frames:   c.frames,
		Procs:    c.procs,
		MMU:      c.mmu,
		Swap:     c.swap,
		RAM:      c.ram,
		Stats:    c.stats,
		Logger:   c.logger,
		Halt:     c.halt,
		Shutdown: kernel.NewSemaphore(0),
	}
	c.pool.Run(pagers)
	c.pagerCount = pagers
	c.initialized = true

	return c.mmu.RegionBase(), nil
}

// DestroyReal turns the MMU off, kills every pager, and returns the final
// statistics (spec.md §4.7; PrintStats is the caller's responsibility, not
// the controller's, so tests can assert on the snapshot directly).
func (c *Controller) DestroyReal() vmstats.Snapshot {
	c.logger.Debug("vmDestroyReal called")
	c.mmu.Done()

	for i := 0; i < c.pagerCount; i++ {
		c.channel.Kill()
	}
	for i := 0; i < c.pagerCount; i++ {
		c.pool.Shutdown.P()
	}

	snap := c.stats.Snapshot()
	c.logger.Info("vm destroyed", "stats", snap)
	c.initialized = false
	return snap
}

// Fork creates VM state for a newly forked process (spec.md §4.6's
// onFork), registering it with the host process table so isZapped/Zap have
// something to track (spec.md §6).
func (c *Controller) Fork(pid int) (*procvm.Record, error) {
	c.osProcs.Fork(pid)
	return c.ctx.OnFork(pid)
}

// Quit tears down a quitting process's VM state (spec.md §4.6's onQuit) and
// retires its host process-table entry.
func (c *Controller) Quit(pid int) {
	c.ctx.OnQuit(pid)
	c.osProcs.Quit(pid)
}

// SwitchOut and SwitchIn are the two dispatch hooks a scheduler calls
// around every context switch (spec.md §4.6).
func (c *Controller) SwitchOut(pid int) { c.ctx.SwitchOut(pid) }
func (c *Controller) SwitchIn(pid int)  { c.ctx.SwitchIn(pid) }

// Touch simulates a CPU access to addr by pid, triggering the fault path
// if necessary. This is the entry point driver code and tests use in
// place of real hardware load/store instructions.
func (c *Controller) Touch(pid int, addr uintptr, write bool) error {
	return c.mmu.Access(pid, addr, write)
}

// RegionBase returns the VM window's base address.
func (c *Controller) RegionBase() uintptr { return c.mmu.RegionBase() }

// PageSize returns the MMU's fixed page size.
func (c *Controller) PageSize() int { return c.mmu.PageSize() }

// Stats exposes the live statistics, e.g. for cmd/vmtop's dashboard.
func (c *Controller) Stats() vmstats.Snapshot { return c.stats.Snapshot() }

// faultHandler implements spec.md §4.4's FaultHandler: publish the fault,
// block on the faulter's private semaphore, and either retry, terminate,
// or unlock-and-return.
func (c *Controller) faultHandler(pid int, cause kernel.Cause, addr uintptr) error {
	if cause != kernel.CauseFault {
		vmerr.Fatalf(c.logger, c.halt, "faultHandler: unexpected cause %v for pid %d", cause, pid)
		return fmt.Errorf("unreachable")
	}
	c.stats.IncFaults()

	rec, ok := c.procs.Get(pid)
	if !ok {
		vmerr.Fatalf(c.logger, c.halt, "faultHandler: pid %d has no VM state", pid)
		return fmt.Errorf("unreachable")
	}

	for {
		c.channel.Publish(pid, addr)
		rec.PrivateSem.P()
		desc := c.channel.Descriptor(pid)

		if desc.ShouldTerminate {
			c.logger.Warn("process terminated: swap exhausted", "pid", pid, "addr", addr)
			// terminate(1) in spec.md §7's taxonomy: resource
			// exhaustion kills this one process, via the host
			// kernel's zap primitive, not an invariant halt.
			c.osProcs.Zap(pid)
			c.Quit(pid)
			return kernel.ErrTerminated
		}
		if desc.Failed {
			continue
		}

		c.frames.Unlock(desc.ReceivedFrame)
		// Install only the page that just faulted in. A full SwitchIn
		// replay would re-Map every page already resident from an
		// earlier fault on this same process, and kernel.MMU.Map
		// rejects a page that's already mapped (ErrRemap) as an
		// invariant violation. This is not a context switch — no
		// SwitchOut preceded it — so it must not count toward
		// vmStats.switches; callers that drive their own cooperative
		// scheduler call Controller.SwitchOut/SwitchIn explicitly
		// instead, which is why ctxswitch is also exported standalone.
		page := int((addr - c.mmu.RegionBase()) / uintptr(c.mmu.PageSize()))
		c.mmu.Map(page, desc.ReceivedFrame, kernel.ProtRead|kernel.ProtWrite)
		return nil
	}
}
