// Package mmuiface is the MMU Abstraction Layer of spec.md §4.1: a thin,
// typed wrapper over the simulated MMU that turns unexpected return codes
// into a fatal halt rather than propagating them as ordinary errors.
package mmuiface

import (
	"errors"
	"log/slog"

	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/vmerr"
)

// TAG is the MMU address-space tag. All processes share it, since under
// this design at most one process is ever mapped into the MMU at a time.
const TAG = 0

// MMU wraps a *kernel.MMU with spec.md's expected-failure-mode discipline:
// every call that isn't in the small set of outcomes the design anticipates
// halts the VM instead of returning an error to its caller.
type MMU struct {
	dev    *kernel.MMU
	logger *slog.Logger
	halt   vmerr.Halt
}

// New wraps dev. logger and halt are used only on unexpected conditions.
func New(dev *kernel.MMU, logger *slog.Logger, halt vmerr.Halt) *MMU {
	return &MMU{dev: dev, logger: logger, halt: halt}
}

// Init brings the underlying MMU online. A bad configuration is the one
// failure mode callers are expected to handle (spec.md §7's "Configuration
// error"), so it is returned, not halted on.
func (m *MMU) Init(mappings, pages, frames int) error {
	return m.dev.Init(mappings, pages, frames)
}

// SetHandler installs the fault interrupt handler.
func (m *MMU) SetHandler(h kernel.InterruptHandler) {
	m.dev.SetHandler(h)
}

// Done turns the MMU off.
func (m *MMU) Done() {
	m.dev.Done()
}

// Map installs a page->frame mapping. A remap attempt is an invariant
// violation here: the core is expected to unmap cleanly between occupants.
func (m *MMU) Map(page, frame int, prot kernel.Prot) {
	if err := m.dev.Map(TAG, page, frame, prot); err != nil {
		vmerr.Fatalf(m.logger, m.halt, "mmuiface: unexpected Map(%d,%d) failure: %v", page, frame, err)
	}
}

// Unmap removes a page mapping if present.
func (m *MMU) Unmap(page int) {
	if err := m.dev.Unmap(TAG, page); err != nil {
		vmerr.Fatalf(m.logger, m.halt, "mmuiface: unexpected Unmap(%d) failure: %v", page, err)
	}
}

// GetMap reports the frame a page currently resolves to, and ok=false if
// it is unmapped — NOMAP is an expected outcome (spec.md P2), not an error.
func (m *MMU) GetMap(page int) (frame int, ok bool) {
	frame, _, err := m.dev.GetMap(TAG, page)
	if errors.Is(err, kernel.ErrNoMapping) {
		return 0, false
	}
	if err != nil {
		vmerr.Fatalf(m.logger, m.halt, "mmuiface: unexpected GetMap(%d) failure: %v", page, err)
	}
	return frame, true
}

// GetAccess returns the REF/DIRTY bits for a frame.
func (m *MMU) GetAccess(frame int) kernel.AccessBits {
	return m.dev.GetAccess(frame)
}

// SetAccess overwrites the REF/DIRTY bits for a frame.
func (m *MMU) SetAccess(frame int, bits kernel.AccessBits) {
	m.dev.SetAccess(frame, bits)
}

// PageSize returns the MMU's fixed page size in bytes.
func (m *MMU) PageSize() int { return m.dev.PageSize() }

// RegionBase returns the base address of the VM window returned to the
// faulting process, i.e. vmInit's return value.
func (m *MMU) RegionBase() uintptr { return m.dev.RegionBase() }

// GetCause returns the cause of the most recent fault; only CauseFault is
// expected here (FaultHandler asserts this).
func (m *MMU) GetCause() kernel.Cause { return m.dev.GetCause() }

// Access simulates a CPU access to a virtual address, triggering the
// installed fault handler if it is unmapped. It is the entry point tests
// and cmd/vmpagerd use to drive simulated processes.
func (m *MMU) Access(pid int, addr uintptr, write bool) error {
	return m.dev.Access(TAG, pid, addr, write)
}
