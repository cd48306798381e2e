package kernel

import (
	"fmt"
	"sync"
)

// Prot mirrors the simulated MMU's page protection bits.
type Prot int

const ProtNone Prot = 0

const (
	ProtRead Prot = 1 << iota
	ProtWrite
)

// AccessBits carries the REF (referenced) and DIRTY bits the clock
// algorithm reads and clears, and a store reads and sets.
type AccessBits uint8

const (
	AccessRef AccessBits = 1 << iota
	AccessDirty
)

// Cause is the reason the MMU raised its interrupt vector.
type Cause int

const (
	CauseNone Cause = iota
	CauseFault
)

// ErrNoMapping is returned by GetMap when the (tag, page) pair is unmapped.
var ErrNoMapping = fmt.Errorf("kernel: no mapping")

// ErrRemap is returned by Map when (tag, page) is already mapped.
var ErrRemap = fmt.Errorf("kernel: page already mapped")

// ErrTerminated is returned by Access when the fault handler killed the
// accessing process instead of resolving the fault.
var ErrTerminated = fmt.Errorf("kernel: process terminated while handling fault")

// InterruptHandler is invoked, in the accessing goroutine, when Access
// finds no mapping for the faulting address. It must not return until the
// fault is resolved (mapping installed) or the process has been killed.
type InterruptHandler func(pid int, cause Cause, addr uintptr) error

type mapping struct {
	frame int
	prot  Prot
}

// MMU is the simulated hardware the vm core's MMU Abstraction Layer wraps.
// It tracks one region of mappings per tag, and a physical-frame-indexed
// table of access bits — the hardware surface the PTE/frame table logic
// sits on top of.
type MMU struct {
	mu sync.Mutex

	on         bool
	pageSize   int
	mappings   int
	pages      int
	frames     int
	regionBase uintptr

	table   map[int]map[int]mapping // tag -> page -> mapping
	access  []AccessBits            // indexed by frame
	cause   Cause
	handler InterruptHandler
}

// NewMMU creates a simulated MMU with the given page size and a fixed
// region base address (arbitrary but stable, the way USLOSS's
// USLOSS_MmuRegion() returns a fixed VM window).
func NewMMU(pageSize int, regionBase uintptr) *MMU {
	return &MMU{pageSize: pageSize, regionBase: regionBase}
}

// Init brings the MMU online with room for mappings entries per tag and a
// physical frame table of the given size.
func (m *MMU) Init(mappings, pages, frames int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mappings < 0 || pages < 0 || frames < 0 {
		return fmt.Errorf("kernel: negative mmu init argument")
	}
	m.mappings, m.pages, m.frames = mappings, pages, frames
	m.table = make(map[int]map[int]mapping)
	m.access = make([]AccessBits, frames)
	m.on = true
	return nil
}

// Done turns the MMU off. Further Access calls are errors.
func (m *MMU) Done() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.on = false
	m.table = nil
	m.access = nil
}

// SetHandler installs the interrupt handler invoked on a fault, mirroring
// USLOSS_IntVec[USLOSS_MMU_INT] = FaultHandler.
func (m *MMU) SetHandler(h InterruptHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *MMU) PageSize() int     { return m.pageSize }
func (m *MMU) RegionBase() uintptr { return m.regionBase }

// GetCause returns the cause of the most recently delivered interrupt.
func (m *MMU) GetCause() Cause {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cause
}

// Map installs a (tag, page) -> frame mapping.
func (m *MMU) Map(tag, page, frame int, prot Prot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.on {
		return fmt.Errorf("kernel: mmu not initialized")
	}
	if frame < 0 || frame >= m.frames {
		return fmt.Errorf("kernel: frame %d out of range", frame)
	}
	byTag, ok := m.table[tag]
	if !ok {
		byTag = make(map[int]mapping)
		m.table[tag] = byTag
	}
	if _, exists := byTag[page]; exists {
		return ErrRemap
	}
	byTag[page] = mapping{frame: frame, prot: prot}
	return nil
}

// Unmap removes a (tag, page) mapping. Unmapping an already-unmapped page
// is a no-op, matching USLOSS_MmuUnmap's tolerance of redundant unmaps.
func (m *MMU) Unmap(tag, page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.on {
		return fmt.Errorf("kernel: mmu not initialized")
	}
	if byTag, ok := m.table[tag]; ok {
		delete(byTag, page)
	}
	return nil
}

// GetMap reports the frame and protection (tag, page) currently resolves
// to, or ErrNoMapping.
func (m *MMU) GetMap(tag, page int) (frame int, prot Prot, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTag, ok := m.table[tag]
	if !ok {
		return 0, 0, ErrNoMapping
	}
	mp, ok := byTag[page]
	if !ok {
		return 0, 0, ErrNoMapping
	}
	return mp.frame, mp.prot, nil
}

// GetAccess returns the REF/DIRTY bits for a physical frame.
func (m *MMU) GetAccess(frame int) AccessBits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access[frame]
}

// SetAccess overwrites the REF/DIRTY bits for a physical frame.
func (m *MMU) SetAccess(frame int, bits AccessBits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access[frame] = bits
}

// Access simulates a CPU load (write=false) or store (write=true) to a
// virtual address. If the address is mapped it updates REF/DIRTY and
// returns immediately; otherwise it raises a fault, blocking in the
// calling goroutine's context until the installed handler resolves it
// (mirroring a real MMU trap handler that runs on the faulting thread's
// stack), then re-executes the access exactly once.
func (m *MMU) Access(tag, pid int, addr uintptr, write bool) error {
	page := int((addr - m.regionBase) / uintptr(m.pageSize))

	m.mu.Lock()
	on := m.on
	m.mu.Unlock()
	if !on {
		return fmt.Errorf("kernel: mmu not initialized")
	}

	frame, _, err := m.GetMap(tag, page)
	if err == nil {
		m.touch(frame, write)
		return nil
	}

	m.mu.Lock()
	m.cause = CauseFault
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		return fmt.Errorf("kernel: page fault at %#x with no handler installed", addr)
	}
	if err := handler(pid, CauseFault, addr); err != nil {
		return err
	}

	frame, _, err = m.GetMap(tag, page)
	if err != nil {
		return fmt.Errorf("kernel: fault handler returned without installing a mapping for %#x: %w", addr, err)
	}
	m.touch(frame, write)
	return nil
}

func (m *MMU) touch(frame int, write bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access[frame] |= AccessRef
	if write {
		m.access[frame] |= AccessDirty
	}
}
