// Package faultchan is the Fault Channel of spec.md §4.4: a bounded FIFO
// carrying fault notifications from faulting threads to pagers, plus the
// per-pid fault-descriptor slots the handoff writes through.
package faultchan

import (
	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/pagetable"
)

// KillSentinel is the pid value a pager receiving it treats as "exit".
const KillSentinel = -1

// Descriptor is the fault message described in spec.md §3. It is written
// by the faulter, then by the pager handling it, and never touched by
// anyone else concurrently — the send-on-channel/block-on-semaphore pair
// is the only handoff, so no lock is needed (spec.md §5).
type Descriptor struct {
	Pid             int
	Addr            uintptr
	ReceivedFrame   int
	Failed          bool
	ShouldTerminate bool
}

// Channel is the bounded mailbox plus the pid%MAXPROC-indexed descriptor
// slots (spec.md §9's "slot trick": each process has at most one
// in-flight fault, so a fixed-size array keyed by pid suffices).
type Channel struct {
	mailbox *kernel.Mailbox
	maxProc int
	slots   []Descriptor
}

// New creates a fault channel with room for maxProc outstanding pids, one
// descriptor slot per pid.
func New(maxProc int) *Channel {
	return &Channel{
		mailbox: kernel.NewMailbox(maxProc),
		maxProc: maxProc,
		slots:   make([]Descriptor, maxProc),
	}
}

func slot(pid, maxProc int) int {
	if pid < 0 {
		return 0
	}
	return pid % maxProc
}

// Publish populates pid's descriptor slot and pushes pid onto the
// mailbox, blocking if it is full (spec.md §4.4 step a/b). Call this from
// the faulter's goroutine before blocking on its private semaphore.
func (c *Channel) Publish(pid int, addr uintptr) {
	c.slots[slot(pid, c.maxProc)] = Descriptor{
		Pid:           pid,
		Addr:          addr,
		ReceivedFrame: pagetable.Sentinel,
	}
	c.mailbox.Send(pid)
}

// Receive blocks until a pid (or KillSentinel) is available, for a pager
// to consume.
func (c *Channel) Receive() int {
	return c.mailbox.Receive()
}

// Kill pushes one kill sentinel, for vmDestroyReal to stop one pager.
func (c *Channel) Kill() {
	c.mailbox.Send(KillSentinel)
}

// Descriptor returns a pointer into pid's slot for in-place read/write by
// whichever side currently owns the handoff.
func (c *Channel) Descriptor(pid int) *Descriptor {
	return &c.slots[slot(pid, c.maxProc)]
}
