package kernel

import "sync"

// ProcessTable tracks the minimal per-process bookkeeping the vm core
// needs from its host kernel: whether a pid is alive, and whether it has
// been zapped (terminated) by another thread, e.g. because its page could
// not be evicted for lack of swap space.
type ProcessTable struct {
	mu      sync.Mutex
	zapped  map[int]bool
	waiters map[int]chan struct{}
}

// NewProcessTable creates an empty process table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{
		zapped:  make(map[int]bool),
		waiters: make(map[int]chan struct{}),
	}
}

// Fork registers pid as live.
func (p *ProcessTable) Fork(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.zapped[pid] = false
	p.waiters[pid] = make(chan struct{})
}

// Zap marks pid for termination. IsZapped(pid) observes this from the
// target's own goroutine, the way USLOSS's isZapped() does.
func (p *ProcessTable) Zap(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.zapped[pid] {
		p.zapped[pid] = true
	}
}

// IsZapped reports whether pid has been zapped.
func (p *ProcessTable) IsZapped(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zapped[pid]
}

// Quit retires pid and wakes anything waiting on it via Wait.
func (p *ProcessTable) Quit(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.zapped, pid)
	if ch, ok := p.waiters[pid]; ok {
		close(ch)
		delete(p.waiters, pid)
	}
}

// Wait blocks until pid quits.
func (p *ProcessTable) Wait(pid int) {
	p.mu.Lock()
	ch, ok := p.waiters[pid]
	p.mu.Unlock()
	if !ok {
		return
	}
	<-ch
}
