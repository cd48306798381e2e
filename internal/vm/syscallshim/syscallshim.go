// Package syscallshim is the External Syscall Shim of spec.md §4.7/§6: the
// thin adapter a host kernel's syscall vector calls into. It unpacks
// nothing beyond the four integer arguments USLOSS's vmInit/vmDestroy
// syscalls carry — argument-tuple unpacking from a raw syscall ABI is the
// out-of-scope "syscall shim" spec.md §1 already excludes from the core.
package syscallshim

import (
	"github.com/tinyrange/vmpager/internal/vm/vmkernel"
	"github.com/tinyrange/vmpager/internal/vm/vmstats"
)

// Shim adapts a vmkernel.Controller to the VM_INIT/VM_DESTROY syscall
// surface named in spec.md §6.
type Shim struct {
	ctrl *vmkernel.Controller
}

// New wraps ctrl.
func New(ctrl *vmkernel.Controller) *Shim {
	return &Shim{ctrl: ctrl}
}

// VMInit is the VM_INIT syscall: (mappings, pages, frames, pagers) ->
// (region base, error). A non-nil error means vmInitReal was not run and
// no VM state was created, matching spec.md §7's configuration-error path.
func (s *Shim) VMInit(mappings, pages, frames, pagers int) (uintptr, error) {
	return s.ctrl.InitReal(mappings, pages, frames, pagers)
}

// VMDestroy is the VM_DESTROY syscall.
func (s *Shim) VMDestroy() vmstats.Snapshot {
	return s.ctrl.DestroyReal()
}
