package mmuiface

import (
	"log/slog"
	"os"
	"testing"

	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/vmerr"
)

func newTestMMU(t *testing.T) *MMU {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	dev := kernel.NewMMU(4096, 0x3000)
	m := New(dev, logger, vmerr.PanicHalt)
	if err := m.Init(4, 4, 2); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

func TestGetMapUnmappedIsNotFatal(t *testing.T) {
	m := newTestMMU(t)
	if _, ok := m.GetMap(0); ok {
		t.Fatalf("GetMap on an unmapped page should report ok=false, not panic")
	}
}

func TestMapThenGetMap(t *testing.T) {
	m := newTestMMU(t)
	m.Map(1, 0, kernel.ProtRead)
	frame, ok := m.GetMap(1)
	if !ok || frame != 0 {
		t.Fatalf("GetMap(1) = (%d,%v), want (0,true)", frame, ok)
	}
}

func TestRemapIsFatal(t *testing.T) {
	m := newTestMMU(t)
	m.Map(2, 0, kernel.ProtRead)

	defer func() {
		if recover() == nil {
			t.Fatalf("Map of an already-mapped page should halt via PanicHalt")
		}
	}()
	m.Map(2, 1, kernel.ProtRead)
}

func TestAccessDelegatesToTagZero(t *testing.T) {
	m := newTestMMU(t)
	var got int
	m.SetHandler(func(pid int, cause kernel.Cause, addr uintptr) error {
		got = pid
		page := int((addr - m.RegionBase()) / uintptr(m.PageSize()))
		m.Map(page, 0, kernel.ProtRead|kernel.ProtWrite)
		return nil
	})

	if err := m.Access(42, m.RegionBase(), false); err != nil {
		t.Fatalf("Access: %v", err)
	}
	if got != 42 {
		t.Fatalf("handler saw pid %d, want 42", got)
	}
}
