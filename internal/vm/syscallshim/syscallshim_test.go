package syscallshim

import (
	"log/slog"
	"os"
	"testing"

	"github.com/tinyrange/vmpager/internal/kernel"
	"github.com/tinyrange/vmpager/internal/vm/vmerr"
	"github.com/tinyrange/vmpager/internal/vm/vmkernel"
)

func TestVMInitVMDestroyRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	dev := kernel.NewMMU(4096, 0x9000)
	disk := kernel.NewSwapDisk(4, 16, 512)
	osProcs := kernel.NewProcessTable()
	ctrl := vmkernel.NewController(dev, disk, osProcs, 4, logger, vmerr.PanicHalt)
	shim := New(ctrl)

	base, err := shim.VMInit(2, 2, 1, 1)
	if err != nil {
		t.Fatalf("VMInit: %v", err)
	}
	if base == 0 {
		t.Fatalf("VMInit returned a zero region base")
	}

	snap := shim.VMDestroy()
	if snap.Pages != 2 || snap.Frames != 1 {
		t.Fatalf("VMDestroy snapshot = %+v, want pages=2 frames=1", snap)
	}
}

func TestVMInitRejectsBadConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	dev := kernel.NewMMU(4096, 0x9000)
	disk := kernel.NewSwapDisk(4, 16, 512)
	ctrl := vmkernel.NewController(dev, disk, kernel.NewProcessTable(), 4, logger, vmerr.PanicHalt)
	shim := New(ctrl)

	if _, err := shim.VMInit(3, 2, 1, 1); err == nil {
		t.Fatalf("VMInit with mappings != pages should error")
	}
}
