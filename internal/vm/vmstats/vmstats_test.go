package vmstats

import "testing"

func TestNewSnapshotInitialValues(t *testing.T) {
	s := New(4, 2, 10)
	snap := s.Snapshot()

	if snap.Pages != 4 || snap.Frames != 2 || snap.DiskBlocks != 10 {
		t.Fatalf("geometry fields = %+v, want pages=4 frames=2 diskBlocks=10", snap)
	}
	if snap.FreeFrames != 2 || snap.FreeDiskBlocks != 10 {
		t.Fatalf("free counts should start equal to capacity, got %+v", snap)
	}
	if snap.Faults != 0 || snap.Switches != 0 || snap.New != 0 {
		t.Fatalf("activity counters should start at zero, got %+v", snap)
	}
}

func TestIncrementsAndAdjustments(t *testing.T) {
	s := New(4, 2, 10)

	s.IncFaults()
	s.IncFaults()
	s.IncSwitches()
	s.IncNew()
	s.IncPageIns()
	s.IncPageOuts()
	s.IncReplaced()
	s.AdjustFreeFrames(-1)
	s.AdjustFreeDiskBlocks(-3)

	snap := s.Snapshot()
	if snap.Faults != 2 {
		t.Fatalf("Faults = %d, want 2", snap.Faults)
	}
	if snap.Switches != 1 || snap.New != 1 || snap.PageIns != 1 || snap.PageOuts != 1 || snap.Replaced != 1 {
		t.Fatalf("single-increment counters = %+v, want all 1", snap)
	}
	if snap.FreeFrames != 1 {
		t.Fatalf("FreeFrames = %d, want 1 after Adjust(-1) from 2", snap.FreeFrames)
	}
	if snap.FreeDiskBlocks != 7 {
		t.Fatalf("FreeDiskBlocks = %d, want 7 after Adjust(-3) from 10", snap.FreeDiskBlocks)
	}
}

func TestSnapshotStringContainsAllFields(t *testing.T) {
	s := New(1, 1, 1)
	out := s.Snapshot().String()
	for _, field := range []string{"pages:", "frames:", "diskBlocks:", "freeFrames:", "freeDiskBlocks:", "switches:", "faults:", "new:", "pageIns:", "pageOuts:", "replaced:"} {
		if !contains(out, field) {
			t.Fatalf("Snapshot.String() missing field %q:\n%s", field, out)
		}
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
