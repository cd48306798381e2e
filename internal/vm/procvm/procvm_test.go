package procvm

import "testing"

func TestForkGetQuit(t *testing.T) {
	tbl := NewTable(4, 8)

	if _, ok := tbl.Get(1); ok {
		t.Fatalf("Get on an unforked pid should report ok=false")
	}

	rec, err := tbl.Fork(1)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if rec.PageTable.Len() != 8 {
		t.Fatalf("forked page table has %d pages, want 8", rec.PageTable.Len())
	}

	got, ok := tbl.Get(1)
	if !ok || got != rec {
		t.Fatalf("Get after Fork should return the same record")
	}

	tbl.Quit(1)
	if _, ok := tbl.Get(1); ok {
		t.Fatalf("Get after Quit should report ok=false")
	}
}

func TestForkRejectsDuplicateAndOutOfRange(t *testing.T) {
	tbl := NewTable(2, 4)

	if _, err := tbl.Fork(0); err != nil {
		t.Fatalf("Fork(0): %v", err)
	}
	if _, err := tbl.Fork(0); err == nil {
		t.Fatalf("Fork of an already-live pid should error")
	}
	if _, err := tbl.Fork(99); err == nil {
		t.Fatalf("Fork of an out-of-range pid should error")
	}
}
