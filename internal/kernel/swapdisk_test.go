package kernel

import (
	"bytes"
	"testing"
)

func TestSwapDiskReadWriteRoundTrip(t *testing.T) {
	d := NewSwapDisk(4, 16, 512)

	want := bytes.Repeat([]byte{0xAB}, 8*512)
	if err := d.WriteSectors(1, 3, 8, want); err != nil {
		t.Fatalf("WriteSectors: %v", err)
	}

	got := make([]byte, 8*512)
	if err := d.ReadSectors(1, 3, 8, got); err != nil {
		t.Fatalf("ReadSectors: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round-tripped data mismatch")
	}

	other := make([]byte, 512)
	if err := d.ReadSectors(0, 0, 1, other); err != nil {
		t.Fatalf("ReadSectors other track: %v", err)
	}
	if !bytes.Equal(other, make([]byte, 512)) {
		t.Fatalf("track 0 should still be zeroed, untouched by the write to track 1")
	}
}

func TestSwapDiskBoundsChecking(t *testing.T) {
	d := NewSwapDisk(2, 4, 512)

	if err := d.ReadSectors(5, 0, 1, make([]byte, 512)); err == nil {
		t.Fatalf("ReadSectors with out-of-range track should error")
	}
	if err := d.WriteSectors(0, 0, 1, make([]byte, 256)); err == nil {
		t.Fatalf("WriteSectors with mismatched buffer size should error")
	}
	if err := d.WriteSectors(0, 3, 2, make([]byte, 2*512)); err == nil {
		t.Fatalf("WriteSectors crossing a track boundary should error")
	}
}
