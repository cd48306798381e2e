package kernel

import (
	"bytes"
	"testing"
)

func TestRAMReadWriteZero(t *testing.T) {
	r := NewRAM(2, 16)

	buf := bytes.Repeat([]byte{0x7}, 16)
	if err := r.Write(1, buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, 16)
	if err := r.Read(1, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatalf("Read after Write mismatch")
	}

	if err := r.Zero(1); err != nil {
		t.Fatalf("Zero: %v", err)
	}
	if err := r.Read(1, got); err != nil {
		t.Fatalf("Read after Zero: %v", err)
	}
	if !bytes.Equal(got, make([]byte, 16)) {
		t.Fatalf("frame not zeroed")
	}

	if err := r.Read(0, make([]byte, 16)); err != nil {
		t.Fatalf("other frame must be untouched and still readable: %v", err)
	}
}

func TestRAMOutOfRange(t *testing.T) {
	r := NewRAM(1, 16)
	if err := r.Read(5, make([]byte, 16)); err == nil {
		t.Fatalf("Read out-of-range frame should error")
	}
	if err := r.Write(0, make([]byte, 4)); err == nil {
		t.Fatalf("Write with wrong buffer size should error")
	}
}
