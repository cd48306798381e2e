package vmerr

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestPanicHaltPanicsWithFormattedMessage(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("PanicHalt should panic")
		}
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, "frame 3 still locked") {
			t.Fatalf("panic value = %v, want a message containing the formatted args", r)
		}
	}()
	PanicHalt(nil, "frame %d still locked", 3)
}

func TestFatalfLogsThenHalts(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	halted := false
	var halt Halt = func(logger *slog.Logger, format string, args ...any) {
		halted = true
	}
	Fatalf(logger, halt, "bad frame %d", 7)
	if !halted {
		t.Fatalf("Fatalf did not invoke halt")
	}
}

func TestFatalfToleratesNilLogger(t *testing.T) {
	halted := false
	Fatalf(nil, func(logger *slog.Logger, format string, args ...any) { halted = true }, "x")
	if !halted {
		t.Fatalf("Fatalf with a nil logger should still invoke halt")
	}
}
