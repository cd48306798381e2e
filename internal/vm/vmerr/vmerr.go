// Package vmerr defines the error taxonomy of spec.md §7: configuration
// errors are ordinary Go errors the caller handles; transient starvation is
// retried inside the fault handler; resource exhaustion terminates a single
// process; invariant
// violations halt the whole VM. Halting is expressed as a function value
// so tests can substitute a panic/recover instead of os.Exit.
package vmerr

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Sentinel errors for the well-known conditions spec.md §7 names.
var (
	ErrBadConfig = errors.New("vmpager: invalid vmInit configuration")
	ErrNoFrame   = errors.New("vmpager: no unlocked frame currently available")
	ErrSwapFull  = errors.New("vmpager: swap disk exhausted")
)

// Halt is invoked on any invariant violation or MMU return code the design
// does not expect. Fatalf logs before calling it. ExitHalt, the production
// implementation, exits the process; callers pass the Halt they want (tests
// use PanicHalt) to vmkernel.NewController.
type Halt func(logger *slog.Logger, format string, args ...any)

// Fatalf logs a formatted diagnostic through logger at Error level and then
// calls halt, which does not return in production use.
func Fatalf(logger *slog.Logger, halt Halt, format string, args ...any) {
	if logger != nil {
		logger.Error(fmt.Sprintf(format, args...))
	}
	halt(logger, format, args...)
}

// ExitHalt exits the process with code 1, per spec.md §6's "invariant
// violations halt the kernel with code 1". This is the production Halt.
func ExitHalt(logger *slog.Logger, format string, args ...any) {
	os.Exit(1)
}

// PanicHalt panics instead of exiting, for tests that want to assert an
// invariant violation was detected without killing the test binary.
func PanicHalt(logger *slog.Logger, format string, args ...any) {
	panic(fmt.Sprintf("vmpager: fatal: "+format, args...))
}
