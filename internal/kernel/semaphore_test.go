package kernel

import (
	"testing"
	"time"
)

func TestSemaphorePV(t *testing.T) {
	s := NewSemaphore(0)

	done := make(chan struct{})
	go func() {
		s.P()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("P() returned before a matching V()")
	case <-time.After(20 * time.Millisecond):
	}

	s.V()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("P() did not return after V()")
	}
}

func TestSemaphoreInitialCount(t *testing.T) {
	s := NewSemaphore(2)
	s.P()
	s.P()

	done := make(chan struct{})
	go func() {
		s.P()
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("third P() should block, initial count was 2")
	case <-time.After(20 * time.Millisecond):
	}
	s.V()
	<-done
}

func TestMailboxSendReceive(t *testing.T) {
	m := NewMailbox(1)
	if !m.CondSend(42) {
		t.Fatalf("CondSend on empty mailbox should succeed")
	}
	if m.CondSend(43) {
		t.Fatalf("CondSend on full mailbox should fail")
	}
	if got := m.Receive(); got != 42 {
		t.Fatalf("Receive = %d, want 42", got)
	}
	if _, ok := m.CondReceive(); ok {
		t.Fatalf("CondReceive on empty mailbox should report ok=false")
	}
}
