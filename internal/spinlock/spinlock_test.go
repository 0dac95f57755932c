package spinlock

import "testing"

func TestAcquireReleaseRoundTrips(t *testing.T) {
	var l Lock
	l.Acquire()
	if l.held != 1 {
		t.Fatalf("held = %d, want 1 after Acquire", l.held)
	}
	l.Release()
	if l.held != 0 {
		t.Fatalf("held = %d, want 0 after Release", l.held)
	}
}

func TestNestedAcquireOnDistinctLocksDoesNotDeadlock(t *testing.T) {
	var a, b Lock
	a.Acquire()
	b.Acquire()
	b.Release()
	a.Release()
	if a.held != 0 || b.held != 0 {
		t.Fatalf("locks not released: a=%d b=%d", a.held, b.held)
	}
}
