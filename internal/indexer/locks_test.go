package indexer

import (
	"testing"
	"time"
)

func TestPathLocks_serializesSamePath(t *testing.T) {
	locks := newPathLocks()
	release := locks.lock("a.md")

	acquired := make(chan struct{})
	go func() {
		unlock := locks.lock("a.md")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never acquired the lock after release")
	}
}

func TestPathLocks_distinctPathsDoNotContend(t *testing.T) {
	locks := newPathLocks()
	releaseA := locks.lock("a.md")
	defer releaseA()

	acquired := make(chan struct{})
	go func() {
		unlock := locks.lock("b.md")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("a different path blocked behind an unrelated lock")
	}
}

func TestPathLocks_releaseCleansUp(t *testing.T) {
	locks := newPathLocks()
	release1 := locks.lock("a.md")

	second := make(chan func(), 1)
	go func() { second <- locks.lock("a.md") }()
	time.Sleep(50 * time.Millisecond)

	// Two holders in flight: one entry, refcount keeps it alive.
	locks.mu.Lock()
	if n := len(locks.locks); n != 1 {
		t.Errorf("entries while held = %d, want 1", n)
	}
	locks.mu.Unlock()

	release1()
	release2 := <-second
	release2()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if n := len(locks.locks); n != 0 {
		t.Errorf("entries after release = %d, want 0", n)
	}
}
