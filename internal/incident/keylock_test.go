package incident

import (
	"sync"
	"testing"
	"time"
)

func TestKeyLock_MutualExclusion(t *testing.T) {
	t.Parallel()

	l := newKeyLock()
	k := Key{DedupeKey: "a", Namespace: "ns", Service: "svc"}

	const n = 100
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.lock(k)
			counter++
			l.unlock(k)
		}()
	}
	wg.Wait()

	if counter != n {
		t.Errorf("counter = %d, want %d", counter, n)
	}
}

func TestKeyLock_DisjointKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	l := newKeyLock()
	a := Key{DedupeKey: "a"}
	b := Key{DedupeKey: "b"}

	l.lock(a)
	defer l.unlock(a)

	acquired := make(chan struct{})
	go func() {
		l.lock(b)
		close(acquired)
		l.unlock(b)
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on key b blocked behind held key a")
	}
}

func TestKeyLock_EntriesReclaimed(t *testing.T) {
	t.Parallel()

	l := newKeyLock()
	k := Key{DedupeKey: "a"}

	l.lock(k)
	l.unlock(k)

	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("entries = %d, want 0 after release", n)
	}
}

func TestKeyLock_UnlockUnheldPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("unlock of unheld key did not panic")
		}
	}()
	newKeyLock().unlock(Key{DedupeKey: "never-locked"})
}
