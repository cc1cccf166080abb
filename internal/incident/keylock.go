package incident

import "sync"

// keyLock serializes projection per incident key. Each key gets its own
// mutex so ingests for different keys never contend; entries are
// refcounted and reclaimed when the last holder releases.
type keyLock struct {
	mu      sync.Mutex
	entries map[Key]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[Key]*lockEntry)}
}

func (l *keyLock) lock(k Key) {
	l.mu.Lock()
	e, ok := l.entries[k]
	if !ok {
		e = &lockEntry{}
		l.entries[k] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *keyLock) unlock(k Key) {
	l.mu.Lock()
	e, ok := l.entries[k]
	if !ok {
		l.mu.Unlock()
		panic("incident: unlock of unheld key")
	}
	e.refs--
	if e.refs == 0 {
		delete(l.entries, k)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
