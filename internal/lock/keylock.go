// internal/lock/keylock.go
package lock

import "sync"

// KeyLock serializes work per string key while leaving unrelated keys
// fully concurrent. Used with the campaign key so that add/remove/swap
// on the same campaign never interleave in-process, while other
// campaigns proceed in parallel.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLock creates an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key's lock is held and returns the unlock
// function. Entries are reference counted and removed once the last
// holder releases, so the map does not grow with the key space.
func (l *KeyLock) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
