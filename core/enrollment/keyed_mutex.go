package enrollment

import "sync"

// keyedMutex serializes work per enrollment id: a single writer per
// aggregate, so attempt counters and repeat rollbacks hold under concurrent
// submissions (e.g. a duplicated browser tab).
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int]*lockEntry
}

type lockEntry struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int]*lockEntry)}
}

func (km *keyedMutex) lock(key int) {
	km.mu.Lock()
	entry, ok := km.locks[key]
	if !ok {
		entry = &lockEntry{}
		km.locks[key] = entry
	}
	entry.refs++
	km.mu.Unlock()

	entry.Lock()
}

func (km *keyedMutex) unlock(key int) {
	km.mu.Lock()
	entry := km.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	entry.Unlock()
}
