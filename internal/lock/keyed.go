// Package lock provides entity-scoped serialization: one mutex per record
// id, so unrelated records mutate concurrently while all writes to a given
// record run one at a time.
package lock

import "sync"

type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

func (k *Keyed) get(id string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	return m
}

// Lock acquires the mutex for id and returns its unlock func.
func (k *Keyed) Lock(id string) func() {
	m := k.get(id)
	m.Lock()
	return m.Unlock
}

// LockPair acquires both entity locks in ascending id order, so two
// opposite-direction transfers over the same accounts cannot deadlock.
// The ids must differ.
func (k *Keyed) LockPair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	first, second := k.get(a), k.get(b)
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
