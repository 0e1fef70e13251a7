package sync

import (
	"fmt"
	base "sync"
)

const (
	hashEntriesPerLock = 200
)

// StripedLock is a partitioned locking mechanism that consistently maps a key
// space, such as account addresses, to a fixed set of locks. Operations on
// the same key are serialized while unrelated keys mostly proceed in
// parallel, without allocating a lock per key.
type StripedLock struct {
	locks    []base.Mutex
	hashRing *ring
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	if stripes == 0 {
		stripes = 1
	}

	ringEntries := make(map[string]interface{})
	for i := 0; i < int(stripes); i++ {
		ringEntries[fmt.Sprintf("lock%d", i)] = i
	}

	return &StripedLock{
		locks:    make([]base.Mutex, stripes),
		hashRing: newRing(ringEntries, hashEntriesPerLock),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *base.Mutex {
	return &l.locks[l.hashRing.shard(key).(int)]
}

// Lock locks the stripe owning key and returns the matching unlock func.
func (l *StripedLock) Lock(key []byte) (unlock func()) {
	mu := l.Get(key)
	mu.Lock()
	return mu.Unlock
}
