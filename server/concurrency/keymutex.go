package concurrency

import "hash/fnv"

// SimpleMutex is a channel used for locking.
type SimpleMutex chan struct{}

// NewSimpleMutex creates and returns a new SimpleMutex object.
func NewSimpleMutex() SimpleMutex {
	return make(SimpleMutex, 1)
}

// Lock acquires a lock on the mutex.
func (s SimpleMutex) Lock() {
	s <- struct{}{}
}

// TryLock attempts to acquire a lock on the mutex.
// Returns true if the lock has been acquired, false otherwise.
func (s SimpleMutex) TryLock() bool {
	select {
	case s <- struct{}{}:
		return true
	default:
		return false
	}
}

// Unlock releases the mutex.
func (s SimpleMutex) Unlock() {
	<-s
}

// KeyMutex provides mutual exclusion keyed by arbitrary strings, such as
// object guids or (user, guid) pairs. Keys are hashed onto a fixed set of
// locks: unrelated keys may occasionally share a lock but a given key always
// maps to the same one, which is sufficient for serializing work per key.
type KeyMutex struct {
	shards []SimpleMutex
}

// NewKeyMutex allocates a KeyMutex with the given number of lock shards.
func NewKeyMutex(numShards int) *KeyMutex {
	if numShards <= 0 {
		numShards = 64
	}
	km := &KeyMutex{shards: make([]SimpleMutex, numShards)}
	for i := range km.shards {
		km.shards[i] = NewSimpleMutex()
	}
	return km
}

// Lock acquires the lock which the key hashes to.
func (km *KeyMutex) Lock(key string) {
	km.shard(key).Lock()
}

// Unlock releases the lock which the key hashes to.
func (km *KeyMutex) Unlock(key string) {
	km.shard(key).Unlock()
}

func (km *KeyMutex) shard(key string) SimpleMutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return km.shards[int(h.Sum32())%len(km.shards)]
}
