// Package mempool maintains the set of payloads waiting to be mined.
package mempool

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry represents a payload waiting to be mined into a block.
type Entry struct {
	ID       string    `json:"id"`
	Payload  string    `json:"payload"`
	Received time.Time `json:"received"`
}

// Mempool represents a cache of payloads organized by id with a second key
// on the payload so the same payload is only queued once. Payloads are
// picked in the order they were received.
type Mempool struct {
	mu        sync.RWMutex
	pool      map[string]Entry
	byPayload map[string]string
	order     []string
}

// New constructs a new mempool.
func New() *Mempool {
	return &Mempool{
		pool:      make(map[string]Entry),
		byPayload: make(map[string]string),
	}
}

// Count returns the current number of payloads in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds a payload to the mempool. If the payload is already waiting,
// the existing entry is returned and the bool is false.
func (mp *Mempool) Upsert(payload string) (Entry, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if id, exists := mp.byPayload[payload]; exists {
		return mp.pool[id], false
	}

	entry := Entry{
		ID:       uuid.NewString(),
		Payload:  payload,
		Received: time.Now().UTC(),
	}

	mp.pool[entry.ID] = entry
	mp.byPayload[payload] = entry.ID
	mp.order = append(mp.order, entry.ID)

	return entry, true
}

// Delete removes an entry from the mempool.
func (mp *Mempool) Delete(id string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	entry, exists := mp.pool[id]
	if !exists {
		return
	}

	delete(mp.pool, id)
	delete(mp.byPayload, entry.Payload)

	for i, oid := range mp.order {
		if oid == id {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}

// DeletePayload removes the entry holding the specified payload. This is
// used when a block mined by another node records the payload.
func (mp *Mempool) DeletePayload(payload string) {
	mp.mu.RLock()
	id, exists := mp.byPayload[payload]
	mp.mu.RUnlock()

	if exists {
		mp.Delete(id)
	}
}

// PickNext returns the oldest entry in the pool without removing it.
func (mp *Mempool) PickNext() (Entry, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if len(mp.order) == 0 {
		return Entry{}, false
	}

	return mp.pool[mp.order[0]], true
}

// Requeue moves the entry to the back of the pool so the entries behind
// it are picked first. It reports false when the entry doesn't exist.
func (mp *Mempool) Requeue(id string) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[id]; !exists {
		return false
	}

	for i, oid := range mp.order {
		if oid == id {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
	mp.order = append(mp.order, id)

	return true
}

// Copy returns the entries in the order they were received.
func (mp *Mempool) Copy() []Entry {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	entries := make([]Entry, 0, len(mp.order))
	for _, id := range mp.order {
		entries = append(entries, mp.pool[id])
	}

	return entries
}

// Truncate clears all the entries from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]Entry)
	mp.byPayload = make(map[string]string)
	mp.order = nil
}
