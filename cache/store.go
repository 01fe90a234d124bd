// Package cache implements the keyed in-memory store the query layer
// commits fetch results into. Entries carry per-category freshness
// (stale) and eviction (expire) windows; writes synchronously notify
// subscribed listeners, mirroring the console's re-render-on-change
// contract.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Key identifies one cache entry. Keys are structured strings built by
// the selector resolver ("jobs|mine=true|status=in-progress",
// "job|abc123", ...) so prefix scans can cover all filter variants of a
// category.
type Key string

// HasPrefix reports whether the key falls under the given category prefix.
func (k Key) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(k), prefix)
}

// Freshness bundles an entry's stale and eviction windows.
// A zero Stale window means the entry is always considered stale
// (used by batch polling, which must refetch every cycle).
type Freshness struct {
	Stale time.Duration
	Evict time.Duration
}

// Entry is a snapshot of one cache slot. Data must be treated as
// immutable by readers; writers replace whole objects.
type Entry struct {
	Data      interface{}
	Err       error
	FetchedAt time.Time
	Freshness Freshness
	Seq       uint64
	Fetching  bool
}

// Stale reports whether the entry is due for a background refetch.
func (e Entry) Stale(now time.Time) bool {
	if e.FetchedAt.IsZero() {
		return true
	}
	return !now.Before(e.FetchedAt.Add(e.Freshness.Stale))
}

// Expired reports whether the entry is eligible for eviction.
func (e Entry) Expired(now time.Time) bool {
	if e.FetchedAt.IsZero() {
		return false // never-fetched placeholders are cleaned up by their owners
	}
	return now.After(e.FetchedAt.Add(e.Freshness.Evict))
}

// Listener is invoked synchronously after a write to the key it watches.
type Listener func(key Key)

// KV pairs a key with its entry data for prefix scans.
type KV struct {
	Key  Key
	Data interface{}
}

// Store is the process-wide cache. Safe for concurrent use; logical
// write races resolve last-writer-wins at the entry level.
type Store struct {
	mu        sync.RWMutex
	entries   map[Key]*Entry
	keySubs   map[Key]map[int]Listener
	allSubs   map[int]Listener
	nextSubID int
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{
		entries: make(map[Key]*Entry),
		keySubs: make(map[Key]map[int]Listener),
		allSubs: make(map[int]Listener),
	}
}

// Get returns a snapshot of the entry for key.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Set commits fetched data under key, clearing any previous error.
func (s *Store) Set(key Key, data interface{}, freshness Freshness) {
	s.mu.Lock()
	entry := s.ensureLocked(key)
	entry.Data = data
	entry.Err = nil
	entry.FetchedAt = time.Now()
	entry.Freshness = freshness
	entry.Seq++
	entry.Fetching = false
	listeners := s.listenersLocked(key)
	s.mu.Unlock()

	notify(listeners, key)
}

// SetError records a fetch failure on the entry. Existing data is kept
// so views can keep rendering the last known value alongside the error.
func (s *Store) SetError(key Key, err error) {
	s.mu.Lock()
	entry := s.ensureLocked(key)
	entry.Err = err
	entry.Fetching = false
	listeners := s.listenersLocked(key)
	s.mu.Unlock()

	notify(listeners, key)
}

// SetFetching flags an in-flight fetch for the key.
func (s *Store) SetFetching(key Key, fetching bool) {
	s.mu.Lock()
	entry := s.ensureLocked(key)
	entry.Fetching = fetching
	s.mu.Unlock()
}

// Update applies fn to the entry's current data. fn returns the
// replacement data and whether anything changed; unchanged entries are
// left untouched (no notification, no seq bump). The entry's freshness
// clock is not reset: a patch is not a fetch.
func (s *Store) Update(key Key, fn func(data interface{}) (interface{}, bool)) bool {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false
	}

	updated, changed := fn(entry.Data)
	if !changed {
		s.mu.Unlock()
		return false
	}

	entry.Data = updated
	entry.Seq++
	listeners := s.listenersLocked(key)
	s.mu.Unlock()

	notify(listeners, key)
	return true
}

// Invalidate marks the entry stale so the next subscription or poll
// refetches it. The data itself is kept for immediate rendering.
func (s *Store) Invalidate(key Key) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok {
		entry.FetchedAt = time.Time{}
		entry.Seq++
	}
	listeners := s.listenersLocked(key)
	s.mu.Unlock()

	if ok {
		notify(listeners, key)
	}
}

// InvalidatePrefix invalidates every entry under a category prefix.
func (s *Store) InvalidatePrefix(prefix string) {
	s.mu.RLock()
	keys := make([]Key, 0)
	for key := range s.entries {
		if key.HasPrefix(prefix) {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	for _, key := range keys {
		s.Invalidate(key)
	}
}

// Remove evicts the entry entirely.
func (s *Store) Remove(key Key) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// EntriesByPrefix returns all entries whose key falls under prefix,
// sorted by key for deterministic iteration.
func (s *Store) EntriesByPrefix(prefix string) []KV {
	s.mu.RLock()
	out := make([]KV, 0)
	for key, entry := range s.entries {
		if key.HasPrefix(prefix) {
			out = append(out, KV{Key: key, Data: entry.Data})
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Subscribe registers a listener for one key. The returned function
// unsubscribes.
func (s *Store) Subscribe(key Key, fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	if s.keySubs[key] == nil {
		s.keySubs[key] = make(map[int]Listener)
	}
	s.keySubs[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.keySubs[key], id)
		if len(s.keySubs[key]) == 0 {
			delete(s.keySubs, key)
		}
	}
}

// SubscribeAll registers a listener for every write. Used by the console
// push server to mirror cache changes to connected clients.
func (s *Store) SubscribeAll(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.allSubs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.allSubs, id)
	}
}

// Subscribers reports how many listeners watch the given key.
func (s *Store) Subscribers(key Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keySubs[key])
}

// Sweep evicts expired entries that no listener is watching.
// Returns the number of entries removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if len(s.keySubs[key]) > 0 {
			continue
		}
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ensureLocked returns the entry for key, creating it if absent.
// REQUIRES: s.mu held for writing.
func (s *Store) ensureLocked(key Key) *Entry {
	entry, ok := s.entries[key]
	if !ok {
		entry = &Entry{}
		s.entries[key] = entry
	}
	return entry
}

// listenersLocked snapshots the listeners for key plus the all-writes
// listeners. REQUIRES: s.mu held.
func (s *Store) listenersLocked(key Key) []Listener {
	listeners := make([]Listener, 0, len(s.keySubs[key])+len(s.allSubs))
	for _, fn := range s.keySubs[key] {
		listeners = append(listeners, fn)
	}
	for _, fn := range s.allSubs {
		listeners = append(listeners, fn)
	}
	return listeners
}

// notify invokes listeners outside the store lock so they may call back
// into the store.
func notify(listeners []Listener, key Key) {
	for _, fn := range listeners {
		fn(key)
	}
}
