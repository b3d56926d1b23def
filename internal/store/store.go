// Package store keeps learning events in memory, keyed by incrementing ids.
// Nothing is persisted; the store lives as long as the process.
package store

import (
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Record is one append-only event.
type Record struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"userId"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Filter selects records in List. Zero fields match everything.
type Filter struct {
	UserID string
	Type   string
	Limit  int // newest Limit records; 0 means all
}

// Store is a thread-safe in-memory record store.
type Store struct {
	mu      sync.RWMutex
	records map[int64]Record
	nextID  int64
	max     int
	now     func() time.Time
}

// New creates a store. When capacity > 0 the oldest records are evicted once the
// store holds capacity records.
func New(capacity int) *Store {
	return &Store{
		records: make(map[int64]Record),
		max:     capacity,
		now:     time.Now,
	}
}

// Append assigns the next id and stores r. A zero Timestamp is set to now.
func (s *Store) Append(r Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r.ID = s.nextID
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	s.records[r.ID] = r

	if s.max > 0 && len(s.records) > s.max {
		// Ids increase monotonically, so the oldest live id is the minimum.
		oldest := r.ID
		for id := range s.records {
			oldest = min(oldest, id)
		}
		delete(s.records, oldest)
	}
	return r
}

// Get returns the record with the given id.
func (s *Store) Get(id int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// List returns the records matching f, oldest first.
func (s *Store) List(f Filter) []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Type != "" && r.Type != f.Type {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Delete removes the record with the given id.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
