// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/linnemanlabs/medtriage/internal/triage"
)

// Store holds prediction records in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*triage.Record // prediction ID -> record
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*triage.Record),
	}
}

// Get retrieves a record by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return clone(r), true, nil
}

// Put stores a copy of the record, replacing any record with the same ID.
func (s *Store) Put(_ context.Context, r *triage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = clone(r)
	return nil
}

// Recent returns up to limit records ordered by CreatedAt, newest first, with
// ties broken by ID descending. Writes arrive from detached goroutines, so
// arrival order says nothing about request order.
func (s *Store) Recent(_ context.Context, limit int) ([]*triage.Record, error) {
	if limit <= 0 {
		return []*triage.Record{}, nil
	}

	s.mu.RLock()
	all := make([]*triage.Record, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, r)
	}
	s.mu.RUnlock()

	slices.SortFunc(all, newestFirst)

	out := make([]*triage.Record, 0, min(limit, len(all)))
	for _, r := range all[:min(limit, len(all))] {
		out = append(out, clone(r))
	}
	return out, nil
}

func newestFirst(a, b *triage.Record) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

func clone(r *triage.Record) *triage.Record {
	cp := *r
	cp.Symptoms = slices.Clone(r.Symptoms)
	cp.Distribution = maps.Clone(r.Distribution)
	return &cp
}
