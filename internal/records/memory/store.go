// Package memory provides an in-process record store, seeded from a YAML
// file or from the deterministic generator.
package memory

import (
	"context"
	"fmt"
	"sync"

	"activitylog/internal/core"
	"activitylog/internal/records"
)

type Store struct {
	mu     sync.RWMutex
	items  map[int64]core.ActivityRecord
	nextID int64
}

var _ records.Store = (*Store)(nil)

// New returns a store holding rs. Records without a positive id get one.
func New(rs ...core.ActivityRecord) *Store {
	s := &Store{items: make(map[int64]core.ActivityRecord, len(rs)), nextID: 1}
	for _, r := range rs {
		if r.ID <= 0 {
			r.ID = s.nextID
		}
		s.items[r.ID] = r
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	return s
}

func (s *Store) ListActivities(_ context.Context, f records.Filter) ([]core.ActivityRecord, error) {
	f, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.ActivityRecord, 0, len(s.items))
	for _, r := range s.items {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	records.SortRecent(out)
	return out, nil
}

func (s *Store) GetActivity(_ context.Context, id int64) (core.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return core.ActivityRecord{}, fmt.Errorf("get activity %d: %w", id, records.ErrNotFound)
	}
	return r, nil
}

func (s *Store) CreateActivity(_ context.Context, r core.ActivityRecord) (core.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	s.items[r.ID] = r
	return r, nil
}

func (s *Store) UpdateActivity(_ context.Context, id int64, p core.ActivityPatch) (core.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return core.ActivityRecord{}, fmt.Errorf("update activity %d: %w", id, records.ErrNotFound)
	}
	r = p.Apply(r)
	s.items[id] = r
	return r, nil
}

func (s *Store) DeleteActivity(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("delete activity %d: %w", id, records.ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

func (s *Store) ListPersonnel(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]core.ActivityRecord, 0, len(s.items))
	for _, r := range s.items {
		all = append(all, r)
	}
	return records.DistinctPersonnel(all), nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
