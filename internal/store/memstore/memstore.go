// Package memstore is an in-process EntityStore for tests and local runs.
// Nothing survives a restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

type Store struct {
	mu        sync.RWMutex
	events    []core.Event
	entities  map[string]core.Entity
	bySubject map[string][]int
}

func New() *Store {
	return &Store{
		entities:  make(map[string]core.Entity),
		bySubject: make(map[string][]int),
	}
}

// AppendEvents implements core.EntityStore.
func (s *Store) AppendEvents(ctx context.Context, events ...*core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every introduced id before touching state so a rejected batch of
	// events leaves nothing behind.
	fresh := make(map[string]bool)
	for _, ev := range events {
		for _, ent := range ev.Entities() {
			id := ent.ID()
			if _, ok := s.entities[id]; ok || fresh[id] {
				return fmt.Errorf("entity %s already exists", id)
			}
			fresh[id] = true
		}
	}

	for _, ev := range events {
		ev.Seq = int64(len(s.events) + 1)
		s.events = append(s.events, *ev)
		s.bySubject[ev.SubjectID] = append(s.bySubject[ev.SubjectID], len(s.events)-1)
		for _, ent := range ev.Entities() {
			s.entities[ent.ID()] = ent
		}
	}
	return nil
}

// GetEntity implements core.EntityStore.
func (s *Store) GetEntity(_ context.Context, id string) (*core.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.entities[id]
	if !ok {
		return nil, &core.NotFoundError{ID: id}
	}
	return &ent, nil
}

// EventsBySubject implements core.EntityStore.
func (s *Store) EventsBySubject(_ context.Context, ids []string) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	var idx []int
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		idx = append(idx, s.bySubject[id]...)
	}
	sort.Ints(idx)
	out := make([]core.Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Replay implements core.EntityStore. fn runs on a snapshot, outside the lock.
func (s *Store) Replay(ctx context.Context, fn func(core.Event) error) error {
	s.mu.RLock()
	snapshot := append([]core.Event(nil), s.events...)
	s.mu.RUnlock()
	for _, ev := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
