// Package watch holds the authoritative entity set and publishes its changes
// as discovered / updated / removed streams.
package watch

import (
	"context"

	"github.com/KallynGowdy/aux-sub000/internal/core/event"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
)

// Handler receives the three change streams.
type Handler interface {
	EntitiesDiscovered(ctx context.Context, entities []*tag.Entity)
	EntitiesUpdated(ctx context.Context, entities []*tag.Entity)
	EntitiesRemoved(ctx context.Context, ids []string)
}

// Source is anything a Handler can subscribe to.
type Source interface {
	Subscribe(ctx context.Context, h Handler) (unsubscribe func())
}

// Store is the in-memory entity state. Mutations emit events on the bus; they
// reach subscribers on the next dispatch. Frame loop goroutine only.
type Store struct {
	bus      *event.Bus
	entities map[string]*tag.Entity
}

func NewStore(bus *event.Bus) *Store {
	return &Store{
		bus:      bus,
		entities: make(map[string]*tag.Entity, 256),
	}
}

// Add inserts entities. Known IDs are treated as updates.
func (s *Store) Add(entities ...*tag.Entity) {
	var discovered, updated []*tag.Entity
	for _, e := range entities {
		if e == nil {
			continue
		}
		if _, known := s.entities[e.ID()]; known {
			updated = append(updated, e)
		} else {
			discovered = append(discovered, e)
		}
		s.entities[e.ID()] = e
	}
	s.emit(discovered, updated)
}

// Update replaces entity snapshots wholesale. Unknown IDs are discoveries.
func (s *Store) Update(entities ...*tag.Entity) {
	s.Add(entities...)
}

// Remove deletes entities by ID. Unknown IDs are ignored.
func (s *Store) Remove(ids ...string) {
	var removed []string
	for _, id := range ids {
		if _, known := s.entities[id]; !known {
			continue
		}
		delete(s.entities, id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		event.Emit(s.bus, event.EntitiesRemoved{IDs: removed})
	}
}

// Apply applies one change batch.
func (s *Store) Apply(b Batch) {
	switch b.Op {
	case OpAdd:
		s.Add(b.Entities...)
	case OpUpdate:
		s.Update(b.Entities...)
	case OpRemove:
		s.Remove(b.IDs...)
	}
}

func (s *Store) emit(discovered, updated []*tag.Entity) {
	if len(discovered) > 0 {
		event.Emit(s.bus, event.EntitiesDiscovered{Entities: discovered})
	}
	if len(updated) > 0 {
		event.Emit(s.bus, event.EntitiesUpdated{Entities: updated})
	}
}

func (s *Store) Get(id string) (*tag.Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

func (s *Store) Len() int { return len(s.entities) }

// Entities returns the current snapshots sorted by ID.
func (s *Store) Entities() []*tag.Entity {
	out := make([]*tag.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	tag.SortByID(out)
	return out
}

// Subscribe replays the current state to h as one discovered batch, then
// delivers every later delta through the bus. ctx is handed to every call.
func (s *Store) Subscribe(ctx context.Context, h Handler) func() {
	if current := s.Entities(); len(current) > 0 {
		h.EntitiesDiscovered(ctx, current)
	}
	unsubs := []func(){
		event.Subscribe(s.bus, func(ev event.EntitiesDiscovered) { h.EntitiesDiscovered(ctx, ev.Entities) }),
		event.Subscribe(s.bus, func(ev event.EntitiesUpdated) { h.EntitiesUpdated(ctx, ev.Entities) }),
		event.Subscribe(s.bus, func(ev event.EntitiesRemoved) { h.EntitiesRemoved(ctx, ev.IDs) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
