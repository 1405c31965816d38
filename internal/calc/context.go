// Package calc is the query oracle the scene layer asks about entities: tag
// values with formulas resolved, grouping membership, placement and stacking.
// All queries are side-effect free.
package calc

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/KallynGowdy/aux-sub000/internal/scripting"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
)

// ErrNoEvaluator is returned when a formula value is queried but the context
// has no formula engine.
var ErrNoEvaluator = errors.New("calc: no formula evaluator")

// Context answers queries against one snapshot of all entities.
// Implementations may block (deferred engines) and must honour ctx.
type Context interface {
	// Entities returns every entity in the snapshot sorted by ID.
	Entities() []*tag.Entity
	Entity(id string) (*tag.Entity, bool)
	// Value returns the computed value of a tag: formulas are evaluated,
	// other values are returned as-is.
	Value(ctx context.Context, e *tag.Entity, name string) (tag.Value, error)
}

// Factory builds a Context over a set of entities.
type Factory func(entities map[string]*tag.Entity) Context

// Evaluator resolves formula sources.
type Evaluator interface {
	Eval(ctx context.Context, source string, this *tag.Entity, lookup scripting.Lookup) (tag.Value, error)
}

// Snapshot is the default synchronous Context.
type Snapshot struct {
	entities map[string]*tag.Entity
	sorted   []*tag.Entity
	eval     Evaluator
}

// NewSnapshot copies entities; later changes to the map are not observed.
func NewSnapshot(entities map[string]*tag.Entity, eval Evaluator) *Snapshot {
	return &Snapshot{entities: maps.Clone(entities), eval: eval}
}

// SnapshotFactory returns a Factory producing Snapshots that share eval.
func SnapshotFactory(eval Evaluator) Factory {
	return func(entities map[string]*tag.Entity) Context {
		return NewSnapshot(entities, eval)
	}
}

func (s *Snapshot) Entities() []*tag.Entity {
	if s.sorted == nil {
		s.sorted = make([]*tag.Entity, 0, len(s.entities))
		for _, e := range s.entities {
			s.sorted = append(s.sorted, e)
		}
		tag.SortByID(s.sorted)
	}
	return s.sorted
}

func (s *Snapshot) Entity(id string) (*tag.Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

func (s *Snapshot) Value(ctx context.Context, e *tag.Entity, name string) (tag.Value, error) {
	if e == nil {
		return tag.Null(), nil
	}
	raw := e.Tag(name)
	src, ok := raw.Source()
	if !ok {
		return raw, nil
	}
	if s.eval == nil {
		return tag.Null(), fmt.Errorf("%s on %s: %w", name, e.ID(), ErrNoEvaluator)
	}
	v, err := s.eval.Eval(ctx, src, e, s.Entity)
	if err != nil {
		return tag.Null(), fmt.Errorf("%s on %s: %w", name, e.ID(), err)
	}
	return v, nil
}

// SortStack orders co-located entities by stacking index, ties broken by ID.
func SortStack(entries []Stacked) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Index != entries[j].Index {
			return entries[i].Index < entries[j].Index
		}
		return entries[i].Entity.ID() < entries[j].Entity.ID()
	})
}

// Stacked pairs an entity with its stacking index in some grouping.
type Stacked struct {
	Entity *tag.Entity
	Index  int
}
