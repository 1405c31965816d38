// Package views maintains derived projections of one grouping's members.
// Mutations only mark a list dirty; the projection is rebuilt at most once per
// frame and published to observers in one piece.
package views

import (
	"context"

	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// Predicate decides membership of the backing set.
type Predicate func(ctx context.Context, c calc.Context, e *tag.Entity) (bool, error)

// Projector derives the published value from the members, sorted by id.
type Projector[T any] func(ctx context.Context, c calc.Context, members []*tag.Entity) (T, error)

// Observer receives each published projection.
type Observer[T any] func(T)

// List is a dirty-flagged derived view. It implements scene.Tracker.
type List[T any] struct {
	name      string
	predicate Predicate
	project   Projector[T]
	equal     func(a, b T) bool // nil: publish on every recompute
	log       *zap.Logger

	members   map[string]*tag.Entity
	dirty     bool
	value     T
	published bool
	observers []Observer[T]
	publishes int
}

func NewList[T any](name string, predicate Predicate, project Projector[T], equal func(a, b T) bool, log *zap.Logger) *List[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &List[T]{
		name:      name,
		predicate: predicate,
		project:   project,
		equal:     equal,
		log:       log.With(zap.String("view", name)),
		members:   make(map[string]*tag.Entity),
	}
}

func (l *List[T]) Name() string { return l.name }

// Subscribe adds an observer. It sees the current value on the next publish.
func (l *List[T]) Subscribe(o Observer[T]) {
	l.observers = append(l.observers, o)
}

// Value returns the last published projection.
func (l *List[T]) Value() T { return l.value }

// Dirty reports whether a recompute is pending.
func (l *List[T]) Dirty() bool { return l.dirty }

// Len is the size of the backing set.
func (l *List[T]) Len() int { return len(l.members) }

// Publishes counts how many times observers were notified.
func (l *List[T]) Publishes() int { return l.publishes }

func (l *List[T]) EntityAdded(ctx context.Context, c calc.Context, e *tag.Entity) {
	if _, ok := l.members[e.ID()]; ok {
		return
	}
	ok, err := l.predicate(ctx, c, e)
	if err != nil {
		l.log.Warn("membership query failed", zap.String("entity", e.ID()), zap.Error(err))
		return
	}
	if ok {
		l.members[e.ID()] = e
		l.dirty = true
	}
}

func (l *List[T]) EntityUpdated(ctx context.Context, c calc.Context, e *tag.Entity, _ []string) {
	ok, err := l.predicate(ctx, c, e)
	if err != nil {
		l.log.Warn("membership query failed", zap.String("entity", e.ID()), zap.Error(err))
		return
	}
	_, had := l.members[e.ID()]
	switch {
	case ok:
		l.members[e.ID()] = e
		l.dirty = true
	case had:
		delete(l.members, e.ID())
		l.dirty = true
	}
}

func (l *List[T]) EntityRemoved(_ context.Context, _ calc.Context, id string) {
	if _, ok := l.members[id]; ok {
		delete(l.members, id)
		l.dirty = true
	}
}

// FrameUpdate recomputes when dirty. A failed projection keeps the last
// published value.
func (l *List[T]) FrameUpdate(ctx context.Context, c calc.Context) {
	if !l.dirty {
		return
	}
	l.dirty = false
	members := make([]*tag.Entity, 0, len(l.members))
	for _, e := range l.members {
		members = append(members, e)
	}
	tag.SortByID(members)
	next, err := l.project(ctx, c, members)
	if err != nil {
		l.log.Warn("recompute failed", zap.Error(err))
		return
	}
	if l.published && l.equal != nil && l.equal(l.value, next) {
		return
	}
	l.value = next
	l.published = true
	l.publishes++
	for _, o := range l.observers {
		o(next)
	}
}

// byIndex returns members with their index in group, ordered by index then id.
func byIndex(ctx context.Context, c calc.Context, group string, members []*tag.Entity) ([]calc.Stacked, error) {
	out := make([]calc.Stacked, 0, len(members))
	for _, e := range members {
		idx, err := calc.Index(ctx, c, e, group)
		if err != nil {
			return nil, err
		}
		out = append(out, calc.Stacked{Entity: e, Index: idx})
	}
	calc.SortStack(out)
	return out, nil
}

func sameEntities(a, b []*tag.Entity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func memberOf(group string) Predicate {
	return func(ctx context.Context, c calc.Context, e *tag.Entity) (bool, error) {
		return calc.IsMember(ctx, c, e, group)
	}
}
