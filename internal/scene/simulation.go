package scene

import (
	"context"
	"sort"

	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/KallynGowdy/aux-sub000/internal/watch"
	"go.uber.org/zap"
)

// Simulation is the root of the scene tree. It implements watch.Handler.
type Simulation struct {
	deps     Deps
	entities map[string]*tag.Entity
	groups   map[string]*Group // by root entity id
	trackers []Tracker
	unsub    func()
	disposed bool
}

func NewSimulation(deps Deps) *Simulation {
	return &Simulation{
		deps:     deps.withDefaults(),
		entities: make(map[string]*tag.Entity, 256),
		groups:   make(map[string]*Group),
	}
}

// Track registers a derived view. Trackers added before Init see the replay.
func (s *Simulation) Track(t Tracker) {
	s.trackers = append(s.trackers, t)
}

// Init subscribes to src; the current state arrives immediately as one
// discovered batch.
func (s *Simulation) Init(ctx context.Context, src watch.Source) {
	if s.unsub != nil || s.disposed {
		return
	}
	s.unsub = src.Subscribe(ctx, s)
}

// Deps returns the resolved dependencies.
func (s *Simulation) Deps() Deps { return s.deps }

// Calc builds a Calculation Context over the current entity set.
func (s *Simulation) Calc() calc.Context {
	return s.deps.Calc(s.entities)
}

func (s *Simulation) Entity(id string) (*tag.Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Group returns the container rooted at the given entity.
func (s *Simulation) Group(rootID string) (*Group, bool) {
	g, ok := s.groups[rootID]
	return g, ok
}

// Groups returns every live container sorted by root id.
func (s *Simulation) Groups() []*Group {
	out := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RootID() < out[j].RootID() })
	return out
}

func (s *Simulation) EntitiesDiscovered(ctx context.Context, entities []*tag.Entity) {
	if s.disposed {
		return
	}
	for _, e := range entities {
		s.entities[e.ID()] = e
	}
	c := s.Calc()
	for _, e := range entities {
		if _, ok := s.groups[e.ID()]; ok {
			s.entityUpdated(ctx, c, e, tag.ChangedTags(nil, e))
			continue
		}
		for _, g := range s.Groups() {
			g.EntityAdded(ctx, c, e)
		}
		s.defineGroup(ctx, c, e)
		for _, t := range s.trackers {
			guard(s.deps.Log, "track add", e.ID(), func() error {
				t.EntityAdded(ctx, c, e)
				return nil
			})
		}
	}
}

func (s *Simulation) EntitiesUpdated(ctx context.Context, entities []*tag.Entity) {
	if s.disposed {
		return
	}
	changed := make([][]string, len(entities))
	for i, e := range entities {
		changed[i] = tag.ChangedTags(s.entities[e.ID()], e)
		s.entities[e.ID()] = e
	}
	c := s.Calc()
	for i, e := range entities {
		s.entityUpdated(ctx, c, e, changed[i])
	}
}

func (s *Simulation) entityUpdated(ctx context.Context, c calc.Context, e *tag.Entity, changed []string) {
	if g, ok := s.groups[e.ID()]; ok {
		var declared int
		guard(s.deps.Log, "root update", e.ID(), func() error {
			var err error
			declared, err = g.RootUpdated(ctx, c, e)
			return err
		})
		if declared == 0 && len(g.contexts) == 0 {
			g.Dispose()
			delete(s.groups, e.ID())
		}
	} else {
		s.defineGroup(ctx, c, e)
	}
	for _, g := range s.Groups() {
		g.EntityUpdated(ctx, c, e, changed)
	}
	for _, t := range s.trackers {
		guard(s.deps.Log, "track update", e.ID(), func() error {
			t.EntityUpdated(ctx, c, e, changed)
			return nil
		})
	}
}

// defineGroup creates a container for e when it declares any grouping.
func (s *Simulation) defineGroup(ctx context.Context, c calc.Context, e *tag.Entity) {
	declared, err := calc.DeclaredGroups(ctx, c, e)
	if err != nil {
		s.deps.Log.Warn("grouping declaration failed", zap.String("entity", e.ID()), zap.Error(err))
		return
	}
	if len(declared) == 0 {
		return
	}
	g, err := newGroup(s, e)
	if err != nil {
		s.deps.Log.Warn("create group failed", zap.String("entity", e.ID()), zap.Error(err))
		return
	}
	s.groups[e.ID()] = g
	guard(s.deps.Log, "seed", e.ID(), func() error {
		_, err := g.RootUpdated(ctx, c, e)
		return err
	})
	s.deps.Log.Debug("group created", zap.String("root", e.ID()), zap.Strings("groupings", declared))
}

func (s *Simulation) EntitiesRemoved(ctx context.Context, ids []string) {
	if s.disposed {
		return
	}
	for _, id := range ids {
		delete(s.entities, id)
	}
	c := s.Calc()
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			g.Dispose()
			delete(s.groups, id)
			s.deps.Log.Debug("group disposed", zap.String("root", id))
		}
		for _, g := range s.Groups() {
			g.EntityRemoved(ctx, c, id)
		}
		for _, t := range s.trackers {
			guard(s.deps.Log, "track remove", id, func() error {
				t.EntityRemoved(ctx, c, id)
				return nil
			})
		}
	}
}

// FrameUpdate builds one Calculation Context for the whole frame and passes
// it to every container and tracker.
func (s *Simulation) FrameUpdate(ctx context.Context) {
	if s.disposed {
		return
	}
	c := s.Calc()
	for _, g := range s.Groups() {
		g.FrameUpdate(ctx, c)
	}
	for _, t := range s.trackers {
		guard(s.deps.Log, "track frame", "", func() error {
			t.FrameUpdate(ctx, c)
			return nil
		})
	}
}

// Dispose unsubscribes and tears the whole tree down.
func (s *Simulation) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	for id, g := range s.groups {
		g.Dispose()
		delete(s.groups, id)
	}
}
