package scene

import (
	"context"
	"math/rand"
	"testing"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/core/event"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/KallynGowdy/aux-sub000/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// countingGraph records how often each node is explicitly removed.
type countingGraph struct {
	*render.Scene
	removed map[render.Node]int
}

func newCountingGraph() *countingGraph {
	return &countingGraph{Scene: render.NewScene(), removed: make(map[render.Node]int)}
}

func (g *countingGraph) Remove(n render.Node) int {
	g.removed[n]++
	return g.Scene.Remove(n)
}

func newSim(t *testing.T, deps Deps) (*Simulation, *countingGraph) {
	t.Helper()
	g := newCountingGraph()
	deps.Graph = g
	if deps.Log == nil {
		deps.Log = zaptest.NewLogger(t)
	}
	return NewSimulation(deps), g
}

func bot(id string, tags map[string]any) *tag.Entity {
	return tag.FromMap(id, tags)
}

func root(id string, groupings ...any) *tag.Entity {
	if len(groupings) == 1 {
		return bot(id, map[string]any{tag.Context: groupings[0]})
	}
	return bot(id, map[string]any{tag.Context: groupings})
}

func mustContext(t *testing.T, s *Simulation, rootID, name string) *Context {
	t.Helper()
	g, ok := s.Group(rootID)
	require.True(t, ok, "group %s", rootID)
	x, ok := g.Context(name)
	require.True(t, ok, "context %s", name)
	return x
}

func botIDs(x *Context) []string {
	ids := make([]string, 0, x.Len())
	for _, b := range x.Bots() {
		ids = append(ids, b.ID())
	}
	return ids
}

func position(g render.Graph, b *Bot) math32.Vector3 {
	t, _ := g.Transform(b.Node())
	return t.Position
}

func flush(bus *event.Bus) {
	bus.SwapBuffers()
	bus.DispatchAll()
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	e2 := bot("E2", map[string]any{"room1": true})
	s.EntitiesDiscovered(ctx, []*tag.Entity{root("E1", "room1")})
	s.EntitiesDiscovered(ctx, []*tag.Entity{e2})

	x := mustContext(t, s, "E1", "room1")
	first, ok := x.Bot("E2")
	require.True(t, ok)

	s.EntitiesDiscovered(ctx, []*tag.Entity{e2})
	x.EntityAdded(ctx, s.Calc(), e2)

	assert.Equal(t, 1, x.Len())
	again, _ := x.Bot("E2")
	assert.Same(t, first, again)
	assert.Equal(t, 1, g.Count(render.KindBox))
}

func TestConvergesToMembership(t *testing.T) {
	ctx := context.Background()
	ids := []string{"a", "b", "c", "d", "e"}
	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		bus := event.NewBus()
		store := watch.NewStore(bus)
		s, g := newSim(t, Deps{Log: zap.NewNop()})

		store.Add(root("E1", "room1"))
		s.Init(ctx, store)
		for step := 0; step < 60; step++ {
			id := ids[rng.Intn(len(ids))]
			e := bot(id, map[string]any{"room1": rng.Intn(2) == 0, "room1.x": float64(rng.Intn(3))})
			switch rng.Intn(3) {
			case 0:
				store.Add(e)
			case 1:
				store.Update(e)
			default:
				store.Remove(id)
			}
			if rng.Intn(3) == 0 {
				flush(bus)
			}
		}
		flush(bus)

		var want []string
		for _, e := range store.Entities() {
			if e.Tag("room1").Truthy() {
				want = append(want, e.ID())
			}
		}
		x := mustContext(t, s, "E1", "room1")
		assert.ElementsMatch(t, want, botIDs(x), "seed %d", seed)
		assert.Equal(t, len(want), g.Count(render.KindBox), "seed %d", seed)
	}
}

func TestGroupingAddRemoveSymmetry(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	s.EntitiesDiscovered(ctx, []*tag.Entity{
		bot("a1", map[string]any{"A": true}),
		bot("b1", map[string]any{"B": true}),
		bot("c1", map[string]any{"C": true}),
		root("R", "A", "B"),
	})
	grp, ok := s.Group("R")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, grp.Contexts())

	a1, _ := mustContext(t, s, "R", "A").Bot("a1")
	b1, _ := mustContext(t, s, "R", "B").Bot("b1")
	require.NotNil(t, a1)
	require.NotNil(t, b1)

	s.EntitiesUpdated(ctx, []*tag.Entity{root("R", "B", "C")})

	assert.Equal(t, []string{"B", "C"}, grp.Contexts())
	assert.True(t, a1.Disposed())
	assert.Equal(t, 1, g.removed[a1.Node()], "A's bots are disposed exactly once")
	assert.False(t, g.Alive(a1.Node()))

	b1Again, _ := mustContext(t, s, "R", "B").Bot("b1")
	assert.Same(t, b1, b1Again)
	assert.False(t, b1.Disposed())
	assert.Zero(t, g.removed[b1.Node()])

	assert.Equal(t, []string{"c1"}, botIDs(mustContext(t, s, "R", "C")), "new grouping is seeded from known entities")
	assert.Equal(t, 2, g.Count(render.KindBox))
}

func TestStackingHeightAccumulation(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	s.EntitiesDiscovered(ctx, []*tag.Entity{root("ctx", "room1")})
	// inserted top-down so order comes from the index tag, not arrival
	s.EntitiesDiscovered(ctx, []*tag.Entity{
		bot("top", map[string]any{"room1": true, "room1.index": 2}),
		bot("mid", map[string]any{"room1": true, "room1.index": 1}),
		bot("low", map[string]any{"room1": true, "room1.index": 0}),
		bot("elsewhere", map[string]any{"room1": true, "room1.x": 3}),
	})
	x := mustContext(t, s, "ctx", "room1")
	for id, want := range map[string]float32{"low": 0, "mid": 1, "top": 2, "elsewhere": 0} {
		b, ok := x.Bot(id)
		require.True(t, ok, id)
		assert.Equal(t, want, position(g, b).Y, id)
	}

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("low", map[string]any{"room1": true, "room1.index": 0, tag.ScaleZ: 2})})
	top, _ := x.Bot("top")
	mid, _ := x.Bot("mid")
	assert.Equal(t, float32(2), position(g, mid).Y)
	assert.Equal(t, float32(3), position(g, top).Y)

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("mid", map[string]any{"room1": true, "room1.index": 1, tag.Stackable: false})})
	assert.Equal(t, float32(0), position(g, mid).Y, "non-stackable bots rest on the floor")
	assert.Equal(t, float32(2), position(g, top).Y)

	s.EntitiesRemoved(ctx, []string{"low"})
	assert.Equal(t, float32(0), position(g, top).Y)
}

func TestRemovalBatchBuildsOneContext(t *testing.T) {
	ctx := context.Background()
	builds := 0
	snapshots := calc.SnapshotFactory(nil)
	s, g := newSim(t, Deps{Calc: func(entities map[string]*tag.Entity) calc.Context {
		builds++
		return snapshots(entities)
	}})
	s.EntitiesDiscovered(ctx, []*tag.Entity{root("ctx", "room1")})
	var ids []string
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		ids = append(ids, id)
		s.EntitiesDiscovered(ctx, []*tag.Entity{bot(id, map[string]any{"room1": true, "room1.index": i})})
	}
	s.EntitiesDiscovered(ctx, []*tag.Entity{bot("keep", map[string]any{"room1": true, "room1.index": 9})})

	builds = 0
	s.EntitiesRemoved(ctx, ids)
	assert.Equal(t, 1, builds)

	x := mustContext(t, s, "ctx", "room1")
	assert.Equal(t, []string{"keep"}, botIDs(x))
	keep, _ := x.Bot("keep")
	assert.Equal(t, float32(0), position(g, keep).Y)
}

func TestStackTieBreaksByID(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	s.EntitiesDiscovered(ctx, []*tag.Entity{
		root("ctx", "room1"),
		bot("b", map[string]any{"room1": true}),
		bot("a", map[string]any{"room1": true}),
	})
	x := mustContext(t, s, "ctx", "room1")
	a, _ := x.Bot("a")
	b, _ := x.Bot("b")
	assert.Equal(t, float32(0), position(g, a).Y)
	assert.Equal(t, float32(1), position(g, b).Y)
}

func TestDisposedBotIsInert(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	e := bot("b1", map[string]any{
		"room1":         true,
		tag.Label:       "hello",
		tag.ProgressBar: 0.5,
	})
	s.EntitiesDiscovered(ctx, []*tag.Entity{root("ctx", "room1"), e})
	b, _ := mustContext(t, s, "ctx", "room1").Bot("b1")
	require.NotNil(t, b)
	assert.Equal(t, 1, g.Count(render.KindText))
	assert.Equal(t, 1, g.Count(render.KindBar))

	b.Dispose()
	b.Dispose()
	before := g.Len()
	assert.NoError(t, b.FrameUpdate(ctx, s.Calc()))
	assert.NoError(t, b.EntityUpdated(ctx, s.Calc(), e.With(tag.Label, tag.String("again")), nil))
	assert.False(t, b.Tween(math32.Vec3(1, 0, 0), 0))

	assert.Equal(t, before, g.Len(), "no resources are resurrected")
	for _, k := range []render.Kind{render.KindBox, render.KindText, render.KindBar} {
		assert.Zero(t, g.Count(k), k.String())
	}
	assert.Equal(t, 1, g.removed[b.Node()])
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	bus := event.NewBus()
	store := watch.NewStore(bus)
	s, g := newSim(t, Deps{})
	s.Init(ctx, store)

	store.Add(root("E1", "room1"))
	flush(bus)
	x := mustContext(t, s, "E1", "room1")
	assert.Zero(t, x.Len())

	e2 := bot("E2", map[string]any{"room1": true, "room1.x": 2, "room1.y": 0, "room1.index": 0})
	store.Add(e2)
	flush(bus)
	b, ok := x.Bot("E2")
	require.True(t, ok)
	assert.Equal(t, math32.Vec3(2, 0, 0), position(g, b))

	store.Update(e2.Without("room1"))
	flush(bus)
	assert.True(t, b.Disposed())
	assert.Zero(t, x.Len())

	store.Remove("E1")
	flush(bus)
	_, ok = s.Group("E1")
	assert.False(t, ok)
	assert.True(t, x.Disposed())
	assert.Empty(t, s.Groups())
	assert.Equal(t, 1, g.Len(), "only the graph root remains")
}

func TestGroupDisposedWhenDeclarationDropped(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	s.EntitiesDiscovered(ctx, []*tag.Entity{root("R", "room1"), bot("m", map[string]any{"room1": true})})
	require.Len(t, s.Groups(), 1)

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("R", map[string]any{tag.Context: 7})})
	assert.Empty(t, s.Groups(), "a non-string declaration declares nothing")
	assert.Zero(t, g.Count(render.KindBox))

	s.EntitiesUpdated(ctx, []*tag.Entity{root("R", "room1")})
	assert.Equal(t, []string{"m"}, botIDs(mustContext(t, s, "R", "room1")))
}

type panicky struct {
	calc.Context
	id string
}

func (p panicky) Value(ctx context.Context, e *tag.Entity, name string) (tag.Value, error) {
	if e != nil && e.ID() == p.id && name == tag.Color {
		panic("boom")
	}
	return p.Context.Value(ctx, e, name)
}

func TestFailuresAreIsolatedPerNode(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	s, g := newSim(t, Deps{
		Log: zap.New(core),
		Calc: func(m map[string]*tag.Entity) calc.Context {
			return panicky{Context: calc.NewSnapshot(m, nil), id: "bad"}
		},
	})
	s.EntitiesDiscovered(ctx, []*tag.Entity{root("ctx", "room1")})
	s.EntitiesDiscovered(ctx, []*tag.Entity{
		bot("bad", map[string]any{"room1": true, "room1.x": 3}),
		bot("formula", map[string]any{"room1": "=true"}),
		bot("good", map[string]any{"room1": true, "room1.x": 1}),
	})

	x := mustContext(t, s, "ctx", "room1")
	assert.Equal(t, []string{"bad", "good"}, botIDs(x))
	bad, _ := x.Bot("bad")
	assert.Equal(t, float32(3), position(g, bad).X, "decorators after the failing one still ran")
	assert.Equal(t, 1, logs.FilterMessage("panic in scene node").Len())
	assert.Equal(t, 1, logs.FilterMessage("membership query failed").Len())
}

func TestGridScaleFromDefiningEntity(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	s.EntitiesDiscovered(ctx, []*tag.Entity{root("R", "room1"), bot("m", map[string]any{"room1": true, "room1.x": 2, "room1.y": 1})})
	x := mustContext(t, s, "R", "room1")
	m, _ := x.Bot("m")
	assert.Equal(t, math32.Vec3(2, 0, 1), position(g, m))

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("R", map[string]any{tag.Context: "room1", tag.ContextGridScale: 2, tag.ContextX: 5})})
	again, _ := x.Bot("m")
	assert.Same(t, m, again)
	assert.Equal(t, math32.Vec3(4, 0, 2), position(g, m))

	world, ok := g.WorldPosition(m.Node())
	require.True(t, ok)
	assert.Equal(t, math32.Vec3(9, 0, 2), world)
}

func TestDisposeSimulation(t *testing.T) {
	ctx := context.Background()
	bus := event.NewBus()
	store := watch.NewStore(bus)
	store.Add(root("R", "room1"), bot("m", map[string]any{"room1": true}))
	s, g := newSim(t, Deps{})
	s.Init(ctx, store)
	require.Len(t, s.Groups(), 1)

	s.Dispose()
	assert.Equal(t, 1, g.Len())

	store.Add(bot("n", map[string]any{"room1": true}))
	flush(bus)
	assert.Empty(t, s.Groups())
}
