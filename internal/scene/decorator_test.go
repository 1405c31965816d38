package scene

import (
	"context"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/asset"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pendingLoad struct {
	address string
	done    asset.Done
}

// manualLoader completes loads only when the test says so.
type manualLoader struct {
	pending []pendingLoad
}

func (l *manualLoader) Request(_ context.Context, address string, done asset.Done) {
	l.pending = append(l.pending, pendingLoad{address: address, done: done})
}

func (l *manualLoader) complete(address string, m *asset.Mesh, err error) {
	for _, p := range l.pending {
		if p.address == address {
			p.done(m, err)
		}
	}
}

func meshBot(address string) *tag.Entity {
	return bot("m", map[string]any{"room1": true, tag.Shape: "mesh", tag.ShapeAddress: address, tag.Label: "chair"})
}

func discover(t *testing.T, s *Simulation, entities ...*tag.Entity) *Context {
	t.Helper()
	s.EntitiesDiscovered(context.Background(), append([]*tag.Entity{root("ctx", "room1")}, entities...))
	return mustContext(t, s, "ctx", "room1")
}

func primOf(t *testing.T, g render.Graph, b *Bot) render.Primitive {
	t.Helper()
	p, ok := g.Primitive(b.ShapePrimitive())
	require.True(t, ok, "shape primitive")
	return p
}

func childOfKind(g *countingGraph, n render.Node, k render.Kind) (render.Node, render.Primitive, bool) {
	for _, c := range g.Children(n) {
		if p, ok := g.Primitive(c); ok && p.Kind == k {
			return c, p, true
		}
	}
	return 0, render.Primitive{}, false
}

func TestLayout(t *testing.T) {
	assert.Equal(t, ShapeDecorator, Layout("cube")[0])
	assert.Contains(t, Layout("sprite"), BillboardDecorator)
	assert.NotContains(t, Layout("cube"), BillboardDecorator)
	assert.NotContains(t, Layout("iframe"), ColorDecorator)
	assert.Equal(t, LineToDecorator, Layout("sphere")[len(Layout("sphere"))-1])
}

func TestShapeRebuildsOnlyOnShapeChange(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	x := discover(t, s, bot("b", map[string]any{"room1": true}))
	b, _ := x.Bot("b")
	first := b.ShapePrimitive()
	assert.Equal(t, render.KindBox, primOf(t, g, b).Kind)

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("b", map[string]any{"room1": true, tag.Color: "#00ff00", tag.Label: "x"})})
	assert.Equal(t, first, b.ShapePrimitive(), "unrelated tags keep the primitive")

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("b", map[string]any{"room1": true, tag.Shape: "Sphere"})})
	assert.NotEqual(t, first, b.ShapePrimitive())
	assert.False(t, g.Alive(first))
	assert.Equal(t, render.KindSphere, primOf(t, g, b).Kind)
	assert.Equal(t, 1, g.Count(render.KindSphere))
	assert.Zero(t, g.Count(render.KindBox))
}

func TestShapeSwitchRelayoutsDecorators(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	x := discover(t, s, bot("b", map[string]any{"room1": true}))
	b, _ := x.Bot("b")
	assert.NotContains(t, b.Layout(), BillboardDecorator)

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("b", map[string]any{"room1": true, tag.Shape: "sprite"})})
	assert.Contains(t, b.Layout(), BillboardDecorator)
	assert.Equal(t, render.KindPlane, primOf(t, g, b).Kind)

	g.SetCamera(render.Camera{Position: math32.Vec3(10, 0, 0)})
	s.FrameUpdate(ctx)
	tr, _ := g.Transform(b.Node())
	assert.InDelta(t, 90, tr.Rotation.Y, 1e-4)
}

func TestSupersededMeshLoadIsDropped(t *testing.T) {
	ctx := context.Background()
	loader := &manualLoader{}
	s, g := newSim(t, Deps{Meshes: loader})
	x := discover(t, s, meshBot("models/a.glb"))
	b, _ := x.Bot("m")
	assert.Zero(t, b.ShapePrimitive(), "nothing attached while loading")

	s.EntitiesUpdated(ctx, []*tag.Entity{meshBot("models/b.glb")})
	bBounds := math32.Box3{Min: math32.Vec3(-1, 0, -1), Max: math32.Vec3(1, 2, 1)}
	loader.complete("models/b.glb", &asset.Mesh{Address: "models/b.glb", Bounds: bBounds}, nil)
	loader.complete("models/a.glb", &asset.Mesh{Address: "models/a.glb"}, nil)

	p := primOf(t, g, b)
	assert.Equal(t, render.KindMesh, p.Kind)
	assert.Equal(t, "models/b.glb", p.Address)
	assert.Equal(t, 1, g.Count(render.KindMesh))
	assert.Equal(t, bBounds, b.Bounds())

	label, _, ok := childOfKind(g, b.Node(), render.KindText)
	require.True(t, ok)
	lt, _ := g.Transform(label)
	assert.Equal(t, float32(2.25), lt.Position.Y, "label follows the rebuilt shape")
}

func TestMeshLoadFailureFallsBackToBox(t *testing.T) {
	loader := &manualLoader{}
	s, g := newSim(t, Deps{Meshes: loader})
	x := discover(t, s, meshBot("models/missing.glb"))
	b, _ := x.Bot("m")

	loader.complete("models/missing.glb", nil, asset.ErrNotFound)
	assert.Equal(t, render.KindBox, primOf(t, g, b).Kind)
}

func TestMeshLoadAfterDisposeIsIgnored(t *testing.T) {
	ctx := context.Background()
	loader := &manualLoader{}
	s, g := newSim(t, Deps{Meshes: loader})
	discover(t, s, meshBot("models/a.glb"))
	s.EntitiesRemoved(ctx, []string{"m"})

	loader.complete("models/a.glb", &asset.Mesh{Address: "models/a.glb"}, nil)
	assert.Zero(t, g.Count(render.KindMesh))
}

func TestMeshThroughQueue(t *testing.T) {
	lib := asset.NewLibrary([]asset.MeshEntry{
		{Address: "models/a.glb", Max: [3]float32{1, 1, 1}, LatencyMS: 20},
		{Address: "models/b.glb", Max: [3]float32{1, 3, 1}},
	})
	q := asset.NewQueue(lib, 2, zap.NewNop())
	s, g := newSim(t, Deps{Meshes: q})
	x := discover(t, s, meshBot("models/a.glb"))
	s.EntitiesUpdated(context.Background(), []*tag.Entity{meshBot("models/b.glb")})

	q.Wait()
	q.Drain()
	b, _ := x.Bot("m")
	p := primOf(t, g, b)
	assert.Equal(t, "models/b.glb", p.Address)
	assert.Equal(t, float32(3), p.Bounds.Max.Y)
	assert.Equal(t, 1, g.Count(render.KindMesh))
}

func TestColor(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	x := discover(t, s, bot("b", map[string]any{"room1": true, tag.Color: "#ff0000"}))
	b, _ := x.Bot("b")
	p := primOf(t, g, b)
	assert.Equal(t, 1.0, p.Color.R)
	assert.Equal(t, 0.0, p.Color.G)

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("b", map[string]any{"room1": true, tag.Color: "not a color"})})
	p = primOf(t, g, b)
	assert.Equal(t, 1.0, p.Color.R, "bad value keeps the last good color")
	assert.True(t, p.Visible)

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("b", map[string]any{"room1": true, tag.Color: "clear"})})
	assert.False(t, primOf(t, g, b).Visible)
}

func TestScaleAndRotation(t *testing.T) {
	s, g := newSim(t, Deps{})
	x := discover(t, s, bot("b", map[string]any{
		"room1": true, tag.Scale: 2, tag.ScaleX: 1.5, tag.ScaleZ: 3, tag.RotationZ: 45,
	}))
	b, _ := x.Bot("b")
	tr, _ := g.Transform(b.Node())
	assert.Equal(t, math32.Vec3(3, 6, 2), tr.Scale)
	assert.Equal(t, math32.Vec3(0, 45, 0), tr.Rotation)
}

func TestLerpConvergesToSnapPosition(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{Interpolation: Lerp, LerpFactor: 0.5})
	x := discover(t, s, bot("b", map[string]any{"room1": true, "room1.x": 4}))
	b, _ := x.Bot("b")
	assert.Equal(t, math32.Vec3(4, 0, 0), position(g, b), "first placement is immediate")

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("b", map[string]any{"room1": true, "room1.x": 0})})
	assert.Equal(t, math32.Vec3(4, 0, 0), position(g, b))
	s.FrameUpdate(ctx)
	assert.Equal(t, math32.Vec3(2, 0, 0), position(g, b))
	for i := 0; i < 100; i++ {
		s.FrameUpdate(ctx)
	}
	assert.Equal(t, math32.Vec3(0, 0, 0), position(g, b))
}

func TestTweenOverridesComputedPosition(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	s, g := newSim(t, Deps{Clock: func() time.Time { return now }})
	x := discover(t, s, bot("b", map[string]any{"room1": true}))
	b, _ := x.Bot("b")

	require.True(t, b.Tween(math32.Vec3(10, 0, 0), time.Second))
	now = now.Add(500 * time.Millisecond)
	s.FrameUpdate(ctx)
	assert.Equal(t, math32.Vec3(5, 0, 0), position(g, b))

	now = now.Add(500 * time.Millisecond)
	s.FrameUpdate(ctx)
	assert.Equal(t, math32.Vec3(10, 0, 0), position(g, b))

	s.FrameUpdate(ctx)
	assert.Equal(t, math32.Vec3(0, 0, 0), position(g, b), "computed position resumes after the tween")
}

func TestProgressBar(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	x := discover(t, s, bot("b", map[string]any{"room1": true, tag.ProgressBar: 1.7, tag.ProgressBarColor: "#0000ff"}))
	b, _ := x.Bot("b")
	bar, p, ok := childOfKind(g, b.Node(), render.KindBar)
	require.True(t, ok)
	assert.Equal(t, float32(1), p.Size, "fraction is clamped")
	assert.Equal(t, 1.0, p.Color.B)
	tr, _ := g.Transform(bar)
	assert.InDelta(t, 1.1, tr.Position.Y, 1e-6)

	s.EntitiesUpdated(ctx, []*tag.Entity{bot("b", map[string]any{"room1": true})})
	assert.Zero(t, g.Count(render.KindBar))
}

func TestLineToFollowsSibling(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	x := discover(t, s,
		bot("a", map[string]any{"room1": true, tag.LineTo: "b"}),
		bot("b", map[string]any{"room1": true, "room1.x": 2}),
	)
	s.FrameUpdate(ctx)
	_, p, ok := childOfKind(g, x.Node(), render.KindLine)
	require.True(t, ok)
	assert.Equal(t, []math32.Vector3{math32.Vec3(0, 0, 0), math32.Vec3(2, 0, 0)}, p.Points)

	s.EntitiesRemoved(ctx, []string{"b"})
	s.FrameUpdate(ctx)
	assert.Zero(t, g.Count(render.KindLine))
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 5, DisplayWidth("hello"))
	assert.Equal(t, 4, DisplayWidth("日本"))
	assert.Equal(t, 3, DisplayWidth("a日"))
}

func TestLineIgnoresBotTransform(t *testing.T) {
	ctx := context.Background()
	s, g := newSim(t, Deps{})
	s.EntitiesDiscovered(ctx, []*tag.Entity{bot("home", map[string]any{
		tag.Context: "room1", tag.ContextX: 5, tag.ContextY: 1,
	})})
	s.EntitiesDiscovered(ctx, []*tag.Entity{
		bot("a", map[string]any{"room1": true, tag.LineTo: "b", tag.Scale: 3, tag.RotationZ: 45}),
		bot("b", map[string]any{"room1": true, "room1.x": 2}),
	})
	s.FrameUpdate(ctx)
	x := mustContext(t, s, "home", "room1")
	a, _ := x.Bot("a")

	_, ok := childOfKind(g, a.Node(), render.KindLine)
	assert.False(t, ok, "lines do not hang off the scaled bot node")
	line, p, ok := childOfKind(g, x.Node(), render.KindLine)
	require.True(t, ok)
	assert.Equal(t, []math32.Vector3{math32.Vec3(0, 0, 0), math32.Vec3(2, 0, 0)}, p.Points)

	origin, _ := g.WorldPosition(line)
	assert.Equal(t, math32.Vec3(5, 0, 1), origin)

	s.EntitiesRemoved(ctx, []string{"a"})
	assert.Zero(t, g.Count(render.KindLine))
}
