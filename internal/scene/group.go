package scene

import (
	"context"
	"fmt"
	"sort"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// Group is the container for one grouping-defining entity. Its set of
// Contexts always equals the root's most recently observed declaration.
type Group struct {
	sim      *Simulation
	root     *tag.Entity
	node     render.Node
	contexts map[string]*Context
	disposed bool
}

func newGroup(sim *Simulation, root *tag.Entity) (*Group, error) {
	g := sim.deps.Graph
	node, err := g.AddGroup(g.Root(), root.ID())
	if err != nil {
		return nil, fmt.Errorf("group node for %s: %w", root.ID(), err)
	}
	return &Group{
		sim:      sim,
		root:     root,
		node:     node,
		contexts: make(map[string]*Context, 2),
	}, nil
}

func (g *Group) RootID() string          { return g.root.ID() }
func (g *Group) Root() *tag.Entity       { return g.root }
func (g *Group) Node() render.Node       { return g.node }
func (g *Group) Disposed() bool          { return g.disposed }
func (g *Group) log() *zap.Logger        { return g.sim.deps.Log }
func (g *Group) graph() render.Graph     { return g.sim.deps.Graph }
func (g *Group) Simulation() *Simulation { return g.sim }

// Context returns the node for one declared grouping.
func (g *Group) Context(name string) (*Context, bool) {
	x, ok := g.contexts[name]
	return x, ok
}

// Contexts returns the declared grouping names, sorted.
func (g *Group) Contexts() []string {
	names := make([]string, 0, len(g.contexts))
	for name := range g.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RootUpdated diffs the root's declared groupings against the current set:
// new groupings get a Context seeded from every known entity, dropped ones are
// disposed, retained ones refresh what they derive from the root. Returns the
// number of groupings now declared. On query failure the current set is kept.
func (g *Group) RootUpdated(ctx context.Context, c calc.Context, root *tag.Entity) (int, error) {
	if g.disposed || root == nil {
		return len(g.contexts), nil
	}
	g.root = root
	declared, err := calc.DeclaredGroups(ctx, c, root)
	if err != nil {
		return len(g.contexts), err
	}
	next := make(map[string]struct{}, len(declared))
	for _, name := range declared {
		next[name] = struct{}{}
	}
	for _, name := range g.Contexts() {
		if _, keep := next[name]; !keep {
			g.contexts[name].Dispose()
			delete(g.contexts, name)
			g.log().Debug("context removed", zap.String("root", root.ID()), zap.String("grouping", name))
		}
	}
	for _, name := range declared {
		if x, ok := g.contexts[name]; ok {
			x.DefinitionUpdated(ctx, c)
			continue
		}
		x, err := newContext(g, name)
		if err != nil {
			g.log().Warn("create context failed", zap.String("grouping", name), zap.Error(err))
			continue
		}
		g.contexts[name] = x
		x.DefinitionUpdated(ctx, c)
		for _, e := range c.Entities() {
			x.EntityAdded(ctx, c, e)
		}
		g.log().Debug("context added", zap.String("root", root.ID()),
			zap.String("grouping", name), zap.Int("members", x.Len()))
	}
	return len(declared), g.place(ctx, c)
}

// place positions the container from the root's aux.context.x/y/z.
func (g *Group) place(ctx context.Context, c calc.Context) error {
	p, err := pointOf(ctx, c, g.root, tag.ContextX, tag.ContextY, tag.ContextZ)
	if err != nil {
		return err
	}
	t, ok := g.graph().Transform(g.node)
	if !ok {
		return render.ErrStale
	}
	t.Position = math32.Vec3(float32(p.X), float32(p.Z), float32(p.Y))
	return g.graph().SetTransform(g.node, t)
}

func (g *Group) EntityAdded(ctx context.Context, c calc.Context, e *tag.Entity) {
	if g.disposed {
		return
	}
	for _, name := range g.Contexts() {
		g.contexts[name].EntityAdded(ctx, c, e)
	}
}

func (g *Group) EntityUpdated(ctx context.Context, c calc.Context, e *tag.Entity, changed []string) {
	if g.disposed {
		return
	}
	for _, name := range g.Contexts() {
		g.contexts[name].EntityUpdated(ctx, c, e, changed)
	}
}

func (g *Group) EntityRemoved(ctx context.Context, c calc.Context, id string) {
	if g.disposed {
		return
	}
	for _, name := range g.Contexts() {
		g.contexts[name].EntityRemoved(ctx, c, id)
	}
}

func (g *Group) FrameUpdate(ctx context.Context, c calc.Context) {
	if g.disposed {
		return
	}
	for _, name := range g.Contexts() {
		g.contexts[name].FrameUpdate(ctx, c)
	}
}

// Dispose tears down every Context and detaches the container node.
func (g *Group) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	for name, x := range g.contexts {
		x.Dispose()
		delete(g.contexts, name)
	}
	g.graph().Remove(g.node)
}
