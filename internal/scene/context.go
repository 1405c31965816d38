package scene

import (
	"context"
	"fmt"
	"sort"

	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/grid"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// Context is the node for one grouping. bots is a lookup index only: each
// Bot's lifetime is tied to its render node under this Context's node.
type Context struct {
	group    *Group
	name     string
	node     render.Node
	bots     map[string]*Bot
	cells    *grid.Index
	scale    float64
	disposed bool
}

func newContext(g *Group, name string) (*Context, error) {
	node, err := g.graph().AddGroup(g.node, name)
	if err != nil {
		return nil, fmt.Errorf("context node %s: %w", name, err)
	}
	return &Context{
		group: g,
		name:  name,
		node:  node,
		bots:  make(map[string]*Bot, 16),
		cells: grid.NewIndex(),
		scale: 1,
	}, nil
}

func (x *Context) Name() string        { return x.name }
func (x *Context) Group() *Group       { return x.group }
func (x *Context) Node() render.Node   { return x.node }
func (x *Context) Len() int            { return len(x.bots) }
func (x *Context) Scale() float64      { return x.scale }
func (x *Context) Disposed() bool      { return x.disposed }
func (x *Context) deps() Deps          { return x.group.sim.deps }
func (x *Context) graph() render.Graph { return x.group.sim.deps.Graph }

// Bot returns the visual node for id, if it is a member.
func (x *Context) Bot(id string) (*Bot, bool) {
	b, ok := x.bots[id]
	return b, ok
}

// Bots returns the live visual nodes sorted by entity id.
func (x *Context) Bots() []*Bot {
	out := make([]*Bot, 0, len(x.bots))
	for _, b := range x.bots {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (x *Context) EntityAdded(ctx context.Context, c calc.Context, e *tag.Entity) {
	x.reconcile(ctx, c, e, tag.ChangedTags(nil, e))
}

func (x *Context) EntityUpdated(ctx context.Context, c calc.Context, e *tag.Entity, changed []string) {
	x.reconcile(ctx, c, e, changed)
}

// reconcile brings e's visual node in line with its current membership.
// Both the add and the update path land here, so repeated deliveries of the
// same snapshot converge on a single node.
func (x *Context) reconcile(ctx context.Context, c calc.Context, e *tag.Entity, changed []string) {
	if x.disposed || e == nil {
		return
	}
	id := e.ID()
	member, err := calc.IsMember(ctx, c, e, x.name)
	if err != nil {
		x.deps().Log.Warn("membership query failed",
			zap.String("grouping", x.name), zap.String("entity", id), zap.Error(err))
		return
	}
	b, exists := x.bots[id]
	switch {
	case !member && exists:
		x.removeBot(ctx, c, id)
	case !member:
	case exists:
		guard(x.deps().Log, "bot update", id, func() error { return b.EntityUpdated(ctx, c, e, changed) })
		x.restackFor(ctx, c, e)
	default:
		b, err := newBot(x, e)
		if err != nil {
			x.deps().Log.Warn("create bot failed", zap.String("entity", id), zap.Error(err))
			return
		}
		x.bots[id] = b
		guard(x.deps().Log, "bot add", id, func() error { return b.EntityUpdated(ctx, c, e, changed) })
		x.restackFor(ctx, c, e)
	}
}

// EntityRemoved drops the bot for id. c is the batch's context; the removed
// entity is already absent from it.
func (x *Context) EntityRemoved(ctx context.Context, c calc.Context, id string) {
	if x.disposed {
		return
	}
	if _, ok := x.bots[id]; ok {
		x.removeBot(ctx, c, id)
	}
}

func (x *Context) removeBot(ctx context.Context, c calc.Context, id string) {
	x.bots[id].Dispose()
	delete(x.bots, id)
	if cell, had := x.cells.Remove(id); had {
		x.restack(ctx, c, cell)
	}
}

// restackFor files e under its current cell and restacks the cells it left
// and entered.
func (x *Context) restackFor(ctx context.Context, c calc.Context, e *tag.Entity) {
	cell, err := calc.Cell(ctx, c, e, x.name)
	if err != nil {
		x.deps().Log.Warn("cell query failed", zap.String("entity", e.ID()), zap.Error(err))
		return
	}
	old, had := x.cells.Place(e.ID(), cell)
	if had && old != cell {
		x.restack(ctx, c, old)
	}
	x.restack(ctx, c, cell)
}

// restack orders the occupants of cell by stacking index and lifts each
// stackable bot onto the heights of the stackable bots below it.
func (x *Context) restack(ctx context.Context, c calc.Context, cell grid.Cell) {
	ids := x.cells.At(cell)
	entries := make([]calc.Stacked, 0, len(ids))
	for _, id := range ids {
		b, ok := x.bots[id]
		if !ok {
			continue
		}
		idx, err := calc.Index(ctx, c, b.entity, x.name)
		if err != nil {
			x.deps().Log.Warn("index query failed", zap.String("entity", id), zap.Error(err))
		}
		entries = append(entries, calc.Stacked{Entity: b.entity, Index: idx})
	}
	calc.SortStack(entries)

	var stacked []*Bot
	var heights []float64
	for _, en := range entries {
		b := x.bots[en.Entity.ID()]
		ok, err := calc.Stackable(ctx, c, en.Entity)
		if err != nil || !ok {
			b.setStackOffset(ctx, c, 0)
			continue
		}
		h, err := calc.Height(ctx, c, en.Entity)
		if err != nil {
			x.deps().Log.Warn("height query failed", zap.String("entity", en.Entity.ID()), zap.Error(err))
		}
		stacked = append(stacked, b)
		heights = append(heights, h)
	}
	for i, off := range grid.StackOffsets(heights) {
		stacked[i].setStackOffset(ctx, c, off)
	}
}

// DefinitionUpdated refreshes everything derived from the defining entity,
// currently the grid scale, on every bot.
func (x *Context) DefinitionUpdated(ctx context.Context, c calc.Context) {
	if x.disposed {
		return
	}
	scale, err := calc.Number(ctx, c, x.group.root, tag.ContextGridScale, 1)
	if err != nil {
		x.deps().Log.Warn("grid scale query failed", zap.String("grouping", x.name), zap.Error(err))
		return
	}
	if scale <= 0 {
		scale = 1
	}
	x.scale = scale
	for _, b := range x.Bots() {
		guard(x.deps().Log, "context update", b.ID(), func() error { return b.ContextUpdated(ctx, c) })
	}
}

func (x *Context) FrameUpdate(ctx context.Context, c calc.Context) {
	if x.disposed {
		return
	}
	for _, b := range x.Bots() {
		guard(x.deps().Log, "frame", b.ID(), func() error { return b.FrameUpdate(ctx, c) })
	}
}

// Dispose disposes every bot and detaches the context node.
func (x *Context) Dispose() {
	if x.disposed {
		return
	}
	x.disposed = true
	for id, b := range x.bots {
		b.Dispose()
		delete(x.bots, id)
	}
	x.graph().Remove(x.node)
}
