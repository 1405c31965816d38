package scene

import (
	"context"
	"fmt"
	"time"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// unitBounds is the local extent of a default 1x1x1 shape resting on y=0.
var unitBounds = math32.Box3{Min: math32.Vec3(-0.5, 0, -0.5), Max: math32.Vec3(0.5, 1, 0.5)}

// Bot is the visual node for one (entity, grouping) pair.
type Bot struct {
	context     *Context
	entity      *tag.Entity
	node        render.Node
	decorators  []Decorator
	layout      []DecoratorKind
	bounds      *math32.Box3
	stackOffset float64
	disposed    bool
}

func newBot(x *Context, e *tag.Entity) (*Bot, error) {
	node, err := x.graph().AddGroup(x.node, e.ID())
	if err != nil {
		return nil, fmt.Errorf("bot node %s: %w", e.ID(), err)
	}
	return &Bot{context: x, entity: e, node: node}, nil
}

func (b *Bot) ID() string              { return b.entity.ID() }
func (b *Bot) Entity() *tag.Entity     { return b.entity }
func (b *Bot) Node() render.Node       { return b.node }
func (b *Bot) Context() *Context       { return b.context }
func (b *Bot) Disposed() bool          { return b.disposed }
func (b *Bot) StackOffset() float64    { return b.stackOffset }
func (b *Bot) deps() Deps              { return b.context.group.sim.deps }
func (b *Bot) graph() render.Graph     { return b.context.group.sim.deps.Graph }
func (b *Bot) log() *zap.Logger        { return b.context.group.sim.deps.Log }
func (b *Bot) Layout() []DecoratorKind { return append([]DecoratorKind(nil), b.layout...) }

// EntityUpdated replaces the snapshot and runs every decorator in layout
// order. A failing decorator keeps its last good state.
func (b *Bot) EntityUpdated(ctx context.Context, c calc.Context, e *tag.Entity, _ []string) error {
	if b.disposed || e == nil {
		return nil
	}
	b.entity = e
	b.bounds = nil
	shape, err := calc.Shape(ctx, c, e)
	if err != nil {
		b.log().Warn("shape query failed", zap.String("entity", e.ID()), zap.Error(err))
		shape = b.currentShape()
	}
	b.relayout(Layout(shape))
	for _, d := range b.decorators {
		guard(b.log(), "decorate "+d.Kind().String(), e.ID(), func() error { return d.EntityUpdated(ctx, b, c) })
	}
	return nil
}

// ContextUpdated re-runs the decorators deriving state from the grouping.
func (b *Bot) ContextUpdated(ctx context.Context, c calc.Context) error {
	if b.disposed {
		return nil
	}
	for _, d := range b.decorators {
		if o, ok := d.(contextObserver); ok {
			guard(b.log(), "context "+d.Kind().String(), b.ID(), func() error { return o.ContextUpdated(ctx, b, c) })
		}
	}
	return nil
}

// FrameUpdate runs every decorator's per-frame hook.
func (b *Bot) FrameUpdate(ctx context.Context, c calc.Context) error {
	if b.disposed {
		return nil
	}
	for _, d := range b.decorators {
		guard(b.log(), "frame "+d.Kind().String(), b.ID(), func() error { return d.FrameUpdate(ctx, b, c) })
	}
	return nil
}

// shapeRebuilt tells shape observers the primitive changed.
func (b *Bot) shapeRebuilt(ctx context.Context, c calc.Context) {
	if b.disposed {
		return
	}
	b.bounds = nil
	for _, d := range b.decorators {
		if o, ok := d.(shapeObserver); ok {
			guard(b.log(), "shape "+d.Kind().String(), b.ID(), func() error { return o.ShapeUpdated(ctx, b, c) })
		}
	}
}

func (b *Bot) setStackOffset(ctx context.Context, c calc.Context, off float64) {
	if b.disposed || b.stackOffset == off {
		return
	}
	b.stackOffset = off
	if p, ok := b.decorator(PositionDecorator).(*positionDecorator); ok {
		guard(b.log(), "restack", b.ID(), func() error { return p.recompute(ctx, b, c) })
	}
}

// Bounds is the local bounding box of the current shape primitive, or the
// unit box while none is attached.
func (b *Bot) Bounds() math32.Box3 {
	if b.bounds != nil {
		return *b.bounds
	}
	box := unitBounds
	if s, ok := b.decorator(ShapeDecorator).(*shapeDecorator); ok && s.prim != 0 {
		if p, ok := b.graph().Primitive(s.prim); ok {
			box = p.Bounds
		}
	}
	b.bounds = &box
	return box
}

// ShapePrimitive returns the node of the current shape primitive, zero if none.
func (b *Bot) ShapePrimitive() render.Node {
	if s, ok := b.decorator(ShapeDecorator).(*shapeDecorator); ok {
		return s.prim
	}
	return 0
}

// Tween moves the bot from its current local position to `to` over d. The
// tween overrides the computed position until it finishes.
func (b *Bot) Tween(to math32.Vector3, d time.Duration) bool {
	if b.disposed {
		return false
	}
	p, ok := b.decorator(PositionDecorator).(*positionDecorator)
	if !ok {
		return false
	}
	p.startTween(b, to, d)
	return true
}

// Dispose releases every decorator then detaches the bot node. Later calls
// are no-ops.
func (b *Bot) Dispose() {
	if b.disposed {
		return
	}
	for _, d := range b.decorators {
		d.Dispose(b)
	}
	b.decorators = nil
	b.disposed = true
	b.graph().Remove(b.node)
}

func (b *Bot) decorator(k DecoratorKind) Decorator {
	for _, d := range b.decorators {
		if d.Kind() == k {
			return d
		}
	}
	return nil
}

func (b *Bot) currentShape() string {
	if s, ok := b.decorator(ShapeDecorator).(*shapeDecorator); ok {
		return s.key.kind
	}
	return ""
}

// relayout swaps the decorator chain for a new layout, keeping instances of
// kinds present in both.
func (b *Bot) relayout(kinds []DecoratorKind) {
	if equalKinds(b.layout, kinds) {
		return
	}
	old := make(map[DecoratorKind]Decorator, len(b.decorators))
	for _, d := range b.decorators {
		old[d.Kind()] = d
	}
	next := make([]Decorator, 0, len(kinds))
	for _, k := range kinds {
		if d, ok := old[k]; ok {
			next = append(next, d)
			delete(old, k)
			continue
		}
		next = append(next, newDecorator(k))
	}
	for _, d := range old {
		d.Dispose(b)
	}
	b.decorators = next
	b.layout = kinds
}

func equalKinds(a, b []DecoratorKind) bool {
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
