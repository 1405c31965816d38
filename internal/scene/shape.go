package scene

import (
	"context"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/asset"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"
)

var (
	white      = colorful.Color{R: 1, G: 1, B: 1}
	flatBounds = math32.Box3{Min: math32.Vec3(-0.5, 0, 0), Max: math32.Vec3(0.5, 1, 0)}
)

type shapeKey struct {
	kind, subtype, address string
}

// shapeDecorator owns the bot's main primitive. It rebuilds only when the
// (kind, subtype, address) triple changes. Mesh loads carry a generation
// number; a completion whose generation is no longer current is dropped.
type shapeDecorator struct {
	key    shapeKey
	built  bool
	prim   render.Node
	gen    uint64
	cancel context.CancelFunc
}

func (*shapeDecorator) Kind() DecoratorKind { return ShapeDecorator }
func (*shapeDecorator) sealed()             {}

func (*shapeDecorator) FrameUpdate(context.Context, *Bot, calc.Context) error { return nil }

// Loading reports whether a mesh load is in flight.
func (d *shapeDecorator) Loading() bool { return d.cancel != nil }

func (d *shapeDecorator) EntityUpdated(ctx context.Context, b *Bot, c calc.Context) error {
	kind, err := calc.Shape(ctx, c, b.entity)
	if err != nil {
		return err
	}
	r := newReader(ctx, c, b.entity)
	key := shapeKey{kind: kind, subtype: r.text(tag.ShapeSubtype), address: r.text(tag.ShapeAddress)}
	if r.err != nil {
		return r.err
	}
	if key.kind == "" {
		key.kind = "cube"
	}
	if d.built && key == d.key {
		return nil
	}
	d.key = key
	d.built = true
	d.teardown(b)

	switch key.kind {
	case "sphere":
		return d.attach(ctx, b, c, render.Primitive{Kind: render.KindSphere, Bounds: unitBounds})
	case "sprite":
		return d.attach(ctx, b, c, render.Primitive{Kind: render.KindPlane, Bounds: flatBounds})
	case "iframe":
		return d.attach(ctx, b, c, render.Primitive{Kind: render.KindIframe, Address: key.address, Bounds: flatBounds})
	case "mesh":
		return d.load(ctx, b, c, key.address)
	default:
		return d.attach(ctx, b, c, render.Primitive{Kind: render.KindBox, Bounds: unitBounds})
	}
}

func (d *shapeDecorator) attach(ctx context.Context, b *Bot, c calc.Context, p render.Primitive) error {
	p.Color = white
	p.Visible = true
	prim, err := b.graph().AddPrimitive(b.node, p)
	if err != nil {
		return err
	}
	d.prim = prim
	b.shapeRebuilt(ctx, c)
	return nil
}

func (d *shapeDecorator) fallback(ctx context.Context, b *Bot, c calc.Context) error {
	return d.attach(ctx, b, c, render.Primitive{Kind: render.KindBox, Bounds: unitBounds})
}

func (d *shapeDecorator) load(ctx context.Context, b *Bot, c calc.Context, address string) error {
	loader := b.deps().Meshes
	if address == "" || loader == nil {
		return d.fallback(ctx, b, c)
	}
	loadCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	gen := d.gen
	loader.Request(loadCtx, address, func(m *asset.Mesh, err error) {
		if b.disposed || gen != d.gen {
			return
		}
		d.cancel = nil
		cancel()
		fresh := b.context.group.sim.Calc()
		if err != nil {
			b.log().Warn("mesh load failed, using box",
				zap.String("entity", b.ID()), zap.String("address", address), zap.Error(err))
			guard(b.log(), "shape fallback", b.ID(), func() error { return d.fallback(ctx, b, fresh) })
			return
		}
		prim := render.Primitive{Kind: render.KindMesh, Address: address, Bounds: m.Bounds}
		guard(b.log(), "shape mesh", b.ID(), func() error { return d.attach(ctx, b, fresh, prim) })
	})
	return nil
}

// teardown cancels any load in flight and releases the primitive.
func (d *shapeDecorator) teardown(b *Bot) {
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.prim != 0 {
		b.graph().Remove(d.prim)
		d.prim = 0
	}
}

func (d *shapeDecorator) Dispose(b *Bot) {
	d.teardown(b)
}
