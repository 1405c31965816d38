package scene

import (
	"context"
	"time"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
)

// settle is the distance under which a lerping bot snaps to its target.
const settle = 1e-3

type tween struct {
	from, to math32.Vector3
	start    time.Time
	dur      time.Duration
}

// positionDecorator places the bot at
// ((x, z + stack offset, y) * grid scale) within its context node.
type positionDecorator struct {
	target math32.Vector3
	placed bool
	tween  *tween
}

func (*positionDecorator) Kind() DecoratorKind { return PositionDecorator }
func (*positionDecorator) sealed()             {}
func (*positionDecorator) Dispose(*Bot)        {}

// Target is the computed resting position.
func (d *positionDecorator) Target() math32.Vector3 { return d.target }

func (d *positionDecorator) EntityUpdated(ctx context.Context, b *Bot, c calc.Context) error {
	return d.recompute(ctx, b, c)
}

func (d *positionDecorator) ContextUpdated(ctx context.Context, b *Bot, c calc.Context) error {
	return d.recompute(ctx, b, c)
}

func (d *positionDecorator) recompute(ctx context.Context, b *Bot, c calc.Context) error {
	p, err := calc.Position(ctx, c, b.entity, b.context.name)
	if err != nil {
		return err
	}
	s := b.context.scale
	d.target = math32.Vec3(float32(p.X*s), float32((p.Z+b.stackOffset)*s), float32(p.Y*s))
	if d.tween != nil {
		return nil
	}
	if !d.placed || b.deps().Interpolation == Snap {
		d.placed = true
		return d.move(b, d.target)
	}
	return nil
}

func (d *positionDecorator) FrameUpdate(_ context.Context, b *Bot, _ calc.Context) error {
	if d.tween != nil {
		return d.playTween(b)
	}
	t, ok := b.graph().Transform(b.node)
	if !ok || t.Position == d.target {
		return nil
	}
	if b.deps().Interpolation == Snap {
		return d.move(b, d.target)
	}
	next := lerp(t.Position, d.target, b.deps().LerpFactor)
	if next.Sub(d.target).Length() < settle {
		next = d.target
	}
	return d.move(b, next)
}

func (d *positionDecorator) startTween(b *Bot, to math32.Vector3, dur time.Duration) {
	from := d.target
	if t, ok := b.graph().Transform(b.node); ok {
		from = t.Position
	}
	d.tween = &tween{from: from, to: to, start: b.deps().Clock(), dur: dur}
}

func (d *positionDecorator) playTween(b *Bot) error {
	tw := d.tween
	elapsed := b.deps().Clock().Sub(tw.start)
	if tw.dur <= 0 || elapsed >= tw.dur {
		d.tween = nil
		return d.move(b, tw.to)
	}
	return d.move(b, lerp(tw.from, tw.to, float32(elapsed)/float32(tw.dur)))
}

func (d *positionDecorator) move(b *Bot, pos math32.Vector3) error {
	t, ok := b.graph().Transform(b.node)
	if !ok {
		return nil
	}
	t.Position = pos
	return b.graph().SetTransform(b.node, t)
}

func lerp(a, b math32.Vector3, f float32) math32.Vector3 {
	return a.Add(b.Sub(a).MulScalar(f))
}
