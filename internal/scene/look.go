package scene

import (
	"context"
	"fmt"
	"math"
	"strings"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/lucasb-eyer/go-colorful"
)

// scaleDecorator derives the node's scale and rotation from tags alone.
type scaleDecorator struct{}

func (*scaleDecorator) Kind() DecoratorKind { return ScaleDecorator }
func (*scaleDecorator) sealed()                                               {}
func (*scaleDecorator) Dispose(*Bot)                                          {}
func (*scaleDecorator) FrameUpdate(context.Context, *Bot, calc.Context) error { return nil }

func (*scaleDecorator) EntityUpdated(ctx context.Context, b *Bot, c calc.Context) error {
	r := newReader(ctx, c, b.entity)
	u := r.number(tag.Scale, 1)
	sx, sy, sz := r.number(tag.ScaleX, 1), r.number(tag.ScaleY, 1), r.number(tag.ScaleZ, 1)
	rx, ry, rz := r.number(tag.RotationX, 0), r.number(tag.RotationY, 0), r.number(tag.RotationZ, 0)
	if r.err != nil {
		return r.err
	}
	t, ok := b.graph().Transform(b.node)
	if !ok {
		return render.ErrStale
	}
	t.Scale = math32.Vec3(float32(sx*u), float32(sz*u), float32(sy*u))
	t.Rotation = math32.Vec3(float32(rx), float32(rz), float32(ry))
	return b.graph().SetTransform(b.node, t)
}

// colorDecorator tints the shape primitive. "clear" hides it.
type colorDecorator struct {
	value string
}

func (*colorDecorator) Kind() DecoratorKind { return ColorDecorator }
func (*colorDecorator) sealed()                                               {}
func (*colorDecorator) Dispose(*Bot)                                          {}
func (*colorDecorator) FrameUpdate(context.Context, *Bot, calc.Context) error { return nil }

func (d *colorDecorator) EntityUpdated(ctx context.Context, b *Bot, c calc.Context) error {
	s, err := calc.String(ctx, c, b.entity, tag.Color)
	if err != nil {
		return err
	}
	if err := d.apply(b, s); err != nil {
		return err
	}
	d.value = s
	return nil
}

func (d *colorDecorator) ShapeUpdated(_ context.Context, b *Bot, _ calc.Context) error {
	return d.apply(b, d.value)
}

func (d *colorDecorator) apply(b *Bot, s string) error {
	prim := b.ShapePrimitive()
	if prim == 0 {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(s), "clear") {
		return b.graph().UpdatePrimitive(prim, func(p *render.Primitive) { p.Visible = false })
	}
	col, err := parseColor(s, white)
	if err != nil {
		return err
	}
	return b.graph().UpdatePrimitive(prim, func(p *render.Primitive) {
		p.Color = col
		p.Visible = true
	})
}

// parseColor reads "#rrggbb", "rrggbb" or "#rgb"; empty yields def.
func parseColor(s string, def colorful.Color) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	col, err := colorful.Hex(s)
	if err != nil {
		return def, fmt.Errorf("color %q: %w", s, err)
	}
	return col, nil
}

// billboardDecorator turns the node about Y to face the camera every frame.
type billboardDecorator struct{}

func (*billboardDecorator) Kind() DecoratorKind { return BillboardDecorator }
func (*billboardDecorator) sealed()                                                 {}
func (*billboardDecorator) Dispose(*Bot)                                            {}
func (*billboardDecorator) EntityUpdated(context.Context, *Bot, calc.Context) error { return nil }

func (*billboardDecorator) FrameUpdate(_ context.Context, b *Bot, _ calc.Context) error {
	pos, ok := b.graph().WorldPosition(b.node)
	if !ok {
		return nil
	}
	cam := b.graph().Camera().Position
	yaw := float32(math.Atan2(float64(cam.X-pos.X), float64(cam.Z-pos.Z)) * 180 / math.Pi)
	t, _ := b.graph().Transform(b.node)
	if t.Rotation.Y == yaw {
		return nil
	}
	t.Rotation.Y = yaw
	return b.graph().SetTransform(b.node, t)
}
