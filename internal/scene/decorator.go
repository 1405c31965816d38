package scene

import (
	"context"

	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
)

// DecoratorKind enumerates the closed set of decorators.
type DecoratorKind uint8

const (
	ShapeDecorator DecoratorKind = iota + 1
	ScaleDecorator
	ColorDecorator
	PositionDecorator
	BillboardDecorator
	LabelDecorator
	ProgressDecorator
	LineToDecorator
)

var decoratorNames = map[DecoratorKind]string{
	ShapeDecorator:     "shape",
	ScaleDecorator:     "scale",
	ColorDecorator:     "color",
	PositionDecorator:  "position",
	BillboardDecorator: "billboard",
	LabelDecorator:     "label",
	ProgressDecorator:  "progress",
	LineToDecorator:    "lineTo",
}

func (k DecoratorKind) String() string {
	if s, ok := decoratorNames[k]; ok {
		return s
	}
	return "unknown"
}

// Decorator projects one facet of an entity onto its bot. Only this package
// can implement it.
type Decorator interface {
	Kind() DecoratorKind
	EntityUpdated(ctx context.Context, b *Bot, c calc.Context) error
	FrameUpdate(ctx context.Context, b *Bot, c calc.Context) error
	Dispose(b *Bot)
	sealed()
}

// shapeObserver decorators re-run after every shape rebuild.
type shapeObserver interface {
	ShapeUpdated(ctx context.Context, b *Bot, c calc.Context) error
}

// contextObserver decorators re-run when the defining entity changes.
type contextObserver interface {
	ContextUpdated(ctx context.Context, b *Bot, c calc.Context) error
}

// Layout returns the ordered decorator chain for a shape. Shape always runs
// first so label and progress can place themselves on its bounds.
func Layout(shape string) []DecoratorKind {
	kinds := []DecoratorKind{ShapeDecorator, ScaleDecorator}
	if shape != "iframe" {
		kinds = append(kinds, ColorDecorator)
	}
	kinds = append(kinds, PositionDecorator)
	if shape == "sprite" {
		kinds = append(kinds, BillboardDecorator)
	}
	return append(kinds, LabelDecorator, ProgressDecorator, LineToDecorator)
}

func newDecorator(k DecoratorKind) Decorator {
	switch k {
	case ShapeDecorator:
		return &shapeDecorator{}
	case ScaleDecorator:
		return &scaleDecorator{}
	case ColorDecorator:
		return &colorDecorator{}
	case PositionDecorator:
		return &positionDecorator{}
	case BillboardDecorator:
		return &billboardDecorator{}
	case LabelDecorator:
		return &labelDecorator{}
	case ProgressDecorator:
		return &progressDecorator{}
	case LineToDecorator:
		return &lineDecorator{prims: make(map[string]render.Node)}
	}
	panic("scene: unknown decorator kind " + k.String())
}

// reader accumulates the first query error so decorators can read several
// tags and check once.
type reader struct {
	ctx context.Context
	c   calc.Context
	e   *tag.Entity
	err error
}

func newReader(ctx context.Context, c calc.Context, e *tag.Entity) *reader {
	return &reader{ctx: ctx, c: c, e: e}
}

func (r *reader) number(name string, def float64) float64 {
	if r.err != nil {
		return def
	}
	n, err := calc.Number(r.ctx, r.c, r.e, name, def)
	r.err = err
	return n
}

func (r *reader) text(name string) string {
	if r.err != nil {
		return ""
	}
	s, err := calc.String(r.ctx, r.c, r.e, name)
	r.err = err
	return s
}

func (r *reader) value(name string) tag.Value {
	if r.err != nil {
		return tag.Null()
	}
	v, err := r.c.Value(r.ctx, r.e, name)
	r.err = err
	return v
}

func pointOf(ctx context.Context, c calc.Context, e *tag.Entity, x, y, z string) (calc.Point, error) {
	r := newReader(ctx, c, e)
	p := calc.Point{X: r.number(x, 0), Y: r.number(y, 0), Z: r.number(z, 0)}
	return p, r.err
}
