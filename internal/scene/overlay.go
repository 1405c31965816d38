package scene

import (
	"context"
	"math"

	"cogentcore.org/core/math32"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/text/width"
)

const (
	labelGap    = 0.25
	barGap      = 0.1
	barHeight   = 0.15
	glyphWidth  = 0.5 // world units per narrow rune at size 1
	glyphHeight = 1.0
)

var (
	black = colorful.Color{}
	green = colorful.Color{G: 1}
)

// attachOverlay creates or refreshes an overlay primitive under the bot node
// and places it.
func attachOverlay(b *Bot, prim render.Node, p render.Primitive, pos math32.Vector3) (render.Node, error) {
	return attachUnder(b, b.node, prim, p, pos)
}

func attachUnder(b *Bot, parent, prim render.Node, p render.Primitive, pos math32.Vector3) (render.Node, error) {
	g := b.graph()
	if prim == 0 || !g.Alive(prim) {
		n, err := g.AddPrimitive(parent, p)
		if err != nil {
			return 0, err
		}
		prim = n
	} else if err := g.UpdatePrimitive(prim, func(cur *render.Primitive) { *cur = p }); err != nil {
		return prim, err
	}
	t := render.Identity()
	t.Position = pos
	return prim, g.SetTransform(prim, t)
}

func releaseOverlay(b *Bot, prim *render.Node) {
	if *prim != 0 {
		b.graph().Remove(*prim)
		*prim = 0
	}
}

// DisplayWidth counts East Asian wide and fullwidth runes as two columns.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// labelDecorator floats the aux.label text above the shape.
type labelDecorator struct {
	text string
	col  colorful.Color
	size float64
	prim render.Node
}

func (*labelDecorator) Kind() DecoratorKind { return LabelDecorator }
func (*labelDecorator) sealed()                                               {}
func (*labelDecorator) FrameUpdate(context.Context, *Bot, calc.Context) error { return nil }

func (d *labelDecorator) EntityUpdated(ctx context.Context, b *Bot, c calc.Context) error {
	r := newReader(ctx, c, b.entity)
	text := r.text(tag.Label)
	colText := r.text(tag.LabelColor)
	size := r.number(tag.LabelSize, 1)
	if r.err != nil {
		return r.err
	}
	col, err := parseColor(colText, black)
	if err != nil {
		return err
	}
	d.text, d.col, d.size = text, col, size
	return d.layout(b)
}

func (d *labelDecorator) ShapeUpdated(_ context.Context, b *Bot, _ calc.Context) error {
	return d.layout(b)
}

func (d *labelDecorator) layout(b *Bot) error {
	if d.text == "" {
		releaseOverlay(b, &d.prim)
		return nil
	}
	w := float32(DisplayWidth(d.text)) * glyphWidth * float32(d.size)
	h := glyphHeight * float32(d.size)
	p := render.Primitive{
		Kind:    render.KindText,
		Text:    d.text,
		Size:    float32(d.size),
		Color:   d.col,
		Bounds:  math32.Box3{Min: math32.Vec3(-w/2, 0, 0), Max: math32.Vec3(w/2, h, 0)},
		Visible: true,
	}
	prim, err := attachOverlay(b, d.prim, p, math32.Vec3(0, b.Bounds().Max.Y+labelGap, 0))
	d.prim = prim
	return err
}

func (d *labelDecorator) Dispose(b *Bot) { releaseOverlay(b, &d.prim) }

// progressDecorator draws aux.progressBar (0..1) as a bar above the shape.
type progressDecorator struct {
	shown    bool
	fraction float64
	col      colorful.Color
	back     colorful.Color
	prim     render.Node
}

func (*progressDecorator) Kind() DecoratorKind { return ProgressDecorator }
func (*progressDecorator) sealed()                                               {}
func (*progressDecorator) FrameUpdate(context.Context, *Bot, calc.Context) error { return nil }

func (d *progressDecorator) EntityUpdated(ctx context.Context, b *Bot, c calc.Context) error {
	r := newReader(ctx, c, b.entity)
	v := r.value(tag.ProgressBar)
	colText := r.text(tag.ProgressBarColor)
	backText := r.text(tag.ProgressBarBackground)
	if r.err != nil {
		return r.err
	}
	n, ok := v.AsNumber()
	if !ok || math.IsNaN(n) {
		d.shown = false
		return d.layout(b)
	}
	col, err := parseColor(colText, green)
	if err != nil {
		return err
	}
	back, err := parseColor(backText, black)
	if err != nil {
		return err
	}
	d.shown, d.fraction, d.col, d.back = true, math.Max(0, math.Min(1, n)), col, back
	return d.layout(b)
}

func (d *progressDecorator) ShapeUpdated(_ context.Context, b *Bot, _ calc.Context) error {
	return d.layout(b)
}

func (d *progressDecorator) layout(b *Bot) error {
	if !d.shown {
		releaseOverlay(b, &d.prim)
		return nil
	}
	bounds := b.Bounds()
	p := render.Primitive{
		Kind:    render.KindBar,
		Size:    float32(d.fraction),
		Color:   d.col,
		Back:    d.back,
		Bounds:  math32.Box3{Min: math32.Vec3(bounds.Min.X, 0, 0), Max: math32.Vec3(bounds.Max.X, barHeight, 0)},
		Visible: true,
	}
	prim, err := attachOverlay(b, d.prim, p, math32.Vec3(0, bounds.Max.Y+barGap, 0))
	d.prim = prim
	return err
}

func (d *progressDecorator) Dispose(b *Bot) { releaseOverlay(b, &d.prim) }

// lineDecorator draws a line from the bot to each sibling named by
// aux.line.to. Lines are children of the context node with endpoints relative
// to it, and follow both ends every frame.
type lineDecorator struct {
	targets []string
	col     colorful.Color
	prims   map[string]render.Node
}

func (*lineDecorator) Kind() DecoratorKind { return LineToDecorator }
func (*lineDecorator) sealed()             {}

func (d *lineDecorator) EntityUpdated(ctx context.Context, b *Bot, c calc.Context) error {
	r := newReader(ctx, c, b.entity)
	v := r.value(tag.LineTo)
	colText := r.text(tag.LineColor)
	if r.err != nil {
		return r.err
	}
	col, err := parseColor(colText, white)
	if err != nil {
		return err
	}
	d.col = col
	d.targets = d.targets[:0]
	switch v.Kind() {
	case tag.KindString:
		if s, _ := v.AsString(); s != "" {
			d.targets = append(d.targets, s)
		}
	case tag.KindArray:
		arr, _ := v.AsArray()
		for _, el := range arr {
			if s, ok := el.AsString(); ok && s != "" {
				d.targets = append(d.targets, s)
			}
		}
	}
	return d.draw(b)
}

func (d *lineDecorator) FrameUpdate(_ context.Context, b *Bot, _ calc.Context) error {
	return d.draw(b)
}

// Targets returns the ids currently drawn to.
func (d *lineDecorator) Targets() []string {
	out := make([]string, 0, len(d.prims))
	for _, id := range d.targets {
		if _, ok := d.prims[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// draw hangs lines off the context node; it only ever translates.
func (d *lineDecorator) draw(b *Bot) error {
	want := make(map[string]struct{}, len(d.targets))
	from, ok := b.graph().WorldPosition(b.node)
	if !ok {
		return nil
	}
	origin, ok := b.graph().WorldPosition(b.context.node)
	if !ok {
		return nil
	}
	for _, id := range d.targets {
		other, ok := b.context.Bot(id)
		if !ok || other.disposed || id == b.ID() {
			continue
		}
		to, ok := b.graph().WorldPosition(other.node)
		if !ok {
			continue
		}
		want[id] = struct{}{}
		points := []math32.Vector3{from.Sub(origin), to.Sub(origin)}
		p := render.Primitive{Kind: render.KindLine, Points: points, Color: d.col, Visible: true}
		prim, err := attachUnder(b, b.context.node, d.prims[id], p, math32.Vector3{})
		if err != nil {
			return err
		}
		d.prims[id] = prim
	}
	for id, prim := range d.prims {
		if _, keep := want[id]; !keep {
			releaseOverlay(b, &prim)
			delete(d.prims, id)
		}
	}
	return nil
}

func (d *lineDecorator) Dispose(b *Bot) {
	for id, prim := range d.prims {
		releaseOverlay(b, &prim)
		delete(d.prims, id)
	}
}
