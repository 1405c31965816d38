package calc

import (
	"context"
	"math"
	"strings"

	"github.com/KallynGowdy/aux-sub000/internal/grid"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
)

// Number returns the computed numeric value of name, or def when the tag is
// absent or not numeric.
func Number(ctx context.Context, c Context, e *tag.Entity, name string, def float64) (float64, error) {
	v, err := c.Value(ctx, e, name)
	if err != nil {
		return def, err
	}
	if n, ok := v.AsNumber(); ok && !math.IsNaN(n) {
		return n, nil
	}
	return def, nil
}

// String returns the computed value of name rendered as text, "" when absent.
func String(ctx context.Context, c Context, e *tag.Entity, name string) (string, error) {
	v, err := c.Value(ctx, e, name)
	if err != nil {
		return "", err
	}
	if v.IsNull() {
		return "", nil
	}
	return v.Text(), nil
}

// Bool returns the truthiness of the computed value, or def when absent.
func Bool(ctx context.Context, c Context, e *tag.Entity, name string, def bool) (bool, error) {
	v, err := c.Value(ctx, e, name)
	if err != nil {
		return def, err
	}
	if v.IsNull() {
		return def, nil
	}
	return v.Truthy(), nil
}

// IsMember reports whether e belongs to group: its tag named after the group
// computes to a truthy value.
func IsMember(ctx context.Context, c Context, e *tag.Entity, group string) (bool, error) {
	if group == "" {
		return false, nil
	}
	return Bool(ctx, c, e, group, false)
}

// DeclaredGroups returns the groupings e defines. A string declares one, an
// array declares each non-empty string element; anything else declares none.
func DeclaredGroups(ctx context.Context, c Context, e *tag.Entity) ([]string, error) {
	v, err := c.Value(ctx, e, tag.Context)
	if err != nil {
		return nil, err
	}
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	switch v.Kind() {
	case tag.KindString:
		s, _ := v.AsString()
		add(s)
	case tag.KindArray:
		arr, _ := v.AsArray()
		for _, el := range arr {
			if s, ok := el.AsString(); ok {
				add(s)
			}
		}
	}
	return out, nil
}

// Point is a tag-space position: X/Y on the grid, Z elevation.
type Point struct {
	X, Y, Z float64
}

// Position returns e's placement within group.
func Position(ctx context.Context, c Context, e *tag.Entity, group string) (Point, error) {
	x, err := Number(ctx, c, e, tag.GroupX(group), 0)
	if err != nil {
		return Point{}, err
	}
	y, err := Number(ctx, c, e, tag.GroupY(group), 0)
	if err != nil {
		return Point{}, err
	}
	z, err := Number(ctx, c, e, tag.GroupZ(group), 0)
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y, Z: z}, nil
}

// Cell returns the grid cell e occupies within group.
func Cell(ctx context.Context, c Context, e *tag.Entity, group string) (grid.Cell, error) {
	p, err := Position(ctx, c, e, group)
	if err != nil {
		return grid.Cell{}, err
	}
	return grid.CellAt(p.X, p.Y), nil
}

// Index returns e's stacking index within group (default 0).
func Index(ctx context.Context, c Context, e *tag.Entity, group string) (int, error) {
	n, err := Number(ctx, c, e, tag.GroupIndex(group), 0)
	if err != nil {
		return 0, err
	}
	return int(math.Round(n)), nil
}

// Stackable reports whether e takes part in height accumulation (default true).
func Stackable(ctx context.Context, c Context, e *tag.Entity) (bool, error) {
	return Bool(ctx, c, e, tag.Stackable, true)
}

// Height is e's vertical extent in tag units (scale.z times uniform scale).
func Height(ctx context.Context, c Context, e *tag.Entity) (float64, error) {
	h, err := Number(ctx, c, e, tag.ScaleZ, 1)
	if err != nil {
		return 1, err
	}
	u, err := Number(ctx, c, e, tag.Scale, 1)
	if err != nil {
		return h, err
	}
	return h * u, nil
}

// Shape returns the lower-cased shape tag, "" when absent.
func Shape(ctx context.Context, c Context, e *tag.Entity) (string, error) {
	s, err := String(ctx, c, e, tag.Shape)
	return strings.ToLower(strings.TrimSpace(s)), err
}

// Members returns the entities of c that belong to group, sorted by ID.
// Entities whose membership query fails are skipped and the first error is
// returned alongside the successful results.
func Members(ctx context.Context, c Context, group string) ([]*tag.Entity, error) {
	var out []*tag.Entity
	var firstErr error
	for _, e := range c.Entities() {
		ok, err := IsMember(ctx, c, e, group)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, firstErr
}
