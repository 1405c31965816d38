package views

import (
	"context"

	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// Inventory maps members into a fixed number of slots by x cell. Only the
// index 0 occupant of a cell fills its slot; when several claim it the lowest
// id wins. Slots without such an occupant are nil.
type Inventory = List[[]*tag.Entity]

func NewInventory(group string, slots int, log *zap.Logger) *Inventory {
	project := func(ctx context.Context, c calc.Context, members []*tag.Entity) ([]*tag.Entity, error) {
		out := make([]*tag.Entity, slots)
		for _, e := range members {
			idx, err := calc.Index(ctx, c, e, group)
			if err != nil {
				return nil, err
			}
			if idx != 0 {
				continue
			}
			cell, err := calc.Cell(ctx, c, e, group)
			if err != nil {
				return nil, err
			}
			x := int(cell.X)
			if x < 0 || x >= slots || out[x] != nil {
				continue
			}
			out[x] = e
		}
		return out, nil
	}
	return NewList("inventory:"+group, memberOf(group), project, sameEntities, log)
}
