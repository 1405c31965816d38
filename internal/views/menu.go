package views

import (
	"context"

	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// Menu lists the members of a grouping ordered by stacking index, ties by id.
type Menu = List[[]*tag.Entity]

func NewMenu(group string, log *zap.Logger) *Menu {
	project := func(ctx context.Context, c calc.Context, members []*tag.Entity) ([]*tag.Entity, error) {
		stacked, err := byIndex(ctx, c, group, members)
		if err != nil {
			return nil, err
		}
		items := make([]*tag.Entity, len(stacked))
		for i, s := range stacked {
			items[i] = s.Entity
		}
		return items, nil
	}
	return NewList("menu:"+group, memberOf(group), project, sameEntities, log)
}
