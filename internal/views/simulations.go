package views

import (
	"context"
	"strings"

	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// SimulationRef is one sub-simulation a grouping member points at.
type SimulationRef struct {
	Channel string
	Entity  *tag.Entity
}

// Simulations lists the distinct aux.channel targets of a grouping's members.
// The lowest index (then id) wins a channel. Every recompute publishes, since
// downstream loading keys off the notification.
type Simulations = List[[]SimulationRef]

func NewSimulations(group string, log *zap.Logger) *Simulations {
	predicate := func(ctx context.Context, c calc.Context, e *tag.Entity) (bool, error) {
		ok, err := calc.IsMember(ctx, c, e, group)
		if err != nil || !ok {
			return false, err
		}
		ch, err := calc.String(ctx, c, e, tag.Channel)
		return strings.TrimSpace(ch) != "", err
	}
	project := func(ctx context.Context, c calc.Context, members []*tag.Entity) ([]SimulationRef, error) {
		stacked, err := byIndex(ctx, c, group, members)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(stacked))
		out := make([]SimulationRef, 0, len(stacked))
		for _, s := range stacked {
			ch, err := calc.String(ctx, c, s.Entity, tag.Channel)
			if err != nil {
				return nil, err
			}
			ch = strings.TrimSpace(ch)
			if _, dup := seen[ch]; dup || ch == "" {
				continue
			}
			seen[ch] = struct{}{}
			out = append(out, SimulationRef{Channel: ch, Entity: s.Entity})
		}
		return out, nil
	}
	return NewList("simulations:"+group, predicate, project, nil, log)
}
