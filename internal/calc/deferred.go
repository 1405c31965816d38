package calc

import (
	"context"
	"fmt"

	"github.com/KallynGowdy/aux-sub000/internal/tag"
)

// Result is the outcome of a deferred tag query.
type Result struct {
	Value tag.Value
	Err   error
}

// Resolver is a promise-style formula engine: Resolve starts the computation
// and the channel yields exactly one Result.
type Resolver interface {
	Resolve(e *tag.Entity, name string) <-chan Result
}

// Deferred adapts a Resolver to the Context interface. Non-formula values are
// answered directly from the snapshot; formulas wait on the resolver or ctx.
type Deferred struct {
	*Snapshot
	resolver Resolver
}

func NewDeferred(entities map[string]*tag.Entity, r Resolver) *Deferred {
	return &Deferred{Snapshot: NewSnapshot(entities, nil), resolver: r}
}

func (d *Deferred) Value(ctx context.Context, e *tag.Entity, name string) (tag.Value, error) {
	if e == nil {
		return tag.Null(), nil
	}
	raw := e.Tag(name)
	if !raw.IsFormula() {
		return raw, nil
	}
	select {
	case res := <-d.resolver.Resolve(e, name):
		if res.Err != nil {
			return tag.Null(), fmt.Errorf("%s on %s: %w", name, e.ID(), res.Err)
		}
		return res.Value, nil
	case <-ctx.Done():
		return tag.Null(), fmt.Errorf("%s on %s: %w", name, e.ID(), ctx.Err())
	}
}
