// Package scene keeps a render graph consistent with a stream of entity
// changes. A Simulation owns one Group per grouping-defining entity, a Group
// owns one Context per declared grouping, and a Context owns one Bot per
// member entity. Each Bot projects its entity onto the graph through an
// ordered chain of decorators.
//
// Everything here runs on the frame loop goroutine.
package scene

import (
	"context"
	"fmt"
	"time"

	"github.com/KallynGowdy/aux-sub000/internal/asset"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// Interpolation selects how bots move toward their computed position.
type Interpolation uint8

const (
	// Snap places bots at their resting position immediately.
	Snap Interpolation = iota
	// Lerp moves bots a fraction of the remaining distance every frame.
	Lerp
)

// ParseInterpolation maps a config string to an Interpolation.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "", "snap":
		return Snap, nil
	case "lerp":
		return Lerp, nil
	}
	return Snap, fmt.Errorf("unknown interpolation %q", s)
}

// MeshLoader requests meshes asynchronously; *asset.Queue implements it.
type MeshLoader interface {
	Request(ctx context.Context, address string, done asset.Done)
}

// Deps is threaded through every node in the tree.
type Deps struct {
	Graph         render.Graph
	Calc          calc.Factory
	Meshes        MeshLoader // nil: mesh shapes render as boxes
	Interpolation Interpolation
	LerpFactor    float32
	Clock         func() time.Time
	Log           *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Graph == nil {
		d.Graph = render.NewScene()
	}
	if d.Calc == nil {
		d.Calc = calc.SnapshotFactory(nil)
	}
	if d.LerpFactor <= 0 || d.LerpFactor > 1 {
		d.LerpFactor = 0.2
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return d
}

// Tracker is a derived view fed the same routed events as the scene tree.
type Tracker interface {
	EntityAdded(ctx context.Context, c calc.Context, e *tag.Entity)
	EntityUpdated(ctx context.Context, c calc.Context, e *tag.Entity, changed []string)
	EntityRemoved(ctx context.Context, c calc.Context, id string)
	FrameUpdate(ctx context.Context, c calc.Context)
}

// guard runs fn, logging its error or panic instead of propagating it so one
// failing node never stops its siblings.
func guard(log *zap.Logger, op, id string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in scene node",
				zap.String("op", op), zap.String("entity", id), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		log.Warn("scene node update failed",
			zap.String("op", op), zap.String("entity", id), zap.Error(err))
	}
}
