package system

import (
	"context"
	"time"

	coresys "github.com/KallynGowdy/aux-sub000/internal/core/system"
)

// Framer advances per-frame state.
type Framer interface {
	FrameUpdate(ctx context.Context)
}

// FrameSystem drives the simulation's frame update: interpolation, billboards,
// overlays and derived views. Phase 2 (Frame).
type FrameSystem struct {
	ctx    context.Context
	target Framer
	frames uint64
}

func NewFrameSystem(ctx context.Context, target Framer) *FrameSystem {
	return &FrameSystem{ctx: ctx, target: target}
}

func (s *FrameSystem) Phase() coresys.Phase { return coresys.PhaseFrame }

func (s *FrameSystem) Frames() uint64 { return s.frames }

func (s *FrameSystem) Update(_ time.Duration) {
	if s.ctx.Err() != nil {
		return
	}
	s.target.FrameUpdate(s.ctx)
	s.frames++
}
