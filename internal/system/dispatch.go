package system

import (
	"time"

	"github.com/KallynGowdy/aux-sub000/internal/core/event"
	coresys "github.com/KallynGowdy/aux-sub000/internal/core/system"
)

// Drainer delivers finished background work on the calling goroutine.
type Drainer interface {
	Drain() int
}

// DispatchSystem delivers finished mesh loads, then the change events the
// store emitted during the input phase. Phase 1 (Dispatch).
type DispatchSystem struct {
	bus    *event.Bus
	assets Drainer
}

func NewDispatchSystem(bus *event.Bus, assets Drainer) *DispatchSystem {
	return &DispatchSystem{bus: bus, assets: assets}
}

func (s *DispatchSystem) Phase() coresys.Phase { return coresys.PhaseDispatch }

func (s *DispatchSystem) Update(_ time.Duration) {
	if s.assets != nil {
		s.assets.Drain()
	}
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
