package system

import "time"

// Phase defines execution ordering within a single frame tick.
type Phase int

const (
	PhaseInput    Phase = iota // 0: drain external change feeds into the store
	PhaseDispatch              // 1: deliver last tick's change events + asset completions
	PhaseFrame                 // 2: per-frame scene update and view recompute
	PhasePersist               // 3: periodic snapshot save
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseDispatch:
		return "dispatch"
	case PhaseFrame:
		return "frame"
	case PhasePersist:
		return "persist"
	}
	return "unknown"
}

// System is the interface every frame-loop system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
