package system

import (
	"context"
	"time"

	coresys "github.com/KallynGowdy/aux-sub000/internal/core/system"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"go.uber.org/zap"
)

// Snapshotter exposes the current entity set.
type Snapshotter interface {
	Entities() []*tag.Entity
}

// EntitySaver writes a full entity snapshot.
type EntitySaver interface {
	SaveAll(ctx context.Context, entities []*tag.Entity) error
}

// PersistenceSystem periodically saves the entity store. Phase 3 (Persist).
type PersistenceSystem struct {
	store     Snapshotter
	saver     EntitySaver
	log       *zap.Logger
	tickCount int
	interval  int // save every N ticks
	saved     int
}

func NewPersistenceSystem(store Snapshotter, saver EntitySaver, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	return &PersistenceSystem{
		store:    store,
		saver:    saver,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

// Saves returns how many snapshots were written successfully.
func (s *PersistenceSystem) Saves() int { return s.saved }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SaveNow()
}

// SaveNow writes the snapshot immediately. Called on graceful shutdown.
func (s *PersistenceSystem) SaveNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entities := s.store.Entities()
	start := time.Now()
	if err := s.saver.SaveAll(ctx, entities); err != nil {
		s.log.Error("entity snapshot save failed", zap.Int("entities", len(entities)), zap.Error(err))
		return
	}
	s.saved++
	s.log.Debug("entity snapshot saved",
		zap.Int("entities", len(entities)),
		zap.Duration("took", time.Since(start)),
	)
}
