package system

import (
	"time"

	coresys "github.com/KallynGowdy/aux-sub000/internal/core/system"
	"github.com/KallynGowdy/aux-sub000/internal/feed"
	"github.com/KallynGowdy/aux-sub000/internal/watch"
	"go.uber.org/zap"
)

// SessionSource hands out newly connected feed sessions.
type SessionSource interface {
	NewSessions() <-chan *feed.Session
}

// Applier takes decoded change batches.
type Applier interface {
	Apply(b watch.Batch)
}

// FeedSystem drains batch queues from all feed sessions into the entity
// store. Phase 0 (Input).
type FeedSystem struct {
	source     SessionSource
	store      Applier
	sessions   map[uint64]*feed.Session
	maxPerTick int
	log        *zap.Logger
}

func NewFeedSystem(source SessionSource, store Applier, maxPerTick int, log *zap.Logger) *FeedSystem {
	if maxPerTick <= 0 {
		maxPerTick = 1
	}
	return &FeedSystem{
		source:     source,
		store:      store,
		sessions:   make(map[uint64]*feed.Session),
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *FeedSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// Sessions returns the number of live feed sessions.
func (s *FeedSystem) Sessions() int { return len(s.sessions) }

func (s *FeedSystem) Update(_ time.Duration) {
	// Accept new sessions
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.sessions[sess.ID] = sess
		default:
			goto doneNew
		}
	}
doneNew:

	// Drain batches from each session (up to maxPerTick per session)
	for id, sess := range s.sessions {
		for i := 0; i < s.maxPerTick; i++ {
			select {
			case b := <-sess.InQueue:
				s.store.Apply(b)
				sess.Reply(feed.Ack{Applied: len(b.Entities) + len(b.IDs)})
			default:
				goto nextSession
			}
		}
	nextSession:
		// Batches queued before the disconnect were applied above.
		if sess.IsClosed() && len(sess.InQueue) == 0 {
			s.log.Info("feed disconnected", zap.Uint64("session", id))
			delete(s.sessions, id)
		}
	}
}

// Close disconnects every session.
func (s *FeedSystem) Close() {
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}
