package feed

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KallynGowdy/aux-sub000/internal/watch"
	"go.uber.org/zap"
)

// Ack answers one frame.
type Ack struct {
	Applied int    `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// Session is one feed connection. Network I/O runs in dedicated goroutines;
// decoded batches are consumed only by the frame loop.
type Session struct {
	ID   uint64
	IP   string
	conn net.Conn

	InQueue  chan watch.Batch // frame loop reads batches from here
	outQueue chan []byte

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// per-second batch limiter (readLoop goroutine only)
	perSecond int
	count     int
	resetAt   int64

	readTimeout time.Duration
	log         *zap.Logger
}

func NewSession(conn net.Conn, id uint64, inSize, perSecond int, readTimeout time.Duration, log *zap.Logger) *Session {
	return &Session{
		ID:          id,
		IP:          conn.RemoteAddr().String(),
		conn:        conn,
		InQueue:     make(chan watch.Batch, inSize),
		outQueue:    make(chan []byte, 64),
		closeCh:     make(chan struct{}),
		perSecond:   perSecond,
		readTimeout: readTimeout,
		log:         log.With(zap.Uint64("session", id)),
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Reply queues an ack. A client that does not read its acks is disconnected.
func (s *Session) Reply(a Ack) {
	if s.closed.Load() {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		s.log.Error("encode ack", zap.Error(err))
		return
	}
	select {
	case s.outQueue <- data:
	default:
		s.log.Warn("ack queue full, dropping slow feed")
		s.Close()
	}
}

// readLoop reads frames, decodes them into batches and pushes them onto
// InQueue. Malformed batches are answered with an error ack and skipped.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if s.perSecond > 0 {
			now := time.Now().Unix()
			if now != s.resetAt {
				s.count = 0
				s.resetAt = now
			}
			s.count++
			if s.count > s.perSecond {
				s.log.Warn("batch rate exceeded, disconnecting", zap.Int("bps", s.count))
				return
			}
		}

		batch, err := watch.DecodeBatch(payload)
		if err != nil {
			if errors.Is(err, watch.ErrBadBatch) {
				s.Reply(Ack{Error: err.Error()})
				continue
			}
			return
		}

		// Block until there is room so no batch is lost; only this client stalls.
		select {
		case s.InQueue <- batch:
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.outQueue:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := WriteFrame(s.conn, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
