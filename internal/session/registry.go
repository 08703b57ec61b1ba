// Package session keeps one board controller per browser session.
//
// Controllers are single-threaded; a Session serializes every event for
// its controller behind a mutex so HTTP and WebSocket handlers can share it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/controller"
	"github.com/park285/cheese-board/internal/rules"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
	ErrRegistryClosed  = errors.New("session registry closed")
)

// Session owns one controller. Use Do to touch it.
type Session struct {
	ID      string
	Created time.Time

	mu       sync.Mutex
	ctrl     *controller.Controller
	lastSeen atomic.Int64

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

// Do runs fn with exclusive access to the session's controller and then
// notifies subscribers.
func (s *Session) Do(fn func(c *controller.Controller) error) error {
	return s.do(fn, -1)
}

func (s *Session) do(fn func(c *controller.Controller) error, origin int) error {
	err := s.View(fn)
	s.notify(origin)
	return err
}

// View runs fn with exclusive access but without notifying subscribers.
func (s *Session) View(fn func(c *controller.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

// Subscription receives a signal on C after every change made through the
// session by anyone other than itself.
type Subscription struct {
	C <-chan struct{}

	id   int
	sess *Session
}

// Do is Session.Do without waking this subscription.
func (sub *Subscription) Do(fn func(c *controller.Controller) error) error {
	return sub.sess.do(fn, sub.id)
}

// Cancel releases the subscription. C is never closed.
func (sub *Subscription) Cancel() {
	sub.sess.subMu.Lock()
	delete(sub.sess.subs, sub.id)
	sub.sess.subMu.Unlock()
}

// Subscribe registers for change signals. C holds at most one pending
// signal.
func (s *Session) Subscribe() *Subscription {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()
	return &Subscription{C: ch, id: id, sess: s}
}

func (s *Session) notify(origin int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		if id == origin {
			continue
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// LastSeen is the time of the last lookup or creation.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

type Options struct {
	TTL           time.Duration
	MaxSessions   int
	SweepInterval time.Duration
	Now           func() time.Time
}

type Registry struct {
	engine rules.Engine
	logger *zap.Logger
	opts   Options

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewRegistry(engine rules.Engine, opts Options, logger *zap.Logger) (*Registry, error) {
	if engine == nil {
		return nil, controller.ErrNoEngine
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", opts.TTL)
	}
	if opts.MaxSessions <= 0 {
		return nil, fmt.Errorf("max sessions must be positive, got %d", opts.MaxSessions)
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.TTL / 4
		if opts.SweepInterval < time.Second {
			opts.SweepInterval = time.Second
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		engine:   engine,
		logger:   logger,
		opts:     opts,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}, nil
}

// Create starts a session with an idle controller; no game is active until
// the client asks for one.
func (r *Registry) Create() (*Session, error) {
	id := uuid.NewString()
	ctrl, err := controller.New(r.engine, r.logger.With(zap.String("session_id", id)))
	if err != nil {
		return nil, err
	}
	now := r.opts.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if len(r.sessions) >= r.opts.MaxSessions {
		r.sweepLocked(now)
		if len(r.sessions) >= r.opts.MaxSessions {
			return nil, ErrTooManySessions
		}
	}
	s := &Session{
		ID:      id,
		Created: now,
		ctrl:    ctrl,
		subs:    make(map[int]chan struct{}),
	}
	s.touch(now)
	r.sessions[s.ID] = s
	r.logger.Info("session_created", zap.String("session_id", s.ID), zap.Int("sessions", len(r.sessions)))
	return s, nil
}

// Get returns a live session and refreshes its expiry.
func (r *Registry) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	now := r.opts.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if r.expired(s, now) {
		delete(r.sessions, id)
		r.logger.Info("session_expired", zap.String("session_id", id))
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch(now)
	return s, nil
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes expired sessions and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.opts.Now())
}

func (r *Registry) sweepLocked(now time.Time) int {
	n := 0
	for id, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		r.logger.Info("session_sweep", zap.Int("expired", n), zap.Int("remaining", len(r.sessions)))
	}
	return n
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	return now.Sub(s.LastSeen()) > r.opts.TTL
}

// Start runs the periodic sweeper until ctx ends or Close is called.
func (r *Registry) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(r.opts.SweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-t.C:
				r.Sweep()
			}
		}
	}()
}

// Close stops the sweeper and refuses new sessions.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.stop)
	})
	r.wg.Wait()
}
