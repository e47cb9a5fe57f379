package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mikan/convo/internal/metrics"
	"github.com/mikan/convo/pkg/agent"
	"github.com/mikan/convo/pkg/history"
)

var (
	// ErrSessionBusy is returned when a turn is already in flight for the
	// session. The check is synchronous and mutates nothing.
	ErrSessionBusy = errors.New("session busy: a turn is already in flight")

	// ErrSessionNotFound is returned for sessions with no cached state and
	// no stored history.
	ErrSessionNotFound = errors.New("session not found")
)

const (
	DefaultIdleAfter  = 30 * time.Minute
	DefaultSweepEvery = time.Minute
)

// Info describes one session known to the manager.
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	LastActivity time.Time `json:"last_activity,omitzero"`
	Running      bool      `json:"running"`
}

type entry struct {
	createdAt    time.Time
	lastActivity time.Time
	running      bool
	cancel       context.CancelFunc
}

// Manager serializes turns per session and fans sessions out to the agent
// loop. Any number of sessions run concurrently; within one session turns
// are strictly sequential.
type Manager struct {
	loop   *agent.Loop
	store  history.Store
	logger zerolog.Logger

	idleAfter  time.Duration
	sweepEvery time.Duration

	mu       sync.Mutex
	sessions map[string]*entry

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Options wires a Manager.
type Options struct {
	Loop   *agent.Loop
	Store  history.Store
	Logger zerolog.Logger

	// IdleAfter is how long an inactive session stays cached. Zero means
	// DefaultIdleAfter.
	IdleAfter time.Duration

	// SweepEvery is the eviction sweep interval. Zero means
	// DefaultSweepEvery.
	SweepEvery time.Duration
}

// NewManager creates a Manager and starts its idle eviction sweeper.
func NewManager(opts Options) (*Manager, error) {
	if opts.Loop == nil {
		return nil, errors.New("agent loop is required")
	}
	if opts.Store == nil {
		return nil, errors.New("history store is required")
	}

	idleAfter := opts.IdleAfter
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	sweepEvery := opts.SweepEvery
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepEvery
	}

	m := &Manager{
		loop:       opts.Loop,
		store:      opts.Store,
		logger:     opts.Logger,
		idleAfter:  idleAfter,
		sweepEvery: sweepEvery,
		sessions:   make(map[string]*entry),
		stopCh:     make(chan struct{}),
	}

	go m.sweep()

	return m, nil
}

// NewSessionID mints a fresh session identifier.
func NewSessionID() string {
	return uuid.New().String()
}

// StartTurn begins one turn for a session. The session is created lazily
// on first use. If a turn is already running for the session it fails
// with ErrSessionBusy without touching any state.
func (m *Manager) StartTurn(ctx context.Context, sessionID, prompt string) (<-chan agent.Event, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}
	if prompt == "" {
		return nil, errors.New("prompt cannot be empty")
	}

	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok {
		now := time.Now()
		e = &entry{createdAt: now, lastActivity: now}
		m.sessions[sessionID] = e
		metrics.SetActiveSessions(len(m.sessions))
	}
	if e.running {
		m.mu.Unlock()
		return nil, ErrSessionBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	m.mu.Unlock()

	inner := m.loop.Run(runCtx, agent.Turn{SessionID: sessionID, Prompt: prompt})
	out := make(chan agent.Event, 256)

	go func() {
		defer close(out)
		defer func() {
			cancel()
			m.mu.Lock()
			e.running = false
			e.cancel = nil
			e.lastActivity = time.Now()
			m.mu.Unlock()
		}()

		for ev := range inner {
			out <- ev
		}
	}()

	return out, nil
}

// Abort cancels the session's in-flight turn, if any.
func (m *Manager) Abort(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok || !e.running {
		m.logger.Debug().Str("session_id", sessionID).Msg("No active turn to abort")
		return nil
	}

	m.logger.Info().Str("session_id", sessionID).Msg("Aborting turn")
	e.cancel()
	return nil
}

// IsRunning reports whether a turn is in flight for the session.
func (m *Manager) IsRunning(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	return ok && e.running
}

// Sessions lists every session the manager or the store knows about,
// sorted by ID. Evicted sessions surface from the store without cached
// timestamps.
func (m *Manager) Sessions(ctx context.Context) ([]Info, error) {
	stored, err := m.store.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	infos := make(map[string]Info, len(m.sessions)+len(stored))
	for id, e := range m.sessions {
		infos[id] = Info{
			ID:           id,
			CreatedAt:    e.createdAt,
			LastActivity: e.lastActivity,
			Running:      e.running,
		}
	}
	m.mu.Unlock()

	for _, id := range stored {
		if _, ok := infos[id]; !ok {
			infos[id] = Info{ID: id}
		}
	}

	out := make([]Info, 0, len(infos))
	for _, info := range infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// History returns the session's stored messages in append order.
func (m *Manager) History(ctx context.Context, sessionID string) ([]history.Message, error) {
	msgs, err := m.store.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(msgs) == 0 {
		m.mu.Lock()
		_, cached := m.sessions[sessionID]
		m.mu.Unlock()
		if !cached {
			return nil, ErrSessionNotFound
		}
	}

	return msgs, nil
}

// Clear deletes a session's history and drops it from the cache. A busy
// session cannot be cleared.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if e, ok := m.sessions[sessionID]; ok && e.running {
		m.mu.Unlock()
		return ErrSessionBusy
	}
	delete(m.sessions, sessionID)
	metrics.SetActiveSessions(len(m.sessions))
	m.mu.Unlock()

	return m.store.Clear(ctx, sessionID)
}

// Close stops the sweeper and aborts every in-flight turn. The history
// store is owned by the caller and stays open.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		if e.running && e.cancel != nil {
			m.logger.Info().Str("session_id", id).Msg("Aborting turn on shutdown")
			e.cancel()
		}
	}
	return nil
}

// sweep evicts idle sessions from the cache on a ticker. Their history
// stays durable in the store; a later turn recreates the cache entry.
func (m *Manager) sweep() {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.idleAfter)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, e := range m.sessions {
		if !e.running && e.lastActivity.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}

	if evicted > 0 {
		metrics.SetActiveSessions(len(m.sessions))
		m.logger.Debug().Int("evicted", evicted).Msg("Evicted idle sessions")
	}
}
