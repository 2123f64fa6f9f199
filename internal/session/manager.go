package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/editor"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSubmitInFlight  = errors.New("a submit is already in progress for this session")
)

// DefaultTTL is how long an untouched session survives
const DefaultTTL = 30 * time.Minute

// Session is one open editor owned by a single actor
type Session struct {
	ID        string
	ActorID   string
	ProductID *int64
	OpenedAt  time.Time
	Engine    *editor.Engine

	lastSeen   atomic.Int64
	submitting atomic.Bool
}

// Submitting reports whether a submit is running
func (s *Session) Submitting() bool {
	return s.submitting.Load()
}

// LastSeen returns the last time the session was used
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// Manager keeps the open editor sessions
type Manager interface {
	Open(ctx context.Context, actorID string, productID *int64) (*Session, error)
	Get(actorID, id string) (*Session, error)
	Close(actorID, id string) error
	Submit(ctx context.Context, actorID, id string) (*domain.Product, error)
	Sweep(now time.Time) int
	Run(ctx context.Context, interval time.Duration)
	CloseAll() int
	Count() int
}

// ManagerDeps configures a Manager. Engine.Actor is filled per session.
type ManagerDeps struct {
	Engine  editor.Deps
	Options editor.Options
	TTL     time.Duration
	Clock   func() time.Time
	IDGen   func() string
	Logger  *zap.Logger
}

type manager struct {
	deps   editor.Deps
	opts   editor.Options
	ttl    time.Duration
	clock  func() time.Time
	idGen  func() string
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager
func NewManager(deps ManagerDeps) (Manager, error) {
	if deps.Engine.Catalog == nil || deps.Engine.Media == nil {
		return nil, errors.New("session manager: catalog and media services are required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Engine.Logger == nil {
		deps.Engine.Logger = logger
	}

	return &manager{
		deps:     deps.Engine,
		opts:     deps.Options,
		ttl:      ttl,
		clock:    clock,
		idGen:    idGen,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Open starts a session that creates a product, or edits productID when set
func (m *manager) Open(ctx context.Context, actorID string, productID *int64) (*Session, error) {
	deps := m.deps
	deps.Actor = editor.Actor(actorID)

	var (
		engine *editor.Engine
		err    error
	)
	if productID == nil {
		engine, err = editor.New(deps, m.opts)
	} else {
		engine, err = editor.Open(ctx, deps, *productID, m.opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open editor: %w", err)
	}

	now := m.clock()
	s := &Session{
		ID:        m.idGen(),
		ActorID:   actorID,
		ProductID: productID,
		OpenedAt:  now,
		Engine:    engine,
	}
	s.touch(now)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("Editor session opened",
		zap.String("session_id", s.ID),
		zap.String("actor_id", actorID),
		zap.String("mode", string(engine.Mode())),
	)
	return s, nil
}

// Get returns the actor's session
func (m *manager) Get(actorID, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(actorID, id)
	if err != nil {
		return nil, err
	}
	s.touch(m.clock())
	return s, nil
}

// Close discards the session and its staged files. A session cannot be
// closed while its submit is running.
func (m *manager) Close(actorID, id string) error {
	m.mu.Lock()
	s, err := m.lookup(actorID, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if s.submitting.Load() {
		m.mu.Unlock()
		return ErrSubmitInFlight
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Engine.Close()
	m.logger.Info("Editor session closed", zap.String("session_id", id))
	return nil
}

// Submit runs the session's submit, allowing only one at a time
func (m *manager) Submit(ctx context.Context, actorID, id string) (*domain.Product, error) {
	m.mu.Lock()
	s, err := m.lookup(actorID, id)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if !s.submitting.CompareAndSwap(false, true) {
		m.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	s.touch(m.clock())
	m.mu.Unlock()

	defer func() {
		s.touch(m.clock())
		s.submitting.Store(false)
	}()

	// a commit that started uploading runs to completion even if the caller goes away
	return s.Engine.Submit(context.WithoutCancel(ctx))
}

// Sweep closes every session idle for longer than the TTL and returns how many it closed
func (m *manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.submitting.Load() {
			continue
		}
		if now.Sub(s.LastSeen()) > m.ttl {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Engine.Close()
		m.logger.Info("Editor session expired",
			zap.String("session_id", s.ID),
			zap.String("actor_id", s.ActorID),
		)
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until ctx is done
func (m *manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.clock()); n > 0 {
				m.logger.Debug("Swept idle sessions", zap.Int("count", n))
			}
		}
	}
}

// CloseAll discards every session and returns how many were open
func (m *manager) CloseAll() int {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Engine.Close()
	}
	return len(all)
}

// Count returns the number of open sessions
func (m *manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// lookup finds a session owned by actorID; callers hold m.mu
func (m *manager) lookup(actorID, id string) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok || s.ActorID != actorID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}
