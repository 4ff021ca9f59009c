package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/statvalue/statvalue-companion/internal/logging"
	"github.com/statvalue/statvalue-companion/internal/positions"
)

// Record is a session as persisted by a Store.
type Record struct {
	ID        string
	Position  positions.Position
	Identity  Identity
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists session records. Load returns ErrNotFound for unknown IDs.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

// Manager owns the live sessions. Sessions missing from memory are
// restored from the store on first access.
type Manager struct {
	opts  Options
	store Store

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager. store may be nil for memory-only sessions.
func NewManager(opts Options, store Store) *Manager {
	return &Manager{
		opts:     opts.withDefaults(),
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new anonymous session and loads its default player list.
// A failed initial load is logged and leaves the session usable.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := New(uuid.NewString(), m.opts)

	if err := m.persist(ctx, s); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.reportActive(n)

	m.opts.Logger.Info("session created", logging.String("session", s.ID()))

	if m.opts.Loader != nil {
		if err := s.SetPosition(ctx, s.Position()); err != nil {
			m.opts.Logger.Warn("initial player load failed", logging.String("session", s.ID()), logging.Err(err))
		}
	}
	return s, nil
}

// Get returns a live session, restoring it from the store if needed.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}
	return m.Restore(ctx, id)
}

// Restore rebuilds a session from its stored record: the identity and
// position survive, the player list is reloaded, everything else starts
// empty.
func (m *Manager) Restore(ctx context.Context, id string) (*Session, error) {
	if m.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	rec, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s := New(rec.ID, m.opts)
	s.createdAt = rec.CreatedAt
	s.SetIdentity(rec.Identity)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.reportActive(n)

	m.opts.Logger.Info("session restored", logging.String("session", id))

	pos := rec.Position
	if positions.Features(pos) == nil {
		pos = positions.Defender
	}
	if m.opts.Loader != nil {
		if err := s.SetPosition(ctx, pos); err != nil {
			m.opts.Logger.Warn("player reload failed", logging.String("session", id), logging.Err(err))
		}
	}
	return s, nil
}

// Delete closes and forgets a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.reportActive(n)
	}

	if m.store != nil {
		if err := m.store.Delete(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) && ok {
				return nil
			}
			return err
		}
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SetPosition switches a session's position and persists it.
func (m *Manager) SetPosition(ctx context.Context, s *Session, pos positions.Position) error {
	if err := s.SetPosition(ctx, pos); err != nil {
		return err
	}
	return m.persist(ctx, s)
}

// SetIdentity attaches an authenticated identity and persists it.
func (m *Manager) SetIdentity(ctx context.Context, s *Session, id Identity) error {
	s.SetIdentity(id)
	return m.persist(ctx, s)
}

// ClearIdentity logs a session out and persists the change.
func (m *Manager) ClearIdentity(ctx context.Context, s *Session) error {
	s.ClearIdentity()
	return m.persist(ctx, s)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close cancels in-flight requests of every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Close()
	}
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	rec := Record{
		ID:        s.ID(),
		Position:  s.Position(),
		Identity:  s.Identity(),
		CreatedAt: s.createdAt,
		UpdatedAt: m.opts.Now(),
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (m *Manager) reportActive(n int) {
	if m.opts.Recorder != nil {
		m.opts.Recorder.ActiveSessions(n)
	}
}
