package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/serhatkrkmz54/eklinik-v2/internal/api"
	"github.com/serhatkrkmz54/eklinik-v2/pkg/logging"
)

// State is the session lifecycle state.
type State string

const (
	// StateRestoring is the initial state, before Restore has run.
	StateRestoring State = "restoring"
	// StateUnauthenticated means no valid credential is held.
	StateUnauthenticated State = "unauthenticated"
	// StateAuthenticated means a decoded, unexpired credential is held.
	StateAuthenticated State = "authenticated"
)

// Listener receives state transitions.
type Listener func(State)

// Manager is the single owner of the session credential. All reads and
// writes of the token go through it; other components hold no mutable copy.
type Manager struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time

	mu        sync.RWMutex
	state     State
	token     string
	identity  Identity
	listeners map[int]Listener
	nextID    int
}

// ManagerOption customizes the manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager in the Restoring state.
func NewManager(store Store, logger *logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		store:     store,
		logger:    logger,
		now:       time.Now,
		state:     StateRestoring,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore reads the persisted credential and resolves the initial state.
// Absent, malformed, and expired tokens all land in Unauthenticated with the
// stored credential cleared; none of them is an error to the caller.
func (m *Manager) Restore(ctx context.Context) State {
	token, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("session: restore load failed", "error", err)
		return m.transition(StateUnauthenticated, "", Identity{})
	}
	if token == "" {
		return m.transition(StateUnauthenticated, "", Identity{})
	}

	identity, err := decodeIdentity(token)
	if err != nil {
		m.logger.Warn("session: stored token malformed, discarding", "error", err)
		m.discardStored(ctx)
		return m.transition(StateUnauthenticated, "", Identity{})
	}
	if identity.Expired(m.now()) {
		m.logger.Info("session: stored token expired, discarding", "subject", identity.SubjectID)
		m.discardStored(ctx)
		return m.transition(StateUnauthenticated, "", Identity{})
	}

	return m.transition(StateAuthenticated, token, identity)
}

// Login persists the credential and transitions to Authenticated. The
// persisted token and the in-memory identity are swapped under one lock, so
// readers never observe them disagreeing.
func (m *Manager) Login(ctx context.Context, token string) error {
	identity, err := decodeIdentity(token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.store.Save(ctx, token); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("session: persist credential: %w", err)
	}
	m.token = token
	m.identity = identity
	m.state = StateAuthenticated
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	m.logger.Info("session: authenticated", "subject", identity.SubjectID)
	notify(listeners, StateAuthenticated)
	return nil
}

// Logout erases the persisted credential and transitions to Unauthenticated.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.transition(StateUnauthenticated, "", Identity{})
	m.logger.Info("session: logged out")
	return nil
}

// Invalidate is the implicit logout: the server rejected the credential, so
// drop it. Storage errors are logged, not returned, because the in-memory
// session must go away regardless.
func (m *Manager) Invalidate() {
	if err := m.store.Clear(context.Background()); err != nil {
		m.logger.Warn("session: clear on invalidate failed", "error", err)
	}
	m.transition(StateUnauthenticated, "", Identity{})
	m.logger.Info("session: credential invalidated by server")
}

// Token returns the current bearer value. It implements api.TokenSource.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.state == StateAuthenticated
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Identity returns the decoded identity; ok is false unless Authenticated.
func (m *Manager) Identity() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity, m.state == StateAuthenticated
}

// Subscribe registers a listener for state transitions and returns an
// unsubscribe func.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// profileFetcher is the slice of the API client Verify needs.
type profileFetcher interface {
	Me(ctx context.Context) (*api.Profile, error)
}

// Verify pings the profile endpoint to confirm the server still accepts the
// credential. An auth failure invalidates the session; other failures
// (network etc.) leave it untouched.
func (m *Manager) Verify(ctx context.Context, client profileFetcher) error {
	if m.State() != StateAuthenticated {
		return nil
	}
	_, err := client.Me(ctx)
	if api.IsAuthError(err) {
		m.Invalidate()
	}
	return err
}

func (m *Manager) transition(state State, token string, identity Identity) State {
	m.mu.Lock()
	changed := m.state != state
	m.state = state
	m.token = token
	m.identity = identity
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	if changed {
		notify(listeners, state)
	}
	return state
}

func (m *Manager) discardStored(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("session: discard stored token failed", "error", err)
	}
}

// snapshotListeners must be called with m.mu held.
func (m *Manager) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, state State) {
	for _, fn := range listeners {
		fn(state)
	}
}
