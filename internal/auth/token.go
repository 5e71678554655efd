// Package auth owns the access/refresh token pair and the OAuth exchanges
// that renew it.
package auth

import (
	"sync"
	"time"
)

// Margin is taken off the lifetime the service declares so renewal happens
// before the token actually expires.
const Margin = 300 * time.Second

type State int

const (
	NoToken State = iota
	Valid
	Refreshing
)

func (s State) String() string {
	switch s {
	case NoToken:
		return "NoToken"
	case Valid:
		return "Valid"
	case Refreshing:
		return "Refreshing"
	default:
		return "Unknown"
	}
}

// Token is the current credential pair. Lifetime already has Margin
// subtracted.
type Token struct {
	Access   string
	Refresh  string
	Lifetime time.Duration
	IssuedAt time.Time
}

// Manager tracks the token of the active account. The sync worker is the
// only writer.
type Manager struct {
	mu       sync.RWMutex
	tok      Token
	state    State
	coolDown time.Time
}

func NewManager() *Manager { return &Manager{} }

// Load installs the refresh token of an account. Any access token is
// dropped.
func (m *Manager) Load(refresh string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = Token{Refresh: refresh}
	m.state = NoToken
	m.coolDown = time.Time{}
}

// Reset forgets everything, used when no account is left.
func (m *Manager) Reset() { m.Load("") }

func (m *Manager) Token() Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tok
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tok.Access
}

func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tok.Refresh
}

// NeedsRefresh reports whether the access token is absent or past its
// (margin-adjusted) lifetime.
func (m *Manager) NeedsRefresh(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tok.Access == "" || now.Sub(m.tok.IssuedAt) >= m.tok.Lifetime
}

// RefreshDeadline is when NeedsRefresh turns true. The zero time means a
// refresh is needed already.
func (m *Manager) RefreshDeadline() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tok.Access == "" {
		return time.Time{}
	}
	return m.tok.IssuedAt.Add(m.tok.Lifetime)
}

// BeginRefresh marks an exchange as in flight.
func (m *Manager) BeginRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Refreshing
}

// Apply stores the result of a successful exchange. It reports whether the
// service handed out a refresh token different from the stored one.
func (m *Manager) Apply(access, refresh string, expiresIn time.Duration, now time.Time) (rotated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok.Access = access
	m.tok.Lifetime = max(expiresIn-Margin, 0)
	m.tok.IssuedAt = now
	if refresh != "" && refresh != m.tok.Refresh {
		m.tok.Refresh = refresh
		rotated = true
	}
	m.state = Valid
	m.coolDown = time.Time{}
	return rotated
}

// ClearAccess drops the access token and keeps the refresh token.
func (m *Manager) ClearAccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok.Access = ""
	m.state = NoToken
}

// Fail ends an exchange that should not be retried before until.
func (m *Manager) Fail(until time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coolDown = until
	if m.tok.Access == "" {
		m.state = NoToken
	} else {
		m.state = Valid
	}
}

// CoolingDown reports whether a failed exchange still blocks a retry.
func (m *Manager) CoolingDown(now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return now.Before(m.coolDown)
}

func (m *Manager) CoolDownUntil() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coolDown
}
