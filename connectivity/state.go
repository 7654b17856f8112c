// Package connectivity owns the process-wide primary-vs-contingency mode
// decision: a probe loop that checks the relational database, a state holder
// every gateway call reads, and the classifier that lets any call site flip
// the state the moment it observes a connection-class error.
package connectivity

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is a point-in-time snapshot of the connectivity state.
type Status struct {
	Connected     bool      `json:"connected"`
	LastError     string    `json:"last_error,omitempty"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

// State is the one piece of global mutable mode state. Written by the monitor
// and by error-classifying call sites; read-only everywhere else. Injected,
// not ambient, so tests can assert transitions deterministically.
type State struct {
	mu            sync.RWMutex
	connected     bool
	lastError     string
	lastCheckedAt time.Time

	log *logrus.Logger
	now func() time.Time
}

func NewState(log *logrus.Logger) *State {
	return &State{log: log, now: time.Now}
}

func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *State) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Connected:     s.connected,
		LastError:     s.lastError,
		LastCheckedAt: s.lastCheckedAt,
	}
}

// SetConnected records a successful probe. Logs only on an actual mode change
// to avoid log spam while the state is steady.
func (s *State) SetConnected() {
	s.mu.Lock()
	changed := !s.connected
	s.connected = true
	s.lastError = ""
	s.lastCheckedAt = s.now()
	s.mu.Unlock()

	if changed && s.log != nil {
		s.log.Info("database reachable; serving from relational storage")
	}
}

// SetDisconnected records an outage with a normalized reason.
func (s *State) SetDisconnected(reason string) {
	s.mu.Lock()
	changed := s.connected
	s.connected = false
	s.lastError = reason
	s.lastCheckedAt = s.now()
	s.mu.Unlock()

	if changed && s.log != nil {
		s.log.WithField("reason", reason).Warn("database unreachable; switching to contingency storage")
	}
}

// ReportError is the fast path: a gateway call that hits a connection-class
// error flips the state immediately instead of waiting for the next probe
// tick. Returns true when the error was classified as connection-class.
func (s *State) ReportError(err error) bool {
	if err == nil || !IsConnectionError(err) {
		return false
	}
	s.SetDisconnected(err.Error())
	return true
}
