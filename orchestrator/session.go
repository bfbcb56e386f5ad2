package orchestrator

import (
	"sync"
)

// DefaultPIN is the PIN used for PIN-request challenges
// if none was configured.
const DefaultPIN = "0000"

// DiscoveryState describes the state of the process-wide discovery session.
type DiscoveryState byte

// The different discovery session states.
const (
	DiscoveryStopped DiscoveryState = iota
	DiscoveryRunning
)

// String returns the name of the discovery state.
func (d DiscoveryState) String() string {
	if d == DiscoveryRunning {
		return "running"
	}

	return "stopped"
}

// Session holds the state shared by all pairing components: the configured PIN
// and the discovery session. Listener callbacks may be invoked from several
// delivery goroutines, so every access goes through the session's lock.
type Session struct {
	pin       string
	discovery DiscoveryState

	mu sync.Mutex
}

// NewSession returns a new session with the provided PIN.
func NewSession(pin string) *Session {
	if pin == "" {
		pin = DefaultPIN
	}

	return &Session{pin: pin}
}

// PIN returns the configured PIN.
func (s *Session) PIN() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pin
}

// SetPIN sets the configured PIN. An empty PIN is ignored.
func (s *Session) SetPIN(pin string) {
	if pin == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pin = pin
}

// Discovery returns the state of the discovery session.
func (s *Session) Discovery() DiscoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.discovery
}

// setDiscovery sets the state of the discovery session and returns the previous state.
func (s *Session) setDiscovery(state DiscoveryState) DiscoveryState {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.discovery
	s.discovery = state

	return previous
}
