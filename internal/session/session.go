package session

import (
	"sync"

	"github.com/ltg-uic/beaconsync/internal/logger"
)

// Mode is the application mode deciding which store and channel set are
// active. Transitions are unconditional; any mode may follow any other.
type Mode string

const (
	ModePlaceTerminal Mode = "PLACE_TERMINAL"
	ModePlaceGroup    Mode = "PLACE_GROUP"
	ModeObjectGroup   Mode = "OBJECT_GROUP"
	ModeCloudGroup    Mode = "CLOUD_GROUP"
)

// LoginState is the sequential provisioning sub-state advanced by inbound
// responses during startup.
type LoginState int

const (
	LoginStart LoginState = iota
	LoginSection
	LoginRoster
	LoginActivityAndRoom
	LoginChannelList
	LoginReady
)

// Session holds the process-wide view state: the application mode and the
// provisioning progress. It replaces the original's ad hoc globals with one
// explicitly-passed object.
type Session struct {
	mu      sync.RWMutex
	mode    Mode
	login   LoginState
	onEnter map[Mode]func()
	log     *logger.Logger
}

// New starts in OBJECT_GROUP. The original declared a separate start state
// but always fired the object-group event on boot, so the dead start state
// is dropped and the initial on-enter callback fires once callbacks are
// registered via Start.
func New(log *logger.Logger) *Session {
	return &Session{
		mode:    ModeObjectGroup,
		login:   LoginStart,
		onEnter: map[Mode]func(){},
		log:     log.With("service", "Session"),
	}
}

// OnEnter registers the side effect run each time the session enters a mode.
func (s *Session) OnEnter(mode Mode, fn func()) {
	s.mu.Lock()
	s.onEnter[mode] = fn
	s.mu.Unlock()
}

// Start fires the on-enter callback for the initial mode.
func (s *Session) Start() {
	s.mu.RLock()
	fn := s.onEnter[s.mode]
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) SetMode(mode Mode) {
	s.mu.Lock()
	prev := s.mode
	s.mode = mode
	fn := s.onEnter[mode]
	s.mu.Unlock()

	s.log.Debug("application mode changed", "from", prev, "to", mode)
	if fn != nil {
		fn()
	}
}

func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) SetLogin(state LoginState) {
	s.mu.Lock()
	s.login = state
	s.mu.Unlock()
}

func (s *Session) Login() LoginState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.login
}
