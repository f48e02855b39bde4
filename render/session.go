package render

import (
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle state of a render session.
type State int

// Session states. A session moves from StateNotStarted through
// StateRendering once per stage and ends in one of the terminal states.
const (
	StateNotStarted State = iota
	StateRendering
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRendering:
		return "rendering"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Session tracks one render call. Its accessors are safe to call from other
// goroutines while the render runs.
type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	state    State
	stage    int
	stages   int
	frames   int
	progress float64
}

// NewSession returns a session in StateNotStarted with a fresh ID.
func NewSession() *Session {
	return &Session{ID: uuid.New()}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Stage returns the index of the stage being rendered and the number of
// stages in the chain.
func (s *Session) Stage() (index, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stage, s.stages
}

// FramesRendered returns how many frames the current stage has produced.
func (s *Session) FramesRendered() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frames
}

// Progress returns the last reported progress in [0, 1].
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.progress
}

func (s *Session) begin(stages int) {
	s.mu.Lock()
	s.state = StateRendering
	s.stages = stages
	s.stage = 0
	s.frames = 0
	s.mu.Unlock()
}

func (s *Session) enterStage(i int) {
	s.mu.Lock()
	s.stage = i
	s.frames = 0
	s.mu.Unlock()
}

// advance records frames for the current stage and returns the new
// progress, which never decreases.
func (s *Session) advance(frames, expected int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = frames

	stageFrac := 1.0
	if expected > 0 {
		stageFrac = float64(frames) / float64(expected)
		if stageFrac > 1 {
			stageFrac = 1
		}
	}

	p := (float64(s.stage) + stageFrac) / float64(s.stages)
	if p > s.progress {
		s.progress = p
	}

	return s.progress
}

func (s *Session) finish(state State) {
	s.mu.Lock()
	s.state = state

	if state == StateCompleted {
		s.progress = 1
	}

	s.mu.Unlock()
}
