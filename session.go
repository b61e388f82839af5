package pagewalk

import (
	"context"
	"time"
)

// State is a crawl session state.
type State string

// Session states. StateComplete, StateStopped and StateError are terminal.
const (
	StateIdle         State = "IDLE"
	StateDetecting    State = "DETECTING"
	StateNavigating   State = "NAVIGATING"
	StateWaitingReady State = "WAITING_READY"
	StateExtracting   State = "EXTRACTING"
	StatePaused       State = "PAUSED"
	StateStopped      State = "STOPPED"
	StateComplete     State = "COMPLETE"
	StateError        State = "ERROR"
)

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateStopped || s == StateError
}

// Active reports whether s is one of the loop states.
func (s State) Active() bool {
	switch s {
	case StateDetecting, StateNavigating, StateWaitingReady, StateExtracting:
		return true
	}
	return false
}

// Completion reasons reported with StateComplete.
const (
	ReasonNoFurtherPages  = "no further pages"
	ReasonLoopDetected    = "loop detected"
	ReasonMaxPagesReached = "max pages reached"
)

// Status is pushed on every transition and periodically while a session runs.
type Status struct {
	SessionID        string `json:"sessionId"`
	State            State  `json:"state"`
	Reason           string `json:"reason,omitempty"`
	CurrentPageIndex int    `json:"currentPageIndex"`
	ItemsCollected   int    `json:"itemsCollected"`
	AttemptCount     int    `json:"attemptCount"`
	LastError        string `json:"lastError,omitempty"`
}

// StatusFunc receives status pushes.
type StatusFunc func(Status)

// SessionState is the persisted form of a crawl session. It is written after
// every successful extraction and read when a session is resumed.
type SessionState struct {
	ID                 string        `json:"id"`
	StartURL           string        `json:"startUrl"`
	CurrentURL         string        `json:"currentUrl"`
	Method             Method        `json:"method"`
	MaxAttempts        int           `json:"maxAttempts"`
	WaitTimeout        time.Duration `json:"waitTimeout,omitempty"`
	CurrentPageIndex   int           `json:"currentPageIndex"`
	VisitedURLs        []string      `json:"visitedUrls"`
	FingerprintHistory []string      `json:"fingerprintHistory"`
	AttemptCount       int           `json:"attemptCount"`
	ItemsCollected     int           `json:"itemsCollected"`
	State              State         `json:"state"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Validate returns an error if the session state contains invalid fields.
func (s *SessionState) Validate() error {
	if s.ID == "" {
		return Errorf(EINVALID, "session ID required")
	}
	if s.StartURL == "" {
		return Errorf(EINVALID, "session start URL required")
	}
	if err := s.Method.Validate(); err != nil {
		return err
	}
	if s.MaxAttempts <= 0 {
		return Errorf(EINVALID, "session max attempts must be positive")
	}
	if s.WaitTimeout < 0 {
		return Errorf(EINVALID, "session wait timeout must not be negative")
	}
	if s.AttemptCount < 0 || s.AttemptCount > s.MaxAttempts {
		return Errorf(EINVALID, "session attempt count %d out of range", s.AttemptCount)
	}
	return nil
}

// SessionService persists session state keyed by session ID.
type SessionService interface {
	// SaveSession creates or replaces the stored state.
	SaveSession(ctx context.Context, state *SessionState) error

	// FindSessionByID retrieves a session.
	// Returns ENOTFOUND if the session does not exist.
	FindSessionByID(ctx context.Context, id string) (*SessionState, error)

	// FindSessions returns all stored sessions, most recently updated first.
	FindSessions(ctx context.Context) ([]*SessionState, error)

	// DeleteSession removes a session.
	// Returns ENOTFOUND if the session does not exist.
	DeleteSession(ctx context.Context, id string) error
}
