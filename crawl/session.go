package crawl

import (
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Session is the mutable state of one crawl run. The controller is its only
// writer; Pause, Resume and Stop only set flags that the controller samples
// at state boundaries, so they are safe to call from any goroutine.
type Session struct {
	ID          string
	StartURL    string
	Method      pagewalk.Method
	MaxAttempts int

	// WaitTimeout bounds each readiness wait. Zero selects DefaultWaitTimeout.
	WaitTimeout time.Duration

	mu               sync.Mutex
	state            pagewalk.State
	reason           string
	lastErr          string
	currentURL       string
	currentPageIndex int
	visited          map[string]struct{}
	visitedOrder     []string
	fingerprints     *Fingerprinter
	loopDetected     bool
	attemptCount     int
	itemsCollected   int
	items            pagewalk.ItemSet
	pauseRequested   bool
	stopRequested    bool
	wake             chan struct{}
	updatedAt        time.Time
}

// SessionConfig holds the parameters of a new session.
type SessionConfig struct {
	ID          string
	StartURL    string
	Method      pagewalk.Method
	MaxAttempts int
	WaitTimeout time.Duration

	// HistorySize and Lookback configure the Fingerprinter. Zero selects
	// the defaults.
	HistorySize int
	Lookback    int

	// Items counts distinct item IDs. Without it every item counts.
	Items pagewalk.ItemSet
}

// NewSession creates an IDLE session. The start URL counts as visited.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		ID:           cfg.ID,
		StartURL:     cfg.StartURL,
		Method:       cfg.Method,
		MaxAttempts:  cfg.MaxAttempts,
		WaitTimeout:  cfg.WaitTimeout,
		state:        pagewalk.StateIdle,
		currentURL:   cfg.StartURL,
		visited:      make(map[string]struct{}),
		fingerprints: NewFingerprinter(cfg.HistorySize, cfg.Lookback),
		items:        cfg.Items,
		wake:         make(chan struct{}, 1),
	}
	s.markVisited(cfg.StartURL)
	return s
}

// RestoreSession rebuilds a session from its persisted state. The restored
// session is IDLE and continues from the stored counters. A newest
// fingerprint that repeats an earlier one restores the loop flag.
func RestoreSession(state *pagewalk.SessionState, cfg SessionConfig) *Session {
	cfg.ID = state.ID
	cfg.StartURL = state.StartURL
	cfg.Method = state.Method
	cfg.MaxAttempts = state.MaxAttempts
	cfg.WaitTimeout = state.WaitTimeout
	s := NewSession(cfg)
	s.currentURL = state.CurrentURL
	if s.currentURL == "" {
		s.currentURL = state.StartURL
	}
	s.currentPageIndex = state.CurrentPageIndex
	s.attemptCount = state.AttemptCount
	s.itemsCollected = state.ItemsCollected
	for _, u := range state.VisitedURLs {
		s.markVisited(u)
	}
	s.fingerprints.Restore(state.FingerprintHistory)
	if n := len(state.FingerprintHistory); n > 1 {
		s.loopDetected = slices.Contains(state.FingerprintHistory[:n-1], state.FingerprintHistory[n-1])
	}
	return s
}

// State returns the current state.
func (s *Session) State() pagewalk.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentURL returns the address of the last extracted page.
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

// Status returns a snapshot for status pushes.
func (s *Session) Status() pagewalk.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pagewalk.Status{
		SessionID:        s.ID,
		State:            s.state,
		Reason:           s.reason,
		CurrentPageIndex: s.currentPageIndex,
		ItemsCollected:   s.itemsCollected,
		AttemptCount:     s.attemptCount,
		LastError:        s.lastErr,
	}
}

// Snapshot returns the persisted form of the session.
func (s *Session) Snapshot() *pagewalk.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &pagewalk.SessionState{
		ID:                 s.ID,
		StartURL:           s.StartURL,
		CurrentURL:         s.currentURL,
		Method:             s.Method,
		MaxAttempts:        s.MaxAttempts,
		WaitTimeout:        s.WaitTimeout,
		CurrentPageIndex:   s.currentPageIndex,
		VisitedURLs:        append([]string(nil), s.visitedOrder...),
		FingerprintHistory: s.fingerprints.Hashes(),
		AttemptCount:       s.attemptCount,
		ItemsCollected:     s.itemsCollected,
		State:              s.state,
		UpdatedAt:          s.updatedAt,
	}
}

// Pause asks the controller to suspend before its next detection. It
// reports false when the session already ended.
func (s *Session) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() || s.stopRequested {
		return false
	}
	s.pauseRequested = true
	return true
}

// Resume clears a pause request and wakes a paused controller. It reports
// false when the session already ended.
func (s *Session) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() || s.stopRequested {
		return false
	}
	s.pauseRequested = false
	s.signal()
	return true
}

// Stop asks the controller to stop at its next state boundary. Stopping a
// stopped session is a no-op that still succeeds; stopping a session that
// completed or failed reports false.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case pagewalk.StateStopped:
		return true
	case pagewalk.StateComplete, pagewalk.StateError:
		return false
	}
	s.stopRequested = true
	s.signal()
	return true
}

// signal wakes a paused controller. Callers hold s.mu.
func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

func (s *Session) pausing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseRequested && !s.stopRequested
}

func (s *Session) setState(state pagewalk.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.updatedAt = time.Now()
}

// finish moves the session to a terminal state.
func (s *Session) finish(state pagewalk.State, reason, lastErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.reason = reason
	if lastErr != "" {
		s.lastErr = lastErr
	}
	s.pauseRequested = false
	s.updatedAt = time.Now()
}

// Visited reports whether rawURL was already visited.
func (s *Session) Visited(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.visited[pagewalk.CanonicalURL(rawURL)]
	return ok
}

// markVisited records rawURL. Callers hold s.mu or own s exclusively.
func (s *Session) markVisited(rawURL string) {
	if rawURL == "" {
		return
	}
	key := pagewalk.CanonicalURL(rawURL)
	if _, ok := s.visited[key]; ok {
		return
	}
	s.visited[key] = struct{}{}
	s.visitedOrder = append(s.visitedOrder, key)
}

// recordPage stores the outcome of an extraction: the page URL and the
// content fingerprint, a loop flag when the fingerprint repeats earlier
// content, the page index, the attempt count and the item count. fetchedURL
// is the API page a Fetch action loaded into pageURL, or empty. It returns
// the number of new items.
func (s *Session) recordPage(pageURL, fetchedURL string, content *pagewalk.ExtractedContent) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	source := pageURL
	if fetchedURL != "" {
		source = fetchedURL
	}
	fp := s.fingerprints.Fingerprint(content, source)
	if s.fingerprints.IsExactDuplicate(fp) || s.fingerprints.IsRecentDuplicate(fp) {
		s.loopDetected = true
	}
	s.fingerprints.Append(fp)
	s.markVisited(pageURL)
	s.markVisited(fetchedURL)
	s.currentURL = pageURL
	s.currentPageIndex++
	s.attemptCount++

	added := s.countItems(content)
	s.updatedAt = time.Now()
	return added
}

// recordSeed counts the items of the start page without touching the
// fingerprint history, the visited set or the attempt count.
func (s *Session) recordSeed(content *pagewalk.ExtractedContent) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countItems(content)
}

// countItems adds the distinct items of content. Callers hold s.mu.
func (s *Session) countItems(content *pagewalk.ExtractedContent) int {
	added := 0
	for _, item := range content.Items {
		if s.items == nil || s.items.Add(item.ID) {
			added++
		}
	}
	s.itemsCollected += added
	return added
}

func (s *Session) loop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopDetected
}

func (s *Session) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptCount
}
