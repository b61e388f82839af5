package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/fwojciec/pagewalk"
	"github.com/google/uuid"
)

// Engine defaults.
const (
	DefaultMaxPages       = 100
	DefaultStatusInterval = 2 * time.Second
)

// StartRequest asks the engine to crawl from URL.
type StartRequest struct {
	URL string

	// Method selects the strategies. Empty means automatic.
	Method pagewalk.Method

	// MaxPages bounds the number of extractions. Zero selects
	// DefaultMaxPages.
	MaxPages int

	// WaitTimeout bounds each readiness wait. Zero selects
	// DefaultWaitTimeout.
	WaitTimeout time.Duration

	// ExtractSeed collects the items of the start page too.
	ExtractSeed bool
}

// Validate returns an error if the request cannot start a session.
func (r *StartRequest) Validate() error {
	u, err := url.Parse(r.URL)
	if r.URL == "" || err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return pagewalk.Errorf(pagewalk.EINVALID, "start URL must be an absolute http(s) URL, got %q", r.URL)
	}
	if r.Method != "" {
		if err := r.Method.Validate(); err != nil {
			return err
		}
	}
	if r.MaxPages < 0 {
		return pagewalk.Errorf(pagewalk.EINVALID, "max pages must not be negative")
	}
	if r.WaitTimeout < 0 {
		return pagewalk.Errorf(pagewalk.EINVALID, "wait timeout must not be negative")
	}
	return nil
}

// Response acknowledges a command.
type Response struct {
	Accepted  bool
	SessionID string
}

// Engine owns crawl sessions by id and runs each one on its own tab and
// goroutine. Commands return once the request was recorded; progress is
// reported through OnStatus.
type Engine struct {
	Tabs      pagewalk.TabOpener
	Ranker    pagewalk.Ranker
	Extractor pagewalk.Extractor

	// PayloadExtractor reads pages reached by Fetch actions. Nil selects
	// Extractor.
	PayloadExtractor pagewalk.Extractor

	// Optional collaborators.
	Sessions   pagewalk.SessionService
	NewSink    func(sessionID string) (pagewalk.ItemSink, error)
	NewItemSet func() pagewalk.ItemSet
	Limiter    pagewalk.DomainLimiter

	Retry *RetryPolicy

	// StatusInterval is the period of status pushes while a session runs.
	// Zero selects DefaultStatusInterval.
	StatusInterval time.Duration

	OnStatus pagewalk.StatusFunc
	Logger   *slog.Logger

	// NewID generates session ids. Nil selects random UUIDs.
	NewID func() string

	mu   sync.Mutex
	runs map[string]*run
	wg   sync.WaitGroup
}

type run struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
	status  pagewalk.Status
}

// Start validates req, opens a tab at the start URL and launches a session.
// Invalid requests are rejected with EINVALID before any state is created.
func (e *Engine) Start(ctx context.Context, req StartRequest) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	if req.Method == "" {
		req.Method = pagewalk.MethodAuto
	}
	if req.MaxPages == 0 {
		req.MaxPages = DefaultMaxPages
	}

	id := e.newID()
	s := NewSession(SessionConfig{
		ID:          id,
		StartURL:    req.URL,
		Method:      req.Method,
		MaxAttempts: req.MaxPages,
		WaitTimeout: req.WaitTimeout,
		Items:       e.newItemSet(),
	})
	if err := e.launch(ctx, s, req.URL, req.ExtractSeed); err != nil {
		return Response{}, err
	}
	return Response{Accepted: true, SessionID: id}, nil
}

// Pause asks a running session to suspend before its next detection.
func (e *Engine) Pause(ctx context.Context, id string) (Response, error) {
	if r := e.lookup(id); r != nil {
		return Response{Accepted: r.session.Pause(), SessionID: id}, nil
	}
	if _, err := e.stored(ctx, id); err != nil {
		return Response{}, err
	}
	return Response{SessionID: id}, nil
}

// Resume continues a paused session. A session that is not in memory but
// was persisted in a non-terminal state is restored and relaunched on a new
// tab at its last page.
func (e *Engine) Resume(ctx context.Context, id string) (Response, error) {
	if r := e.lookup(id); r != nil {
		return Response{Accepted: r.session.Resume(), SessionID: id}, nil
	}
	state, err := e.stored(ctx, id)
	if err != nil {
		return Response{}, err
	}
	if state.State.Terminal() {
		return Response{SessionID: id}, nil
	}

	s := RestoreSession(state, SessionConfig{Items: e.newItemSet()})
	if err := e.launch(ctx, s, s.CurrentURL(), false); err != nil {
		return Response{}, err
	}
	e.logger().Info("session restored", "session", id, "page", state.CurrentPageIndex, "url", state.CurrentURL)
	return Response{Accepted: true, SessionID: id}, nil
}

// Stop ends a session at its next state boundary. Stopping a stopped
// session succeeds again; stopping a completed or failed one is refused.
func (e *Engine) Stop(ctx context.Context, id string) (Response, error) {
	if r := e.lookup(id); r != nil {
		return Response{Accepted: r.session.Stop(), SessionID: id}, nil
	}
	state, err := e.stored(ctx, id)
	if err != nil {
		return Response{}, err
	}
	switch state.State {
	case pagewalk.StateStopped:
		return Response{Accepted: true, SessionID: id}, nil
	case pagewalk.StateComplete, pagewalk.StateError:
		return Response{SessionID: id}, nil
	}
	state.State = pagewalk.StateStopped
	state.UpdatedAt = time.Now()
	if err := e.Sessions.SaveSession(ctx, state); err != nil {
		return Response{}, fmt.Errorf("stop session %s: %w", id, err)
	}
	return Response{Accepted: true, SessionID: id}, nil
}

// Status returns the current status of a session, from memory or from the
// session store.
func (e *Engine) Status(ctx context.Context, id string) (pagewalk.Status, error) {
	if r := e.lookup(id); r != nil {
		return r.session.Status(), nil
	}
	state, err := e.stored(ctx, id)
	if err != nil {
		return pagewalk.Status{}, err
	}
	return pagewalk.Status{
		SessionID:        state.ID,
		State:            state.State,
		CurrentPageIndex: state.CurrentPageIndex,
		ItemsCollected:   state.ItemsCollected,
		AttemptCount:     state.AttemptCount,
	}, nil
}

// Wait blocks until the session reaches a terminal state and returns its
// final status.
func (e *Engine) Wait(ctx context.Context, id string) (pagewalk.Status, error) {
	r := e.lookup(id)
	if r == nil {
		return pagewalk.Status{}, pagewalk.Errorf(pagewalk.ENOTFOUND, "session %q is not running", id)
	}
	select {
	case <-r.done:
		return r.status, nil
	case <-ctx.Done():
		return pagewalk.Status{}, ctx.Err()
	}
}

// Close stops every running session and waits for their goroutines.
func (e *Engine) Close() error {
	e.mu.Lock()
	for _, r := range e.runs {
		r.cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
	return nil
}

// launch opens a tab at startURL and runs s on it in a new goroutine.
func (e *Engine) launch(ctx context.Context, s *Session, startURL string, seed bool) error {
	logger := e.logger()

	tab, err := e.Tabs.NewTab(ctx)
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	err = e.retry().Do(ctx, func(ctx context.Context) error {
		return tab.Open(ctx, startURL)
	}, nil, func(attempt int, delay time.Duration, err error) {
		logger.Warn("retrying", "op", "open", "url", startURL, "attempt", attempt, "delay", delay, "error", err)
	})
	if err != nil {
		_ = tab.Close()
		return fmt.Errorf("open %s: %w", startURL, err)
	}

	var sink pagewalk.ItemSink
	if e.NewSink != nil {
		if sink, err = e.NewSink(s.ID); err != nil {
			_ = tab.Close()
			return fmt.Errorf("create item sink: %w", err)
		}
	}

	ctrl := &Controller{
		Pages:       tab,
		Executor:    tab,
		Waiter:      tab,
		Ranker:      e.Ranker,
		Extractor:   e.Extractor,
		Sessions:    e.Sessions,
		Sink:        sink,
		Limiter:     e.Limiter,
		Retry:       e.Retry,
		WaitTimeout: s.WaitTimeout,
		ExtractSeed: seed,
		OnStatus:    e.OnStatus,
		Logger:      logger,

		PayloadExtractor: e.PayloadExtractor,
	}

	if e.Sessions != nil {
		if err := e.Sessions.SaveSession(ctx, s.Snapshot()); err != nil {
			logger.Warn("save session failed", "session", s.ID, "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{session: s, cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	if e.runs == nil {
		e.runs = make(map[string]*run)
	}
	e.runs[s.ID] = r
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(r.done)
		defer cancel()

		stopHeartbeat := e.heartbeat(s)
		status := ctrl.Run(runCtx, s)
		stopHeartbeat()

		if err := tab.Close(); err != nil {
			logger.Warn("close tab failed", "session", s.ID, "error", err)
		}
		if sink != nil {
			finishSink(sink, status, logger)
		}
		r.status = status
	}()
	return nil
}

// finishSink keeps what was written unless the session failed before
// collecting anything.
func finishSink(sink pagewalk.ItemSink, status pagewalk.Status, logger *slog.Logger) {
	if status.State == pagewalk.StateError && status.ItemsCollected == 0 {
		if err := sink.Abort(); err != nil {
			logger.Warn("abort item sink failed", "session", status.SessionID, "error", err)
		}
		return
	}
	if err := sink.Commit(); err != nil {
		logger.Error("commit item sink failed", "session", status.SessionID, "error", err)
	}
}

// heartbeat pushes the status of s every StatusInterval until the returned
// function is called.
func (e *Engine) heartbeat(s *Session) func() {
	if e.OnStatus == nil {
		return func() {}
	}
	interval := e.StatusInterval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.OnStatus(s.Status())
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (e *Engine) lookup(id string) *run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs[id]
}

// stored looks id up in the session store.
func (e *Engine) stored(ctx context.Context, id string) (*pagewalk.SessionState, error) {
	if e.Sessions == nil {
		return nil, pagewalk.Errorf(pagewalk.ENOTFOUND, "session %q not found", id)
	}
	return e.Sessions.FindSessionByID(ctx, id)
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.New().String()
}

func (e *Engine) newItemSet() pagewalk.ItemSet {
	if e.NewItemSet == nil {
		return nil
	}
	return e.NewItemSet()
}

func (e *Engine) retry() RetryPolicy {
	if e.Retry == nil {
		return DefaultRetryPolicy()
	}
	return *e.Retry
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}
