package crawl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/pagewalk"
)

// DefaultWaitTimeout bounds each readiness wait.
const DefaultWaitTimeout = 10 * time.Second

// Controller drives one session through the detect, navigate, wait and
// extract loop until a terminal state is reached.
type Controller struct {
	Pages     pagewalk.PageSource
	Executor  pagewalk.NavigationExecutor
	Waiter    pagewalk.ReadyWaiter
	Ranker    pagewalk.Ranker
	Extractor pagewalk.Extractor

	// PayloadExtractor reads the items of pages reached by a Fetch action,
	// which loads the next API page without re-rendering the document.
	// Nil selects Extractor.
	PayloadExtractor pagewalk.Extractor

	// Optional collaborators.
	Sessions pagewalk.SessionService
	Sink     pagewalk.ItemSink
	Limiter  pagewalk.DomainLimiter

	// Retry wraps snapshots, navigation and readiness waits. Nil selects
	// DefaultRetryPolicy.
	Retry *RetryPolicy

	// WaitTimeout bounds each readiness wait. Zero selects DefaultWaitTimeout.
	WaitTimeout time.Duration

	// ExtractSeed collects the items of the start page before the first
	// detection. The seed extraction does not count as an attempt.
	ExtractSeed bool

	OnStatus pagewalk.StatusFunc
	Logger   *slog.Logger
}

// Run executes the session and returns its final status. Failures are
// reported through the status; Run itself never fails. Canceling ctx stops
// the session.
func (c *Controller) Run(ctx context.Context, s *Session) pagewalk.Status {
	logger := c.logger().With("session", s.ID)

	if s.State().Terminal() {
		return s.Status()
	}
	if s.MaxAttempts <= 0 {
		return c.fail(ctx, s, logger, pagewalk.Errorf(pagewalk.EINVALID, "max pages must be positive"))
	}
	if s.attempts() >= s.MaxAttempts {
		return c.end(ctx, s, logger, pagewalk.StateComplete, pagewalk.ReasonMaxPagesReached)
	}

	logger.Info("session started", "url", s.CurrentURL(), "method", s.Method, "maxPages", s.MaxAttempts)

	if c.ExtractSeed && s.attempts() == 0 {
		if status, done := c.extractSeed(ctx, s, logger); done {
			return status
		}
	}

	for {
		if status, done := c.checkpoint(ctx, s, logger); done {
			return status
		}
		if status, done := c.iterate(ctx, s, logger); done {
			return status
		}
	}
}

// iterate runs one detect, navigate, wait and extract cycle. It reports
// done once the session reached a terminal state.
func (c *Controller) iterate(ctx context.Context, s *Session, logger *slog.Logger) (pagewalk.Status, bool) {
	if !c.enter(ctx, s, pagewalk.StateDetecting) {
		return c.stopped(ctx, s, logger), true
	}
	if s.loop() {
		return c.end(ctx, s, logger, pagewalk.StateComplete, pagewalk.ReasonLoopDetected), true
	}
	pc, err := c.snapshot(ctx, logger)
	if err != nil {
		return c.failOrStop(ctx, s, logger, fmt.Errorf("snapshot: %w", err)), true
	}
	candidate := c.Ranker.Rank(pc, s.Method)
	if candidate == nil {
		return c.end(ctx, s, logger, pagewalk.StateComplete, pagewalk.ReasonNoFurtherPages), true
	}
	if candidate.NextURL != "" && s.Visited(candidate.NextURL) {
		logger.Info("next page already visited", "url", candidate.NextURL)
		return c.end(ctx, s, logger, pagewalk.StateComplete, pagewalk.ReasonLoopDetected), true
	}
	if err := candidate.Action.Validate(); err != nil {
		return c.fail(ctx, s, logger, err), true
	}
	logger.Info("next page detected",
		"strategy", candidate.Strategy,
		"confidence", candidate.Confidence,
		"action", candidate.Action.String())

	if !c.enter(ctx, s, pagewalk.StateNavigating) {
		return c.stopped(ctx, s, logger), true
	}
	if err := c.navigate(ctx, candidate.Action, logger); err != nil {
		return c.failOrStop(ctx, s, logger, err), true
	}

	if !c.enter(ctx, s, pagewalk.StateWaitingReady) {
		return c.stopped(ctx, s, logger), true
	}
	if err := c.waitReady(ctx, logger); err != nil {
		return c.failOrStop(ctx, s, logger, err), true
	}

	if !c.enter(ctx, s, pagewalk.StateExtracting) {
		return c.stopped(ctx, s, logger), true
	}
	pc, err = c.snapshot(ctx, logger)
	if err != nil {
		return c.failOrStop(ctx, s, logger, fmt.Errorf("snapshot: %w", err)), true
	}
	extractor := c.Extractor
	if candidate.Action.Kind == pagewalk.ActionFetch && c.PayloadExtractor != nil {
		extractor = c.PayloadExtractor
	}
	content, err := c.extractWith(ctx, extractor, pc)
	if err != nil {
		return c.failOrStop(ctx, s, logger, err), true
	}

	// A fetched API page is visited, but the tab stays on the document.
	pageURL, fetchedURL := candidate.NextURL, ""
	if candidate.Action.Kind == pagewalk.ActionFetch || pageURL == "" {
		pageURL, fetchedURL = pc.URL(), candidate.NextURL
	}
	added := s.recordPage(pageURL, fetchedURL, content)
	if c.Sink != nil {
		if err := c.Sink.Write(ctx, content); err != nil {
			return c.failOrStop(ctx, s, logger, fmt.Errorf("write items: %w", err)), true
		}
	}
	c.save(ctx, s, logger)

	status := s.Status()
	logger.Info("page extracted",
		"page", status.CurrentPageIndex,
		"url", pageURL,
		"fetched", fetchedURL,
		"items", len(content.Items),
		"new", added,
		"total", status.ItemsCollected)

	if status.AttemptCount >= s.MaxAttempts {
		return c.end(ctx, s, logger, pagewalk.StateComplete, pagewalk.ReasonMaxPagesReached), true
	}
	return pagewalk.Status{}, false
}

func (c *Controller) extractSeed(ctx context.Context, s *Session, logger *slog.Logger) (pagewalk.Status, bool) {
	if !c.enter(ctx, s, pagewalk.StateExtracting) {
		return c.stopped(ctx, s, logger), true
	}
	pc, err := c.snapshot(ctx, logger)
	if err != nil {
		return c.failOrStop(ctx, s, logger, fmt.Errorf("snapshot: %w", err)), true
	}
	content, err := c.extract(ctx, pc)
	if err != nil {
		return c.failOrStop(ctx, s, logger, err), true
	}
	added := s.recordSeed(content)
	if c.Sink != nil {
		if err := c.Sink.Write(ctx, content); err != nil {
			return c.failOrStop(ctx, s, logger, fmt.Errorf("write items: %w", err)), true
		}
	}
	logger.Info("start page extracted", "items", len(content.Items), "new", added)
	return pagewalk.Status{}, false
}

// checkpoint honors pause and stop requests between iterations. A paused
// session blocks here until it is resumed, stopped or ctx is done.
func (c *Controller) checkpoint(ctx context.Context, s *Session, logger *slog.Logger) (pagewalk.Status, bool) {
	if s.stopping() || ctx.Err() != nil {
		return c.stopped(ctx, s, logger), true
	}
	if !s.pausing() {
		return pagewalk.Status{}, false
	}

	s.setState(pagewalk.StatePaused)
	c.push(s)
	c.save(ctx, s, logger)
	logger.Info("session paused")

	for {
		select {
		case <-ctx.Done():
			return c.stopped(ctx, s, logger), true
		case <-s.wake:
		}
		if s.stopping() {
			return c.stopped(ctx, s, logger), true
		}
		if !s.pausing() {
			logger.Info("session resumed")
			return pagewalk.Status{}, false
		}
	}
}

// enter moves s into state unless a stop was requested. It reports whether
// the transition happened.
func (c *Controller) enter(ctx context.Context, s *Session, state pagewalk.State) bool {
	if s.stopping() || ctx.Err() != nil {
		return false
	}
	s.setState(state)
	c.push(s)
	c.logger().Debug("state", "session", s.ID, "state", state)
	return true
}

func (c *Controller) snapshot(ctx context.Context, logger *slog.Logger) (pagewalk.PageContext, error) {
	var pc pagewalk.PageContext
	err := c.retry().Do(ctx, func(ctx context.Context) error {
		var err error
		pc, err = c.Pages.Snapshot(ctx)
		return err
	}, nil, c.onRetry(logger, "snapshot"))
	return pc, err
}

func (c *Controller) navigate(ctx context.Context, action pagewalk.NavigationAction, logger *slog.Logger) error {
	if c.Limiter != nil && action.URL != "" {
		if err := c.Limiter.Wait(ctx, hostOf(action.URL)); err != nil {
			return err
		}
	}
	err := c.retry().Do(ctx, func(ctx context.Context) error {
		ok, err := c.Executor.Execute(ctx, action)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: %w", action, pagewalk.ErrStaleElement)
		}
		return nil
	}, nil, c.onRetry(logger, "navigate"))
	if err != nil {
		return fmt.Errorf("navigate %s: %w", action, err)
	}
	return nil
}

func (c *Controller) waitReady(ctx context.Context, logger *slog.Logger) error {
	timeout := c.waitTimeout()
	var ready bool
	err := c.retry().Do(ctx, func(ctx context.Context) error {
		var err error
		ready, err = c.Waiter.WaitReady(ctx, timeout)
		return err
	}, nil, c.onRetry(logger, "wait ready"))
	if err != nil {
		return fmt.Errorf("wait ready: %w", err)
	}
	if !ready {
		logger.Warn("page did not settle, extracting anyway", "timeout", timeout)
	}
	return nil
}

func (c *Controller) extract(ctx context.Context, pc pagewalk.PageContext) (*pagewalk.ExtractedContent, error) {
	return c.extractWith(ctx, c.Extractor, pc)
}

func (c *Controller) extractWith(ctx context.Context, extractor pagewalk.Extractor, pc pagewalk.PageContext) (*pagewalk.ExtractedContent, error) {
	content, err := extractor.Extract(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if content == nil {
		content = &pagewalk.ExtractedContent{URL: pc.URL()}
	}
	return content, nil
}

// failOrStop reports err as a failure unless it was caused by ctx ending.
func (c *Controller) failOrStop(ctx context.Context, s *Session, logger *slog.Logger, err error) pagewalk.Status {
	if ctx.Err() != nil {
		return c.stopped(ctx, s, logger)
	}
	return c.fail(ctx, s, logger, err)
}

func (c *Controller) fail(ctx context.Context, s *Session, logger *slog.Logger, err error) pagewalk.Status {
	msg := err.Error()
	if pagewalk.ErrorCode(err) != pagewalk.EINTERNAL {
		msg = pagewalk.ErrorMessage(err)
	}
	s.finish(pagewalk.StateError, "", msg)
	c.save(ctx, s, logger)
	c.push(s)
	logger.Error("session failed", "error", err)
	return s.Status()
}

func (c *Controller) stopped(ctx context.Context, s *Session, logger *slog.Logger) pagewalk.Status {
	s.finish(pagewalk.StateStopped, "", "")
	c.save(ctx, s, logger)
	c.push(s)
	logger.Info("session stopped")
	return s.Status()
}

func (c *Controller) end(ctx context.Context, s *Session, logger *slog.Logger, state pagewalk.State, reason string) pagewalk.Status {
	s.finish(state, reason, "")
	c.save(ctx, s, logger)
	c.push(s)
	status := s.Status()
	logger.Info("session complete", "reason", reason, "pages", status.CurrentPageIndex, "items", status.ItemsCollected)
	return status
}

// save persists the session. Failures are logged and the crawl continues.
func (c *Controller) save(ctx context.Context, s *Session, logger *slog.Logger) {
	if c.Sessions == nil {
		return
	}
	if err := c.Sessions.SaveSession(context.WithoutCancel(ctx), s.Snapshot()); err != nil {
		logger.Warn("save session failed", "error", err)
	}
}

func (c *Controller) push(s *Session) {
	if c.OnStatus != nil {
		c.OnStatus(s.Status())
	}
}

func (c *Controller) onRetry(logger *slog.Logger, op string) RetryFunc {
	return func(attempt int, delay time.Duration, err error) {
		logger.Warn("retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
	}
}

func (c *Controller) retry() RetryPolicy {
	if c.Retry == nil {
		return DefaultRetryPolicy()
	}
	return *c.Retry
}

func (c *Controller) waitTimeout() time.Duration {
	if c.WaitTimeout <= 0 {
		return DefaultWaitTimeout
	}
	return c.WaitTimeout
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}
