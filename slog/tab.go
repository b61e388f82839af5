// Package slog decorates pagewalk services with structured logging.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Ensure the decorators implement their interfaces.
var (
	_ pagewalk.TabOpener = (*LoggingTabOpener)(nil)
	_ pagewalk.Tab       = (*LoggingTab)(nil)
)

// LoggingTabOpener wraps a TabOpener so every tab it opens logs its
// navigation.
type LoggingTabOpener struct {
	next   pagewalk.TabOpener
	logger *slog.Logger
}

// NewLoggingTabOpener creates a new LoggingTabOpener.
func NewLoggingTabOpener(next pagewalk.TabOpener, logger *slog.Logger) *LoggingTabOpener {
	return &LoggingTabOpener{next: next, logger: logger}
}

// NewTab opens a tab on the wrapped opener and wraps it in a LoggingTab.
func (o *LoggingTabOpener) NewTab(ctx context.Context) (pagewalk.Tab, error) {
	tab, err := o.next.NewTab(ctx)
	if err != nil {
		o.logger.Error("open tab", "err", err)
		return nil, err
	}
	return NewLoggingTab(tab, o.logger), nil
}

// LoggingTab wraps a Tab with debug logging of navigation and readiness.
type LoggingTab struct {
	next   pagewalk.Tab
	logger *slog.Logger
}

// NewLoggingTab creates a new LoggingTab.
func NewLoggingTab(next pagewalk.Tab, logger *slog.Logger) *LoggingTab {
	return &LoggingTab{next: next, logger: logger}
}

// Open delegates to the wrapped tab and logs the load.
func (t *LoggingTab) Open(ctx context.Context, url string) (err error) {
	defer func(begin time.Time) {
		t.logger.Info("open",
			"url", url,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return t.next.Open(ctx, url)
}

// Snapshot delegates to the wrapped tab.
func (t *LoggingTab) Snapshot(ctx context.Context) (pc pagewalk.PageContext, err error) {
	defer func(begin time.Time) {
		t.logger.Debug("snapshot",
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return t.next.Snapshot(ctx)
}

// Execute delegates to the wrapped tab and logs the action and its outcome.
func (t *LoggingTab) Execute(ctx context.Context, action pagewalk.NavigationAction) (ok bool, err error) {
	defer func(begin time.Time) {
		t.logger.Info("execute",
			"action", action.String(),
			"ok", ok,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return t.next.Execute(ctx, action)
}

// WaitReady delegates to the wrapped tab and logs how long the page took to settle.
func (t *LoggingTab) WaitReady(ctx context.Context, timeout time.Duration) (ready bool, err error) {
	defer func(begin time.Time) {
		t.logger.Debug("wait ready",
			"ready", ready,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return t.next.WaitReady(ctx, timeout)
}

// Close delegates to the wrapped tab.
func (t *LoggingTab) Close() error {
	return t.next.Close()
}
