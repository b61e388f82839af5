package mock

import (
	"context"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Compile-time interface verification.
var (
	_ pagewalk.NavigationExecutor = (*NavigationExecutor)(nil)
	_ pagewalk.Strategy           = (*Strategy)(nil)
	_ pagewalk.Ranker             = (*Ranker)(nil)
	_ pagewalk.Tab                = (*Tab)(nil)
	_ pagewalk.TabOpener          = (*TabOpener)(nil)
)

// NavigationExecutor is a mock implementation of pagewalk.NavigationExecutor.
type NavigationExecutor struct {
	ExecuteFn func(ctx context.Context, action pagewalk.NavigationAction) (bool, error)
}

func (e *NavigationExecutor) Execute(ctx context.Context, action pagewalk.NavigationAction) (bool, error) {
	return e.ExecuteFn(ctx, action)
}

// Strategy is a mock implementation of pagewalk.Strategy.
type Strategy struct {
	NameFn   func() pagewalk.StrategyName
	DetectFn func(pc pagewalk.PageContext) *pagewalk.Candidate
}

func (s *Strategy) Name() pagewalk.StrategyName {
	return s.NameFn()
}

func (s *Strategy) Detect(pc pagewalk.PageContext) *pagewalk.Candidate {
	return s.DetectFn(pc)
}

// Ranker is a mock implementation of pagewalk.Ranker.
type Ranker struct {
	RankFn func(pc pagewalk.PageContext, method pagewalk.Method) *pagewalk.Candidate
}

func (r *Ranker) Rank(pc pagewalk.PageContext, method pagewalk.Method) *pagewalk.Candidate {
	return r.RankFn(pc, method)
}

// Tab is a mock implementation of pagewalk.Tab.
type Tab struct {
	OpenFn      func(ctx context.Context, url string) error
	SnapshotFn  func(ctx context.Context) (pagewalk.PageContext, error)
	ExecuteFn   func(ctx context.Context, action pagewalk.NavigationAction) (bool, error)
	WaitReadyFn func(ctx context.Context, timeout time.Duration) (bool, error)
	CloseFn     func() error
}

func (t *Tab) Open(ctx context.Context, url string) error {
	return t.OpenFn(ctx, url)
}

func (t *Tab) Snapshot(ctx context.Context) (pagewalk.PageContext, error) {
	return t.SnapshotFn(ctx)
}

func (t *Tab) Execute(ctx context.Context, action pagewalk.NavigationAction) (bool, error) {
	return t.ExecuteFn(ctx, action)
}

func (t *Tab) WaitReady(ctx context.Context, timeout time.Duration) (bool, error) {
	return t.WaitReadyFn(ctx, timeout)
}

func (t *Tab) Close() error {
	return t.CloseFn()
}

// TabOpener is a mock implementation of pagewalk.TabOpener.
type TabOpener struct {
	NewTabFn func(ctx context.Context) (pagewalk.Tab, error)
}

func (o *TabOpener) NewTab(ctx context.Context) (pagewalk.Tab, error) {
	return o.NewTabFn(ctx)
}

var _ pagewalk.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of pagewalk.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}
