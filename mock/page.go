package mock

import (
	"context"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Compile-time interface verification.
var (
	_ pagewalk.PageContext  = (*PageContext)(nil)
	_ pagewalk.PageSource   = (*PageSource)(nil)
	_ pagewalk.ReadyWaiter  = (*ReadyWaiter)(nil)
	_ pagewalk.PayloadStore = (*PayloadStore)(nil)
)

// PageContext is a mock implementation of pagewalk.PageContext.
type PageContext struct {
	URLFn      func() string
	FindFn     func(selector string) []pagewalk.Element
	ViewportFn func() pagewalk.Viewport
	PayloadsFn func() []pagewalk.Payload
	HTMLFn     func() string
}

func (p *PageContext) URL() string {
	return p.URLFn()
}

func (p *PageContext) Find(selector string) []pagewalk.Element {
	return p.FindFn(selector)
}

func (p *PageContext) Viewport() pagewalk.Viewport {
	return p.ViewportFn()
}

func (p *PageContext) Payloads() []pagewalk.Payload {
	return p.PayloadsFn()
}

func (p *PageContext) HTML() string {
	return p.HTMLFn()
}

// PageSource is a mock implementation of pagewalk.PageSource.
type PageSource struct {
	SnapshotFn func(ctx context.Context) (pagewalk.PageContext, error)
}

func (s *PageSource) Snapshot(ctx context.Context) (pagewalk.PageContext, error) {
	return s.SnapshotFn(ctx)
}

// ReadyWaiter is a mock implementation of pagewalk.ReadyWaiter.
type ReadyWaiter struct {
	WaitReadyFn func(ctx context.Context, timeout time.Duration) (bool, error)
}

func (w *ReadyWaiter) WaitReady(ctx context.Context, timeout time.Duration) (bool, error) {
	return w.WaitReadyFn(ctx, timeout)
}

// PayloadStore is a mock implementation of pagewalk.PayloadStore.
type PayloadStore struct {
	ObserveFn func(url string, body []byte) bool
	RecordFn  func(p pagewalk.Payload)
	LatestFn  func() []pagewalk.Payload
	ResetFn   func()
}

func (s *PayloadStore) Observe(url string, body []byte) bool {
	return s.ObserveFn(url, body)
}

func (s *PayloadStore) Record(p pagewalk.Payload) {
	s.RecordFn(p)
}

func (s *PayloadStore) Latest() []pagewalk.Payload {
	return s.LatestFn()
}

func (s *PayloadStore) Reset() {
	s.ResetFn()
}
