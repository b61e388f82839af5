package mock

import (
	"context"

	"github.com/fwojciec/pagewalk"
)

// Compile-time interface verification.
var (
	_ pagewalk.Extractor = (*Extractor)(nil)
	_ pagewalk.ItemSink  = (*ItemSink)(nil)
)

// Extractor is a mock implementation of pagewalk.Extractor.
type Extractor struct {
	ExtractFn func(ctx context.Context, pc pagewalk.PageContext) (*pagewalk.ExtractedContent, error)
}

func (e *Extractor) Extract(ctx context.Context, pc pagewalk.PageContext) (*pagewalk.ExtractedContent, error) {
	return e.ExtractFn(ctx, pc)
}

// ItemSink is a mock implementation of pagewalk.ItemSink.
type ItemSink struct {
	WriteFn  func(ctx context.Context, content *pagewalk.ExtractedContent) error
	CommitFn func() error
	AbortFn  func() error
}

func (s *ItemSink) Write(ctx context.Context, content *pagewalk.ExtractedContent) error {
	return s.WriteFn(ctx, content)
}

func (s *ItemSink) Commit() error {
	return s.CommitFn()
}

func (s *ItemSink) Abort() error {
	return s.AbortFn()
}
