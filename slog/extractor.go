package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Ensure LoggingExtractor implements pagewalk.Extractor.
var _ pagewalk.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor with logging.
type LoggingExtractor struct {
	next   pagewalk.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next pagewalk.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Extract delegates to the wrapped extractor and logs the item count.
func (e *LoggingExtractor) Extract(ctx context.Context, pc pagewalk.PageContext) (content *pagewalk.ExtractedContent, err error) {
	defer func(begin time.Time) {
		count := 0
		if content != nil {
			count = len(content.Items)
		}
		e.logger.Info("extract",
			"url", pc.URL(),
			"items", count,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Extract(ctx, pc)
}
