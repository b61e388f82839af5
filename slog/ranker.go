package slog

import (
	"log/slog"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Ensure LoggingRanker implements pagewalk.Ranker.
var _ pagewalk.Ranker = (*LoggingRanker)(nil)

// LoggingRanker wraps a Ranker with logging of the chosen strategy.
type LoggingRanker struct {
	next   pagewalk.Ranker
	logger *slog.Logger
}

// NewLoggingRanker creates a new LoggingRanker.
func NewLoggingRanker(next pagewalk.Ranker, logger *slog.Logger) *LoggingRanker {
	return &LoggingRanker{next: next, logger: logger}
}

// Rank delegates to the wrapped ranker and logs the winning candidate.
func (r *LoggingRanker) Rank(pc pagewalk.PageContext, method pagewalk.Method) *pagewalk.Candidate {
	begin := time.Now()
	c := r.next.Rank(pc, method)
	if c == nil {
		r.logger.Info("detection",
			"url", pc.URL(),
			"method", string(method),
			"strategy", "(none)",
			"duration", time.Since(begin),
		)
		return nil
	}
	r.logger.Info("detection",
		"url", pc.URL(),
		"method", string(method),
		"strategy", string(c.Strategy),
		"confidence", c.Confidence,
		"action", c.Action.String(),
		"duration", time.Since(begin),
	)
	return c
}
