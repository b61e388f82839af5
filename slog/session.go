package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Ensure LoggingSessionService implements pagewalk.SessionService.
var _ pagewalk.SessionService = (*LoggingSessionService)(nil)

// LoggingSessionService wraps a SessionService with debug logging.
type LoggingSessionService struct {
	next   pagewalk.SessionService
	logger *slog.Logger
}

// NewLoggingSessionService creates a new LoggingSessionService.
func NewLoggingSessionService(next pagewalk.SessionService, logger *slog.Logger) *LoggingSessionService {
	return &LoggingSessionService{next: next, logger: logger}
}

// SaveSession delegates to the wrapped service.
func (s *LoggingSessionService) SaveSession(ctx context.Context, state *pagewalk.SessionState) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("save session",
			"id", state.ID,
			"state", string(state.State),
			"attempt", state.AttemptCount,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.SaveSession(ctx, state)
}

// FindSessionByID delegates to the wrapped service.
func (s *LoggingSessionService) FindSessionByID(ctx context.Context, id string) (state *pagewalk.SessionState, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("find session",
			"id", id,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FindSessionByID(ctx, id)
}

// FindSessions delegates to the wrapped service.
func (s *LoggingSessionService) FindSessions(ctx context.Context) (sessions []*pagewalk.SessionState, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("find sessions",
			"count", len(sessions),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.FindSessions(ctx)
}

// DeleteSession delegates to the wrapped service.
func (s *LoggingSessionService) DeleteSession(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("delete session",
			"id", id,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.DeleteSession(ctx, id)
}
