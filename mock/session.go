package mock

import (
	"context"

	"github.com/fwojciec/pagewalk"
)

var _ pagewalk.SessionService = (*SessionService)(nil)

// SessionService is a mock implementation of pagewalk.SessionService.
type SessionService struct {
	SaveSessionFn     func(ctx context.Context, state *pagewalk.SessionState) error
	FindSessionByIDFn func(ctx context.Context, id string) (*pagewalk.SessionState, error)
	FindSessionsFn    func(ctx context.Context) ([]*pagewalk.SessionState, error)
	DeleteSessionFn   func(ctx context.Context, id string) error
}

func (s *SessionService) SaveSession(ctx context.Context, state *pagewalk.SessionState) error {
	return s.SaveSessionFn(ctx, state)
}

func (s *SessionService) FindSessionByID(ctx context.Context, id string) (*pagewalk.SessionState, error) {
	return s.FindSessionByIDFn(ctx, id)
}

func (s *SessionService) FindSessions(ctx context.Context) ([]*pagewalk.SessionState, error) {
	return s.FindSessionsFn(ctx)
}

func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	return s.DeleteSessionFn(ctx, id)
}
