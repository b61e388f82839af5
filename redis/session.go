package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fwojciec/pagewalk"
	redisv8 "github.com/go-redis/redis/v8"
)

// Compile-time interface verification.
var _ pagewalk.SessionService = (*SessionService)(nil)

// SessionService implements pagewalk.SessionService using Redis. Each session
// is a JSON string; a sorted set scored by update time indexes them.
type SessionService struct {
	client *Client
}

// NewSessionService creates a new SessionService.
func NewSessionService(client *Client) *SessionService {
	return &SessionService{client: client}
}

// SaveSession creates or replaces a session. A zero UpdatedAt is set to now.
func (s *SessionService) SaveSession(ctx context.Context, state *pagewalk.SessionState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	c := s.client
	_, err = c.client.TxPipelined(ctx, func(pipe redisv8.Pipeliner) error {
		pipe.Set(ctx, c.sessionKey(state.ID), b, c.ttl)
		pipe.ZAdd(ctx, c.indexKey(), &redisv8.Z{
			Score:  float64(state.UpdatedAt.UnixMilli()),
			Member: state.ID,
		})
		return nil
	})
	return err
}

// FindSessionByID retrieves a session by ID.
func (s *SessionService) FindSessionByID(ctx context.Context, id string) (*pagewalk.SessionState, error) {
	b, err := s.client.client.Get(ctx, s.client.sessionKey(id)).Bytes()
	if errors.Is(err, redisv8.Nil) {
		return nil, pagewalk.Errorf(pagewalk.ENOTFOUND, "session not found")
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(b)
}

// FindSessions retrieves all sessions, most recently updated first. Index
// entries whose session expired are pruned.
func (s *SessionService) FindSessions(ctx context.Context) ([]*pagewalk.SessionState, error) {
	c := s.client
	ids, err := c.client.ZRevRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.sessionKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var sessions []*pagewalk.SessionState
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		state, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, state)
	}
	if len(expired) > 0 {
		if err := c.client.ZRem(ctx, c.indexKey(), expired...).Err(); err != nil {
			return nil, err
		}
	}

	return sessions, nil
}

// DeleteSession removes a session.
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	c := s.client
	var del *redisv8.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redisv8.Pipeliner) error {
		del = pipe.Del(ctx, c.sessionKey(id))
		pipe.ZRem(ctx, c.indexKey(), id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return pagewalk.Errorf(pagewalk.ENOTFOUND, "session not found")
	}
	return nil
}

func decodeSession(b []byte) (*pagewalk.SessionState, error) {
	var state pagewalk.SessionState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &state, nil
}
