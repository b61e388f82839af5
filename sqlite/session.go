package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Compile-time interface verification.
var _ pagewalk.SessionService = (*SessionService)(nil)

// SessionService implements pagewalk.SessionService using SQLite.
type SessionService struct {
	db *DB
}

// NewSessionService creates a new SessionService.
func NewSessionService(db *DB) *SessionService {
	return &SessionService{db: db}
}

// SaveSession creates or replaces a session. A zero UpdatedAt is set to now.
func (s *SessionService) SaveSession(ctx context.Context, state *pagewalk.SessionState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	visited, err := encodeList(state.VisitedURLs)
	if err != nil {
		return err
	}
	fingerprints, err := encodeList(state.FingerprintHistory)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, start_url, current_url, method, max_attempts, wait_timeout_ms,
			current_page_index, visited_urls, fingerprint_history, attempt_count, items_collected,
			state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_url = excluded.start_url,
			current_url = excluded.current_url,
			method = excluded.method,
			max_attempts = excluded.max_attempts,
			wait_timeout_ms = excluded.wait_timeout_ms,
			current_page_index = excluded.current_page_index,
			visited_urls = excluded.visited_urls,
			fingerprint_history = excluded.fingerprint_history,
			attempt_count = excluded.attempt_count,
			items_collected = excluded.items_collected,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, state.ID, state.StartURL, state.CurrentURL, string(state.Method), state.MaxAttempts,
		state.WaitTimeout.Milliseconds(), state.CurrentPageIndex, visited, fingerprints, state.AttemptCount, state.ItemsCollected,
		string(state.State), formatTime(state.UpdatedAt))

	return err
}

const selectSession = `
	SELECT id, start_url, current_url, method, max_attempts, wait_timeout_ms, current_page_index,
		visited_urls, fingerprint_history, attempt_count, items_collected, state, updated_at
	FROM sessions`

// FindSessionByID retrieves a session by ID.
func (s *SessionService) FindSessionByID(ctx context.Context, id string) (*pagewalk.SessionState, error) {
	state, err := scanSession(s.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pagewalk.Errorf(pagewalk.ENOTFOUND, "session not found")
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// FindSessions retrieves all sessions, most recently updated first.
func (s *SessionService) FindSessions(ctx context.Context) ([]*pagewalk.SessionState, error) {
	rows, err := s.db.QueryContext(ctx, selectSession+` ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*pagewalk.SessionState
	for rows.Next() {
		state, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, state)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// DeleteSession removes a session.
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pagewalk.Errorf(pagewalk.ENOTFOUND, "session not found")
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*pagewalk.SessionState, error) {
	var state pagewalk.SessionState
	var method, st, visited, fingerprints, updatedAt string
	var waitTimeoutMS int64

	if err := row.Scan(&state.ID, &state.StartURL, &state.CurrentURL, &method, &state.MaxAttempts,
		&waitTimeoutMS, &state.CurrentPageIndex, &visited, &fingerprints, &state.AttemptCount, &state.ItemsCollected,
		&st, &updatedAt); err != nil {
		return nil, err
	}
	state.Method = pagewalk.Method(method)
	state.State = pagewalk.State(st)
	state.WaitTimeout = time.Duration(waitTimeoutMS) * time.Millisecond

	var err error
	if state.VisitedURLs, err = decodeList(visited, "visited_urls"); err != nil {
		return nil, err
	}
	if state.FingerprintHistory, err = decodeList(fingerprints, "fingerprint_history"); err != nil {
		return nil, err
	}
	if state.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}

	return &state, nil
}
