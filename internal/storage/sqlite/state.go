package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"worklogbot/internal/domain"
)

// StateStore persists conversation states. Waiting states older than ttl
// read back as idle.
type StateStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewStateStore(db *sql.DB, ttl time.Duration) *StateStore {
	return &StateStore{db: db, ttl: ttl, now: time.Now}
}

func (s *StateStore) Get(ctx context.Context, userID string) (domain.State, error) {
	var (
		state     string
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT state, updated_at FROM conversation_state WHERE user_id = ?`, userID,
	).Scan(&state, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StateIdle, nil
	}
	if err != nil {
		return domain.StateIdle, err
	}
	st := domain.State(state)
	if !st.Valid() || domain.Expired(st, updatedAt, s.now(), s.ttl) {
		return domain.StateIdle, nil
	}
	return st, nil
}

func (s *StateStore) Set(ctx context.Context, userID string, state domain.State) error {
	if state == domain.StateIdle {
		_, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE user_id = ?`, userID)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_state (user_id, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		userID, string(state), s.now().UTC(),
	)
	return err
}
