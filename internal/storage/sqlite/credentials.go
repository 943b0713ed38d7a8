package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"worklogbot/internal/domain"
)

// CredentialStore keeps one tracker token per chat user.
type CredentialStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db, now: time.Now}
}

// GetByUser returns the stored credential, or a Credential without a token
// when the user never set one.
func (s *CredentialStore) GetByUser(ctx context.Context, userID string) (domain.Credential, error) {
	cred := domain.Credential{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT jira_token, display_name, updated_at FROM users WHERE user_id = ?`, userID,
	).Scan(&cred.Token, &cred.DisplayName, &cred.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credential{UserID: userID}, nil
	}
	if err != nil {
		return domain.Credential{}, err
	}
	return cred, nil
}

func (s *CredentialStore) Upsert(ctx context.Context, cred domain.Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, jira_token, display_name, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   jira_token = excluded.jira_token,
		   display_name = excluded.display_name,
		   updated_at = excluded.updated_at`,
		cred.UserID, cred.Token, cred.DisplayName, s.now().UTC(),
	)
	return err
}

// Clear removes the user's token and reports whether one was stored.
func (s *CredentialStore) Clear(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET jira_token = '', updated_at = ? WHERE user_id = ? AND jira_token != ''`,
		s.now().UTC(), userID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
