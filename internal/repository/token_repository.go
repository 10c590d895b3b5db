package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kidspro/kids-specialists/internal/model"
)

// TokenRepo is the session ledger: the store of record mapping live
// refresh tokens to their owning users.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token row for the user.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, token string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (?,?,?)",
		userID, token, expiresAt)
	return err
}

// Validate joins the ledger against the credential store and returns the
// owning identity iff the token exists and is unexpired. The caller still
// has to check SessionOwner.IsActive; returning the flag instead of
// filtering on it keeps "deactivated account" distinguishable from
// "unknown token" in responses.
func (r *TokenRepo) Validate(ctx context.Context, token string) (model.SessionOwner, error) {
	var o model.SessionOwner
	err := r.DB.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.role, u.is_active
		 FROM refresh_tokens rt
		 JOIN users u ON u.id = rt.user_id
		 WHERE rt.token=? AND rt.expires_at > NOW()
		 LIMIT 1`,
		token).Scan(&o.UserID, &o.Email, &o.Role, &o.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionOwner{}, ErrNotFound
	}
	if err != nil {
		return model.SessionOwner{}, err
	}
	return o, nil
}

// Delete removes a single refresh token (logout of one session). Deleting
// an unknown token is a no-op.
func (r *TokenRepo) Delete(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token=?", token)
	return err
}

// DeleteAllForUser removes every session for the user (logout everywhere).
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}

// PruneToMostRecent evicts all but the `limit` most recently created
// sessions for the user. Eviction is by creation time, not last use, so
// the oldest idle session is the one silently logged out when the cap is
// exceeded. The query is deterministic, which keeps the eviction order
// testable and tolerant of concurrent logins.
func (r *TokenRepo) PruneToMostRecent(ctx context.Context, userID uint64, limit int) error {
	// MySQL cannot delete from a table it selects from directly; the
	// derived table works around that.
	_, err := r.DB.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id=? AND id NOT IN (
			SELECT id FROM (
				SELECT id FROM refresh_tokens
				WHERE user_id=?
				ORDER BY created_at DESC, id DESC
				LIMIT ?
			) keep
		)`,
		userID, userID, limit)
	return err
}
