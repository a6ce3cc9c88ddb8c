package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo stores refresh tokens by hash; the raw token never reaches
// the database.
type TokenRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Store records a newly issued refresh token.
func (r *TokenRepo) Store(ctx context.Context, accountID uint64, tokenHash string, exp time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (account_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		accountID, tokenHash, exp)
	return err
}

// Lookup returns the account of a live token.  Revoked, expired and
// unknown tokens are ErrNotFound.
func (r *TokenRepo) Lookup(ctx context.Context, tokenHash string) (uint64, error) {
	var accountID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT account_id FROM refresh_tokens
		  WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ? LIMIT 1`,
		tokenHash, r.now()).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return accountID, err
}

// Consume revokes a live token and returns its account.  Of two
// concurrent rotations of the same token only one succeeds; the other
// gets ErrNotFound.
func (r *TokenRepo) Consume(ctx context.Context, tokenHash string) (uint64, error) {
	accountID, err := r.Lookup(ctx, tokenHash)
	if err != nil {
		return 0, err
	}
	if err := r.Revoke(ctx, tokenHash); err != nil {
		return 0, err
	}
	return accountID, nil
}

// Revoke marks a live token revoked.  ErrNotFound when there was none.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ?`,
		r.now(), tokenHash, r.now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAccount revokes every live token of an account.  Disabling an
// account and "log out everywhere" both end here.
func (r *TokenRepo) RevokeAccount(ctx context.Context, accountID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE account_id = ? AND revoked_at IS NULL`,
		r.now(), accountID)
	return err
}

// PurgeExpired deletes tokens that expired or were revoked before cutoff
// and returns how many rows went.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < ? OR revoked_at < ?`, cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
