package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fwerner/plantguard/internal/errs"
)

// ChallengeRepo implements ChallengeRepository using PostgreSQL. The
// unit_id primary key guarantees at most one outstanding nonce per unit;
// consuming deletes the row, so a nonce verifies at most once no matter
// how many server processes race.
type ChallengeRepo struct{ db *DB }

// NewChallengeRepo constructs a challenge repository.
func NewChallengeRepo(db *DB) *ChallengeRepo { return &ChallengeRepo{db: db} }

// Issue stores a fresh nonce, unconditionally replacing any prior one.
func (r *ChallengeRepo) Issue(ctx context.Context, unitID int64, nonce string) error {
	const q = `
INSERT INTO unit_challenges (unit_id, nonce, issued_at)
VALUES ($1, $2, now())
ON CONFLICT (unit_id) DO UPDATE SET nonce=EXCLUDED.nonce, issued_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, unitID, nonce)
	return err
}

// Consume atomically removes and returns the outstanding nonce.
func (r *ChallengeRepo) Consume(ctx context.Context, unitID int64) (string, time.Time, error) {
	const q = `DELETE FROM unit_challenges WHERE unit_id=$1 RETURNING nonce, issued_at`
	var nonce string
	var issuedAt time.Time
	if err := r.db.Pool.QueryRow(ctx, q, unitID).Scan(&nonce, &issuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, errs.ErrNotFound
		}
		return "", time.Time{}, err
	}
	return nonce, issuedAt, nil
}
