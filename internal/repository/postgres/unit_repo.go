package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
)

// UnitRepo implements UnitRepository using PostgreSQL.
type UnitRepo struct{ db *DB }

// NewUnitRepo constructs a unit repository.
func NewUnitRepo(db *DB) *UnitRepo { return &UnitRepo{db: db} }

// FindByIdentityKey selects a unit by its identity key.
func (r *UnitRepo) FindByIdentityKey(ctx context.Context, identityKey string) (*model.Unit, error) {
	const q = `
SELECT id, name, identity_key, public_key, owner_id, unattended_watering, created_at
FROM units WHERE identity_key=$1`
	row := r.db.Pool.QueryRow(ctx, q, identityKey)
	var u model.Unit
	if err := row.Scan(&u.ID, &u.Name, &u.IdentityKey, &u.PublicKey, &u.OwnerID, &u.UnattendedWatering, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreatePending inserts a pending unit. The public key must be unused by
// both provisioned and pending units; the cross-table check runs in the
// same transaction as the insert, and the per-table unique constraints
// close the remaining race.
func (r *UnitRepo) CreatePending(ctx context.Context, p *model.PendingUnit) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	const dup = `SELECT EXISTS (SELECT 1 FROM units WHERE public_key=$1)`
	var taken bool
	if err = tx.QueryRow(ctx, dup, p.PublicKey).Scan(&taken); err != nil {
		return err
	}
	if taken {
		return errs.ErrAlreadyExists
	}

	const ins = `
INSERT INTO pending_units (identity_key, public_key, pairing_key)
VALUES ($1, $2, $3)
RETURNING id, created_at`
	if err = tx.QueryRow(ctx, ins, p.IdentityKey, p.PublicKey, p.PairingKey).Scan(&p.ID, &p.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// DeletePendingOlderThan sweeps expired pending units.
func (r *UnitRepo) DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM pending_units WHERE created_at < $1`
	tag, err := r.db.Pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IdentityKeyExists checks both the provisioned and pending tables.
func (r *UnitRepo) IdentityKeyExists(ctx context.Context, identityKey string) (bool, error) {
	const q = `
SELECT EXISTS (SELECT 1 FROM units WHERE identity_key=$1)
    OR EXISTS (SELECT 1 FROM pending_units WHERE identity_key=$1)`
	var taken bool
	if err := r.db.Pool.QueryRow(ctx, q, identityKey).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// PairingKeyExists checks the pending table for a pairing code collision.
func (r *UnitRepo) PairingKeyExists(ctx context.Context, pairingKey string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM pending_units WHERE pairing_key=$1)`
	var taken bool
	if err := r.db.Pool.QueryRow(ctx, q, pairingKey).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// ClaimPending copies a pending unit into a full unit and deletes the
// pending record, all in one transaction.
func (r *UnitRepo) ClaimPending(ctx context.Context, pairingKey, name string, ownerID int64) (u *model.Unit, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	const sel = `
SELECT id, identity_key, public_key FROM pending_units WHERE pairing_key=$1 FOR UPDATE`
	var pendingID int64
	var identityKey, publicKey string
	if err = tx.QueryRow(ctx, sel, pairingKey).Scan(&pendingID, &identityKey, &publicKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return nil, err
	}

	const ins = `
INSERT INTO units (name, identity_key, public_key, owner_id)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`
	u = &model.Unit{Name: name, IdentityKey: identityKey, PublicKey: publicKey, OwnerID: ownerID}
	if err = tx.QueryRow(ctx, ins, name, identityKey, publicKey, ownerID).Scan(&u.ID, &u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return nil, err
	}

	const del = `DELETE FROM pending_units WHERE id=$1`
	if _, err = tx.Exec(ctx, del, pendingID); err != nil {
		return nil, err
	}
	return u, nil
}
