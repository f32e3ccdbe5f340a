// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/fwerner/plantguard/internal/model"
)

// UnitRepository provides access to provisioned and pending units.
type UnitRepository interface {
	// FindByIdentityKey loads a unit by its identity key.
	FindByIdentityKey(ctx context.Context, identityKey string) (*model.Unit, error)

	// CreatePending inserts a pending unit. The public key is checked
	// for uniqueness across both pending and provisioned units inside
	// the same transaction; a collision returns ErrAlreadyExists.
	CreatePending(ctx context.Context, p *model.PendingUnit) error

	// DeletePendingOlderThan removes pending units created before cutoff
	// and returns the number of rows removed.
	DeletePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// IdentityKeyExists reports whether the key is taken by a unit or a
	// pending unit.
	IdentityKeyExists(ctx context.Context, identityKey string) (bool, error)

	// PairingKeyExists reports whether the pairing code is taken by a
	// pending unit.
	PairingKeyExists(ctx context.Context, pairingKey string) (bool, error)

	// ClaimPending atomically creates a unit from the pending unit with
	// the given pairing key and deletes the pending record.
	ClaimPending(ctx context.Context, pairingKey, name string, ownerID int64) (*model.Unit, error)
}

// ChallengeRepository stores the single outstanding nonce per unit.
type ChallengeRepository interface {
	// Issue stores a fresh nonce for the unit, replacing any prior one.
	Issue(ctx context.Context, unitID int64, nonce string) error

	// Consume atomically removes and returns the outstanding nonce.
	// Returns ErrNotFound when no challenge is outstanding. Two
	// concurrent consumers can never both receive the nonce.
	Consume(ctx context.Context, unitID int64) (nonce string, issuedAt time.Time, err error)
}
