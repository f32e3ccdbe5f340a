// Package service contains application services for the device protocol.
package service

import (
	"context"
	"errors"
	"time"

	pkgcrypto "github.com/fwerner/plantguard/internal/crypto"
	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/repository"
)

// ChallengeService issues single-use nonces and verifies signed responses.
type ChallengeService interface {
	// Issue generates a fresh nonce for the unit with the given identity
	// key, invalidating any prior unconsumed nonce.
	Issue(ctx context.Context, identityKey string) (string, error)
	// Verify checks signatureB64 against the unit's outstanding nonce.
	// The nonce is consumed regardless of the verdict; a second attempt
	// against the same nonce always returns false.
	Verify(ctx context.Context, unit *model.Unit, signatureB64 string) (bool, error)
}

type ChallengeServiceImpl struct {
	units      repository.UnitRepository
	challenges repository.ChallengeRepository
	ttl        time.Duration
}

// NewChallengeService constructs ChallengeService. A ttl of zero disables
// nonce expiry.
func NewChallengeService(units repository.UnitRepository, challenges repository.ChallengeRepository, ttl time.Duration) *ChallengeServiceImpl {
	return &ChallengeServiceImpl{units: units, challenges: challenges, ttl: ttl}
}

// Issue overwrites the unit's outstanding challenge with a fresh nonce.
// A unit may only ever answer the latest issued challenge.
func (s *ChallengeServiceImpl) Issue(ctx context.Context, identityKey string) (string, error) {
	u, err := s.units.FindByIdentityKey(ctx, identityKey)
	if err != nil {
		return "", err
	}
	nonce, err := pkgcrypto.NewChallenge()
	if err != nil {
		return "", err
	}
	if err := s.challenges.Issue(ctx, u.ID, nonce); err != nil {
		return "", err
	}
	return nonce, nil
}

// Verify consumes the outstanding nonce and checks the signature. The
// consume happens first and is atomic, so win or lose the nonce is gone.
func (s *ChallengeServiceImpl) Verify(ctx context.Context, unit *model.Unit, signatureB64 string) (bool, error) {
	nonce, issuedAt, err := s.challenges.Consume(ctx, unit.ID)
	if errors.Is(err, errs.ErrNotFound) {
		// nothing outstanding, nothing to verify against
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.ttl > 0 && time.Since(issuedAt) > s.ttl {
		return false, nil
	}
	pub, err := pkgcrypto.ParseRSAPublicKey(unit.PublicKey)
	if err != nil {
		return false, nil
	}
	return pkgcrypto.VerifyChallengeSignature(pub, nonce, signatureB64), nil
}

// authenticateUnit resolves a unit by identity key and verifies the
// signed challenge. Every privileged operation starts here.
func authenticateUnit(ctx context.Context, units repository.UnitRepository, auth ChallengeService, identityKey, signatureB64 string) (*model.Unit, error) {
	u, err := units.FindByIdentityKey(ctx, identityKey)
	if err != nil {
		return nil, err
	}
	ok, err := auth.Verify(ctx, u, signatureB64)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrAuthFailed
	}
	return u, nil
}
