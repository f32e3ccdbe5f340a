package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	pkgcrypto "github.com/fwerner/plantguard/internal/crypto"
	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/repository"
)

// maxKeyAttempts bounds the regenerate-on-collision loop. With 128 chars
// of URL-safe entropy a collision is a safety net case, not a hot loop.
const maxKeyAttempts = 10

// ProvisioningService handles first contact and the operator claim step.
type ProvisioningService interface {
	// RegisterNewUnit turns an anonymous first-contact request into a
	// pending unit. This is the one unauthenticated write path; the
	// result is inert until a human claims it.
	RegisterNewUnit(ctx context.Context, publicKeyPEM string) (*model.PendingUnit, error)
	// ClaimUnit converts a pending unit into a full unit owned by the
	// given account.
	ClaimUnit(ctx context.Context, pairingKey, name string, ownerID int64) (*model.Unit, error)
}

type ProvisioningServiceImpl struct {
	units      repository.UnitRepository
	pendingTTL time.Duration
	log        *zap.Logger
}

// NewProvisioningService constructs ProvisioningService.
func NewProvisioningService(units repository.UnitRepository, pendingTTL time.Duration, log *zap.Logger) *ProvisioningServiceImpl {
	return &ProvisioningServiceImpl{units: units, pendingTTL: pendingTTL, log: log}
}

// RegisterNewUnit sweeps expired pending units, validates the submitted
// public key, and persists a new pending unit with fresh identity and
// pairing keys.
func (s *ProvisioningServiceImpl) RegisterNewUnit(ctx context.Context, publicKeyPEM string) (*model.PendingUnit, error) {
	// opportunistic garbage collection instead of a background scheduler
	if n, err := s.units.DeletePendingOlderThan(ctx, time.Now().Add(-s.pendingTTL)); err != nil {
		s.log.Warn("pending unit sweep failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("swept expired pending units", zap.Int64("removed", n))
	}

	if _, err := pkgcrypto.ParseRSAPublicKey(publicKeyPEM); err != nil {
		return nil, errs.ErrMalformedKey
	}

	identityKey, err := s.uniqueIdentityKey(ctx)
	if err != nil {
		return nil, err
	}
	pairingKey, err := s.uniquePairingKey(ctx)
	if err != nil {
		return nil, err
	}

	p := &model.PendingUnit{IdentityKey: identityKey, PublicKey: publicKeyPEM, PairingKey: pairingKey}
	if err := s.units.CreatePending(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProvisioningServiceImpl) uniqueIdentityKey(ctx context.Context) (string, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key, err := pkgcrypto.NewIdentityKey()
		if err != nil {
			return "", err
		}
		taken, err := s.units.IdentityKeyExists(ctx, key)
		if err != nil {
			return "", err
		}
		if !taken {
			return key, nil
		}
	}
	return "", fmt.Errorf("no unique identity key after %d attempts", maxKeyAttempts)
}

func (s *ProvisioningServiceImpl) uniquePairingKey(ctx context.Context) (string, error) {
	for i := 0; i < maxKeyAttempts; i++ {
		key, err := pkgcrypto.NewPairingKey()
		if err != nil {
			return "", err
		}
		taken, err := s.units.PairingKeyExists(ctx, key)
		if err != nil {
			return "", err
		}
		if !taken {
			return key, nil
		}
	}
	return "", fmt.Errorf("no unique pairing key after %d attempts", maxKeyAttempts)
}

// ClaimUnit validates the claim form input and delegates the atomic
// claim to the repository.
func (s *ProvisioningServiceImpl) ClaimUnit(ctx context.Context, pairingKey, name string, ownerID int64) (*model.Unit, error) {
	if pairingKey == "" || name == "" || ownerID <= 0 {
		return nil, errors.New("validation: empty pairing key/name/owner")
	}
	return s.units.ClaimPending(ctx, pairingKey, name, ownerID)
}
