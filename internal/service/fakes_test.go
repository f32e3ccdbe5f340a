package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/repository"
)

type fakeUnitRepo struct {
	byIdentity map[string]*model.Unit

	identityTaken map[string]bool
	pairingTaken  map[string]bool

	created          *model.PendingUnit
	createPendingErr error

	sweepCutoff time.Time
	sweepN      int64
	sweepErr    error

	claimed  *model.Unit
	claimErr error
}

var _ repository.UnitRepository = (*fakeUnitRepo)(nil)

func (f *fakeUnitRepo) FindByIdentityKey(_ context.Context, identityKey string) (*model.Unit, error) {
	u, ok := f.byIdentity[identityKey]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u, nil
}

func (f *fakeUnitRepo) CreatePending(_ context.Context, p *model.PendingUnit) error {
	if f.createPendingErr != nil {
		return f.createPendingErr
	}
	p.ID = 1
	p.CreatedAt = time.Now()
	f.created = p
	return nil
}

func (f *fakeUnitRepo) DeletePendingOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.sweepCutoff = cutoff
	return f.sweepN, f.sweepErr
}

func (f *fakeUnitRepo) IdentityKeyExists(_ context.Context, identityKey string) (bool, error) {
	return f.identityTaken[identityKey], nil
}

func (f *fakeUnitRepo) PairingKeyExists(_ context.Context, pairingKey string) (bool, error) {
	return f.pairingTaken[pairingKey], nil
}

func (f *fakeUnitRepo) ClaimPending(_ context.Context, pairingKey, name string, ownerID int64) (*model.Unit, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	u := *f.claimed
	u.Name, u.OwnerID = name, ownerID
	return &u, nil
}

type fakeChallengeRepo struct {
	nonce    string
	issuedAt time.Time
	has      bool

	issueErr   error
	consumeErr error
}

var _ repository.ChallengeRepository = (*fakeChallengeRepo)(nil)

func (f *fakeChallengeRepo) Issue(_ context.Context, _ int64, nonce string) error {
	if f.issueErr != nil {
		return f.issueErr
	}
	f.nonce, f.issuedAt, f.has = nonce, time.Now(), true
	return nil
}

func (f *fakeChallengeRepo) Consume(_ context.Context, _ int64) (string, time.Time, error) {
	if f.consumeErr != nil {
		return "", time.Time{}, f.consumeErr
	}
	if !f.has {
		return "", time.Time{}, errs.ErrNotFound
	}
	f.has = false
	return f.nonce, f.issuedAt, nil
}

// fakeAuth replaces ChallengeService where only the verdict matters.
type fakeAuth struct {
	ok          bool
	err         error
	verifyCalls int
}

var _ ChallengeService = (*fakeAuth)(nil)

func (f *fakeAuth) Issue(context.Context, string) (string, error) { return "nonce", nil }

func (f *fakeAuth) Verify(context.Context, *model.Unit, string) (bool, error) {
	f.verifyCalls++
	return f.ok, f.err
}

type fakeMeasurementRepo struct {
	inserted  []*model.Measurement
	insertErr error

	latest    *model.Measurement
	latestErr error
}

var _ repository.MeasurementRepository = (*fakeMeasurementRepo)(nil)

func (f *fakeMeasurementRepo) Insert(_ context.Context, m *model.Measurement) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeMeasurementRepo) LatestForUnit(context.Context, int64) (*model.Measurement, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

type fakeImageRepo struct {
	inserted  []*model.Image
	insertErr error
}

var _ repository.ImageRepository = (*fakeImageRepo)(nil)

func (f *fakeImageRepo) Insert(_ context.Context, img *model.Image) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, img)
	return nil
}

type fakeTaskRepo struct {
	pollOut *model.WateringTask
	pollErr error

	ackUnitID, ackTaskID int64
	ackErr               error

	createdStatus model.TaskStatus
	createdCancel []model.TaskStatus
	createdAmount int64
	createErr     error

	authorizedID int64
	authorizeErr error
}

var _ repository.TaskRepository = (*fakeTaskRepo)(nil)

func (f *fakeTaskRepo) Poll(context.Context, int64, time.Duration) (*model.WateringTask, error) {
	return f.pollOut, f.pollErr
}

func (f *fakeTaskRepo) Acknowledge(_ context.Context, unitID, taskID int64) error {
	f.ackUnitID, f.ackTaskID = unitID, taskID
	return f.ackErr
}

func (f *fakeTaskRepo) CreateSuperseding(_ context.Context, unitID, amount int64, status model.TaskStatus, cancel []model.TaskStatus) (*model.WateringTask, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdStatus, f.createdCancel, f.createdAmount = status, cancel, amount
	return &model.WateringTask{ID: 1, UnitID: unitID, Amount: amount, Status: status, CreatedAt: time.Now()}, nil
}

func (f *fakeTaskRepo) Authorize(_ context.Context, taskID int64) error {
	f.authorizedID = taskID
	return f.authorizeErr
}

type fakePlanner struct{ notified []model.Unit }

func (f *fakePlanner) Notify(unit model.Unit) { f.notified = append(f.notified, unit) }

// testKeyPair generates an RSA key and the PEM encoding of its public half.
func testKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func signChallenge(t *testing.T, key *rsa.PrivateKey, nonce string) string {
	t.Helper()
	digest := sha256.Sum256([]byte(nonce))
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
	require.NoError(t, err)
	return base64.URLEncoding.EncodeToString(sig)
}
