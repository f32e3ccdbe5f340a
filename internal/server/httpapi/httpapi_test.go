package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fwerner/plantguard/internal/metrics"
	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/service"
)

type fakeProvisioning struct {
	pending *model.PendingUnit
	regErr  error

	claimed  *model.Unit
	claimErr error
}

var _ service.ProvisioningService = (*fakeProvisioning)(nil)

func (f *fakeProvisioning) RegisterNewUnit(context.Context, string) (*model.PendingUnit, error) {
	return f.pending, f.regErr
}

func (f *fakeProvisioning) ClaimUnit(context.Context, string, string, int64) (*model.Unit, error) {
	return f.claimed, f.claimErr
}

type fakeChallenges struct {
	nonce    string
	issueErr error
}

var _ service.ChallengeService = (*fakeChallenges)(nil)

func (f *fakeChallenges) Issue(context.Context, string) (string, error) {
	return f.nonce, f.issueErr
}

func (f *fakeChallenges) Verify(context.Context, *model.Unit, string) (bool, error) {
	return false, nil
}

type fakeIngest struct {
	measurementErr error
	imageErr       error

	gotInput  service.MeasurementInput
	submitted bool
	gotImage  []byte
}

var _ service.IngestService = (*fakeIngest)(nil)

func (f *fakeIngest) SubmitMeasurement(_ context.Context, _, _ string, in service.MeasurementInput) error {
	f.gotInput, f.submitted = in, true
	return f.measurementErr
}

func (f *fakeIngest) SubmitImage(_ context.Context, _, _, _ string, data []byte) error {
	f.gotImage = data
	return f.imageErr
}

type fakeTasks struct {
	pollOut *model.WateringTask
	pollErr error

	ackErr       error
	authorizeErr error
	authorizedID int64
}

var _ service.TaskService = (*fakeTasks)(nil)

func (f *fakeTasks) Poll(context.Context, string, string) (*model.WateringTask, error) {
	return f.pollOut, f.pollErr
}

func (f *fakeTasks) Acknowledge(context.Context, string, string, int64) error { return f.ackErr }

func (f *fakeTasks) ScheduleWatering(_ context.Context, unit *model.Unit, amount int64) (*model.WateringTask, error) {
	return &model.WateringTask{ID: 1, UnitID: unit.ID, Amount: amount}, nil
}

func (f *fakeTasks) Authorize(_ context.Context, taskID int64) error {
	f.authorizedID = taskID
	return f.authorizeErr
}

type auditEntry struct {
	level       model.Level
	identityKey string
	requestURI  string
	request     string
	response    string
}

type fakeAudit struct{ entries []auditEntry }

var _ service.AuditService = (*fakeAudit)(nil)

func (f *fakeAudit) Record(_ context.Context, level model.Level, identityKey, requestURI, request, response string) {
	f.entries = append(f.entries, auditEntry{level, identityKey, requestURI, request, response})
}

type testEnv struct {
	server       *httptest.Server
	provisioning *fakeProvisioning
	challenges   *fakeChallenges
	ingest       *fakeIngest
	tasks        *fakeTasks
	audit        *fakeAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		provisioning: &fakeProvisioning{},
		challenges:   &fakeChallenges{},
		ingest:       &fakeIngest{},
		tasks:        &fakeTasks{},
		audit:        &fakeAudit{},
	}
	srv := New(Config{
		Log:          zap.NewNop(),
		Provisioning: env.provisioning,
		Challenges:   env.challenges,
		Ingest:       env.ingest,
		Tasks:        env.tasks,
		Audit:        env.audit,
		Metrics:      metrics.New(prometheus.NewRegistry()),
		AdminJWTKey:  []byte("test-admin-key"),
	})
	env.server = httptest.NewServer(srv.Router())
	t.Cleanup(env.server.Close)
	return env
}

// postForm posts form values and decodes the JSON envelope. Protocol
// endpoints always answer 200.
func (e *testEnv) postForm(t *testing.T, path string, form url.Values) map[string]any {
	t.Helper()
	resp, err := http.Post(e.server.URL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
