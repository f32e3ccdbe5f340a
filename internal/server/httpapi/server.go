// Package httpapi exposes the device protocol and operator endpoints over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fwerner/plantguard/internal/metrics"
	"github.com/fwerner/plantguard/internal/service"
)

// Config collects the dependencies of the HTTP server.
type Config struct {
	Log            *zap.Logger
	Provisioning   service.ProvisioningService
	Challenges     service.ChallengeService
	Ingest         service.IngestService
	Tasks          service.TaskService
	Audit          service.AuditService
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	AdminJWTKey    []byte
	MaxUploadBytes int64
}

// Server wires services into HTTP handlers.
type Server struct {
	log            *zap.Logger
	provisioning   service.ProvisioningService
	challenges     service.ChallengeService
	ingest         service.IngestService
	tasks          service.TaskService
	audit          service.AuditService
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	adminJWTKey    []byte
	maxUploadBytes int64
}

// New constructs a Server with injected services.
func New(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Server{
		log:            cfg.Log,
		provisioning:   cfg.Provisioning,
		challenges:     cfg.Challenges,
		ingest:         cfg.Ingest,
		tasks:          cfg.Tasks,
		audit:          cfg.Audit,
		metrics:        cfg.Metrics,
		metricsHandler: cfg.MetricsHandler,
		adminJWTKey:    cfg.AdminJWTKey,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Router builds the route tree. Device endpoints are plain POST with
// form-encoded bodies; the response is always a JSON envelope with a
// status field, so devices never have to interpret HTTP status codes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.logging, s.recoverer)

	r.Route("/psucontrol", func(r chi.Router) {
		r.Post("/register-unit", s.protocol("register-unit", levelRegisterOK, s.handleRegisterUnit))
		r.Post("/get-challenge", s.protocol("get-challenge", levelChallengeOK, s.handleGetChallenge))
		r.Post("/submit-telemetry", s.protocol("submit-telemetry", levelIngestOK, s.handleSubmitTelemetry))
		r.Post("/submit-asset", s.protocol("submit-asset", levelIngestOK, s.handleSubmitAsset))
		r.Post("/poll-task", s.protocol("poll-task", levelIngestOK, s.handlePollTask))
		r.Post("/ack-task", s.protocol("ack-task", levelAckOK, s.handleAckTask))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Post("/claim-unit", s.handleClaimUnit)
		r.Post("/authorize-task", s.handleAuthorizeTask)
	})

	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
	return r
}
