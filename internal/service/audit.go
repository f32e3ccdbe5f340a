package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/repository"
)

// AuditService appends protocol exchanges to the communication log.
type AuditService interface {
	// Record is fire and forget: a failed write is logged but never
	// masks the primary response.
	Record(ctx context.Context, level model.Level, identityKey, requestURI, request, response string)
}

type AuditServiceImpl struct {
	logs repository.LogRepository
	log  *zap.Logger
}

// NewAuditService constructs AuditService.
func NewAuditService(logs repository.LogRepository, log *zap.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{logs: logs, log: log}
}

// Record appends one entry. The write survives request cancellation so
// a dropped connection still leaves an audit trail.
func (s *AuditServiceImpl) Record(ctx context.Context, level model.Level, identityKey, requestURI, request, response string) {
	e := &model.LogEntry{
		Level:           level,
		UnitIdentityKey: identityKey,
		RequestURI:      requestURI,
		Request:         request,
		Response:        response,
	}
	if err := s.logs.Append(context.WithoutCancel(ctx), e); err != nil {
		s.log.Error("communication log append failed",
			zap.Error(err),
			zap.String("request_uri", requestURI),
		)
	}
}
