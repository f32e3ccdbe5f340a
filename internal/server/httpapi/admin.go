package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
)

// adminAuth guards the operator endpoints with an HS256 bearer token
// issued by the dashboard. The token subject is the operator account id.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operatorID, err := s.operatorFromRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write(marshalEnvelope(envelope{
				"status":        "failed",
				"error_code":    "unauthorized",
				"error_message": "missing or invalid bearer token",
			}))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyOperatorID, operatorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// operatorFromRequest extracts "Authorization: Bearer <JWT>", verifies
// HS256, and returns the subject as an account id.
func (s *Server) operatorFromRequest(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) < 7 || !strings.EqualFold(raw[:7], "bearer ") {
		return 0, errors.New("no bearer token")
	}
	tok := strings.TrimSpace(raw[7:])

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.adminJWTKey, nil
	})
	if err != nil || !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return 0, errors.New("token expired or not valid yet")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("bad subject")
	}
	return id, nil
}

func operatorFromCtx(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxKeyOperatorID).(int64)
	return id
}

// handleClaimUnit converts a pending unit into a full unit owned by the
// calling operator. This is the dashboard's half of provisioning.
func (s *Server) handleClaimUnit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeAdminError(w, "bad-request", "malformed form body")
		return
	}
	pairingKey := r.PostFormValue("pairing_key")
	name := r.PostFormValue("name")
	if pairingKey == "" || name == "" {
		s.writeAdminError(w, "bad-request", "pairing_key and name are required")
		return
	}

	unit, err := s.provisioning.ClaimUnit(r.Context(), pairingKey, name, operatorFromCtx(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			s.writeAdminError(w, "not-found", "no pending unit with this pairing key")
		case errors.Is(err, errs.ErrAlreadyExists):
			s.writeAdminError(w, "duplicate-key", "identity or public key already claimed")
		default:
			s.log.Error("claim unit failed", zap.Error(err))
			s.writeAdminError(w, "internal-error", "internal server error")
		}
		return
	}

	body := marshalEnvelope(envelope{"status": "ok", "unit_id": unit.ID, "name": unit.Name})
	s.audit.Record(r.Context(), model.LevelMajorInfo, unit.IdentityKey,
		r.URL.RequestURI(), auditRequest(r), string(body))
	writeJSON(w, body)
}

// handleAuthorizeTask releases a pending watering task for dispatch.
func (s *Server) handleAuthorizeTask(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeAdminError(w, "bad-request", "malformed form body")
		return
	}
	taskID, err := strconv.ParseInt(r.PostFormValue("watering_task_id"), 10, 64)
	if err != nil || taskID <= 0 {
		s.writeAdminError(w, "bad-request", "watering_task_id is required")
		return
	}
	if err := s.tasks.Authorize(r.Context(), taskID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.writeAdminError(w, "not-found", "no authorizable task with this id")
			return
		}
		s.log.Error("authorize task failed", zap.Error(err))
		s.writeAdminError(w, "internal-error", "internal server error")
		return
	}
	writeJSON(w, marshalEnvelope(envelope{"status": "ok"}))
}

func (s *Server) writeAdminError(w http.ResponseWriter, code, message string) {
	writeJSON(w, marshalEnvelope(envelope{
		"status":        "failed",
		"error_code":    code,
		"error_message": message,
	}))
}
