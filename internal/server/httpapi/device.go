package httpapi

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
	"github.com/fwerner/plantguard/internal/service"
)

// deviceHandler processes one protocol call and returns the success
// payload or a taxonomy error.
type deviceHandler func(r *http.Request) (envelope, error)

// protocol wraps a device handler with the shared envelope, metrics, and
// audit plumbing. Every call through here produces exactly one audit
// entry, success or failure.
func (s *Server) protocol(endpoint string, successLevel model.Level, h deviceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := h(r)

		var body []byte
		var lvl model.Level
		outcome := "ok"
		if err != nil {
			code := errorCode(err)
			if code == codeInternalError {
				s.log.Error("protocol call failed",
					zap.String("endpoint", endpoint),
					zap.Error(err),
				)
			}
			body, lvl, outcome = failureBody(code), failureLevel(code), code
		} else {
			if payload == nil {
				payload = envelope{}
			}
			payload["status"] = "ok"
			body, lvl = marshalEnvelope(payload), successLevel
		}

		s.metrics.Observe(endpoint, outcome)
		s.audit.Record(r.Context(), lvl, r.PostFormValue("identity_key"),
			r.URL.RequestURI(), auditRequest(r), string(body))
		writeJSON(w, body)
	}
}

// auditRequest serializes the submitted form fields for the audit trail.
// File contents are not re-serialized, only regular fields.
func auditRequest(r *http.Request) string {
	var form url.Values
	switch {
	case r.MultipartForm != nil:
		form = url.Values(r.MultipartForm.Value)
	case r.PostForm != nil:
		form = r.PostForm
	}
	return form.Encode()
}

func (s *Server) handleRegisterUnit(r *http.Request) (envelope, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errs.ErrBadRequest
	}
	publicKey := r.PostFormValue("public_key")
	if publicKey == "" {
		return nil, errs.ErrBadRequest
	}
	p, err := s.provisioning.RegisterNewUnit(r.Context(), publicKey)
	if err != nil {
		return nil, err
	}
	return envelope{
		"identity_key": p.IdentityKey,
		"pairing_key":  p.PairingKey,
	}, nil
}

func (s *Server) handleGetChallenge(r *http.Request) (envelope, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errs.ErrBadRequest
	}
	identityKey := r.PostFormValue("identity_key")
	if identityKey == "" {
		return nil, errs.ErrBadRequest
	}
	nonce, err := s.challenges.Issue(r.Context(), identityKey)
	if err != nil {
		return nil, err
	}
	return envelope{"challenge": nonce}, nil
}

func (s *Server) handleSubmitTelemetry(r *http.Request) (envelope, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errs.ErrBadRequest
	}
	identityKey := r.PostFormValue("identity_key")
	signature := r.PostFormValue("signed_challenge")
	timestamp := r.PostFormValue("timestamp")
	if identityKey == "" || signature == "" || timestamp == "" {
		return nil, errs.ErrBadRequest
	}
	in := service.MeasurementInput{
		Timestamp:      timestamp,
		Temperature:    r.PostFormValue("temperature"),
		AirHumidity:    r.PostFormValue("air_humidity"),
		GroundHumidity: r.PostFormValue("ground_humidity"),
		Brightness:     r.PostFormValue("brightness"),
		FillLevel:      r.PostFormValue("fill_level"),
	}
	if err := s.ingest.SubmitMeasurement(r.Context(), identityKey, signature, in); err != nil {
		return nil, err
	}
	return envelope{}, nil
}

func (s *Server) handleSubmitAsset(r *http.Request) (envelope, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return nil, errs.ErrBadRequest
	}
	identityKey := r.PostFormValue("identity_key")
	signature := r.PostFormValue("signed_challenge")
	timestamp := r.PostFormValue("timestamp")
	if identityKey == "" || signature == "" || timestamp == "" {
		return nil, errs.ErrBadRequest
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, errs.ErrBadRequest
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errs.ErrBadRequest
	}
	if err := s.ingest.SubmitImage(r.Context(), identityKey, signature, timestamp, data); err != nil {
		return nil, err
	}
	return envelope{}, nil
}

func (s *Server) handlePollTask(r *http.Request) (envelope, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errs.ErrBadRequest
	}
	identityKey := r.PostFormValue("identity_key")
	signature := r.PostFormValue("signed_challenge")
	if identityKey == "" || signature == "" {
		return nil, errs.ErrBadRequest
	}
	task, err := s.tasks.Poll(r.Context(), identityKey, signature)
	if err != nil {
		return nil, err
	}
	return envelope{
		"watering_task_id":     task.ID,
		"watering_task_amount": task.Amount,
	}, nil
}

func (s *Server) handleAckTask(r *http.Request) (envelope, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errs.ErrBadRequest
	}
	identityKey := r.PostFormValue("identity_key")
	signature := r.PostFormValue("signed_challenge")
	taskIDRaw := r.PostFormValue("watering_task_id")
	if identityKey == "" || signature == "" || taskIDRaw == "" {
		return nil, errs.ErrBadRequest
	}
	taskID, err := strconv.ParseInt(taskIDRaw, 10, 64)
	if err != nil {
		return nil, errs.ErrBadRequest
	}
	if err := s.tasks.Acknowledge(r.Context(), identityKey, signature, taskID); err != nil {
		return nil, err
	}
	return envelope{}, nil
}
