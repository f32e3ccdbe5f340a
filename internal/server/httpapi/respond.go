package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fwerner/plantguard/internal/errs"
	"github.com/fwerner/plantguard/internal/model"
)

// envelope is the JSON response body shared by all protocol endpoints.
type envelope map[string]any

// Wire error codes. Devices key deterministic retry logic off these, so
// the vocabulary is fixed.
const (
	codeBadRequest         = "bad-request"
	codeDuplicateKey       = "duplicate-key"
	codeMalformedKey       = "malformed-key"
	codeUnitNotFound       = "unit-not-found"
	codeAuthFailed         = "auth-failed"
	codeBadTimestamp       = "bad-timestamp"
	codeDuplicateTimestamp = "duplicate-timestamp"
	codeNotAnImage         = "not-an-image"
	codeNoTaskAvailable    = "no-task-available"
	codeAckFailed          = "ack-failed"
	codeInternalError      = "internal-error"
)

// Audit severity of successful calls, tiered by endpoint importance.
const (
	levelRegisterOK  = model.LevelMajorInfo
	levelChallengeOK = model.LevelMinorInfo
	levelIngestOK    = model.LevelInfo
	levelAckOK       = model.LevelMajorInfo
)

var errorMessages = map[string]string{
	codeBadRequest:         "missing or malformed request field",
	codeDuplicateKey:       "public key already registered",
	codeMalformedKey:       "public key could not be parsed",
	codeUnitNotFound:       "unknown identity key",
	codeAuthFailed:         "challenge verification failed",
	codeBadTimestamp:       "timestamp could not be resolved to an instant",
	codeDuplicateTimestamp: "a record with this timestamp already exists",
	codeNotAnImage:         "uploaded data is not a recognized image",
	codeNoTaskAvailable:    "no watering task available",
	codeAckFailed:          "task could not be acknowledged",
	codeInternalError:      "internal server error",
}

// errorCode maps a service error onto the wire vocabulary. Anything
// outside the fixed taxonomy becomes an opaque internal error.
func errorCode(err error) string {
	switch {
	case errors.Is(err, errs.ErrBadRequest):
		return codeBadRequest
	case errors.Is(err, errs.ErrMalformedKey):
		return codeMalformedKey
	case errors.Is(err, errs.ErrAlreadyExists):
		return codeDuplicateKey
	case errors.Is(err, errs.ErrNotFound):
		return codeUnitNotFound
	case errors.Is(err, errs.ErrAuthFailed):
		return codeAuthFailed
	case errors.Is(err, errs.ErrBadTimestamp):
		return codeBadTimestamp
	case errors.Is(err, errs.ErrDuplicateTimestamp):
		return codeDuplicateTimestamp
	case errors.Is(err, errs.ErrNotAnImage):
		return codeNotAnImage
	case errors.Is(err, errs.ErrNoTaskAvailable):
		return codeNoTaskAvailable
	case errors.Is(err, errs.ErrAckFailed):
		return codeAckFailed
	default:
		return codeInternalError
	}
}

// failureLevel rates identification and authentication failures more
// severe than routine bad requests.
func failureLevel(code string) model.Level {
	switch code {
	case codeUnitNotFound, codeAuthFailed, codeInternalError:
		return model.LevelMajorError
	default:
		return model.LevelError
	}
}

func marshalEnvelope(e envelope) []byte {
	body, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"status":"failed","error_code":"internal-error","error_message":"internal server error"}`)
	}
	return body
}

func failureBody(code string) []byte {
	return marshalEnvelope(envelope{
		"status":        "failed",
		"error_code":    code,
		"error_message": errorMessages[code],
	})
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
