package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dokzlo13/huemotion/internal/animation"
	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/script"
)

// Error codes
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeInvalid     = "invalid_animation"
	ErrCodeUnavailable = "unavailable"
	ErrCodeTimeout     = "timeout"
	ErrCodeTransport   = "transport_error"
)

// Error is the JSON body of every error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v) //nolint:errcheck // client may be gone
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeCommandError maps an engine result error to a status code.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, animation.ErrInvalidRange),
		errors.Is(err, animation.ErrInvalidPeriod),
		errors.Is(err, animation.ErrNoSteps),
		errors.Is(err, animation.ErrNoDevices),
		errors.Is(err, animation.ErrUnknownKind),
		errors.Is(err, script.ErrInvalidName),
		errors.Is(err, script.ErrInvalidScript):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeInvalid, err.Error())
	case errors.Is(err, animation.ErrScriptUnavailable),
		errors.Is(err, engine.ErrEngineStopped):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "engine did not answer in time")
	default:
		writeError(w, http.StatusBadGateway, ErrCodeTransport, err.Error())
	}
}
