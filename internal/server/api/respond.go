// Package api provides the HTTP API handlers for the ShoulderCare service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/app"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure writes err with the status that matches its code. Typed
// failures use the same body as the scoring service.
func writeFailure(w http.ResponseWriter, err error) {
	var fe *failure.Error
	if errors.As(err, &fe) {
		body := scoring.ErrorBody{Code: fe.Code, Message: fe.Message}
		if !fe.ResetAt.IsZero() {
			reset := fe.ResetAt
			body.ResetAt = &reset
		}
		writeJSON(w, StatusFor(fe.Code), body)
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, app.ErrNoSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrSessionActive):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("api: request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// StatusFor maps a failure code to an HTTP status.
func StatusFor(code failure.Code) int {
	switch code {
	case failure.CodeInvalidInput:
		return http.StatusBadRequest
	case failure.CodeCameraDenied:
		return http.StatusForbidden
	case failure.CodeModelLoadFailed:
		return http.StatusServiceUnavailable
	case failure.CodeDetectionCoverageLow, failure.CodeSamplingFailed, failure.CodeExerciseNotSupported:
		return http.StatusUnprocessableEntity
	case failure.CodeWeeklyLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
