package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/scoring"
)

// ScoringHandler serves the scoring and quota service over HTTP.
// Its responses are what scoring.Client expects.
type ScoringHandler struct {
	scorer scoring.Submitter
}

// NewScoringHandler creates a handler backed by scorer.
func NewScoringHandler(scorer scoring.Submitter) *ScoringHandler {
	return &ScoringHandler{scorer: scorer}
}

// Routes registers the handler at scoring.SubmissionsPath.
func (h *ScoringHandler) Routes(r chi.Router) {
	r.Post(scoring.SubmissionsPath, h.submit)
}

// submit handles POST /api/scoring/submissions.
func (h *ScoringHandler) submit(w http.ResponseWriter, r *http.Request) {
	var sub scoring.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, scoring.ErrorBody{
			Code:    failure.CodeInvalidInput,
			Message: "invalid JSON",
		})
		return
	}

	res, err := h.scorer.Submit(r.Context(), &sub)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
