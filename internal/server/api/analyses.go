package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/analysis"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/app"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

// AnalysisHandler runs batch clip analyses.
type AnalysisHandler struct {
	analyzer *app.Analyzer
}

// NewAnalysisHandler creates a handler backed by analyzer.
func NewAnalysisHandler(analyzer *app.Analyzer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer}
}

// Routes registers the handler under /api/analyses.
func (h *AnalysisHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/resubmit", h.resubmit)
}

type createAnalysisRequest struct {
	VideoID    string `json:"video_id"`
	ExerciseID string `json:"exercise_id"`
	PatientID  string `json:"patient_id"`
	ClipPath   string `json:"clip_path"`
}

// analysisFailure is returned when a run was recorded but did not complete.
type analysisFailure struct {
	Code     failure.Code    `json:"code"`
	Message  string          `json:"message"`
	ResetAt  *time.Time      `json:"reset_at,omitempty"`
	Analysis *store.Analysis `json:"analysis"`
}

type listAnalysesResponse struct {
	Analyses []*store.Analysis `json:"analyses"`
}

// create handles POST /api/analyses. The run completes before the response is written.
func (h *AnalysisHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	rec, err := h.analyzer.Run(r.Context(), analysis.Request{
		VideoID:    req.VideoID,
		ExerciseID: req.ExerciseID,
		PatientID:  req.PatientID,
		ClipPath:   req.ClipPath,
	}, nil)
	h.respond(w, http.StatusCreated, rec, err)
}

// resubmit handles POST /api/analyses/{id}/resubmit.
func (h *AnalysisHandler) resubmit(w http.ResponseWriter, r *http.Request) {
	rec, err := h.analyzer.Resubmit(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}
	h.respond(w, http.StatusOK, rec, err)
}

func (h *AnalysisHandler) respond(w http.ResponseWriter, status int, rec *store.Analysis, err error) {
	if err == nil {
		writeJSON(w, status, rec)
		return
	}

	var fe *failure.Error
	if rec == nil || !errors.As(err, &fe) {
		writeFailure(w, err)
		return
	}

	body := analysisFailure{Code: fe.Code, Message: fe.Message, Analysis: rec}
	if !fe.ResetAt.IsZero() {
		reset := fe.ResetAt
		body.ResetAt = &reset
	}
	writeJSON(w, StatusFor(fe.Code), body)
}

// get handles GET /api/analyses/{id}.
func (h *AnalysisHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.analyzer.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get analysis")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// list handles GET /api/analyses?limit=.
func (h *AnalysisHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := h.analyzer.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}
	if recs == nil {
		recs = []*store.Analysis{}
	}
	writeJSON(w, http.StatusOK, listAnalysesResponse{Analyses: recs})
}
