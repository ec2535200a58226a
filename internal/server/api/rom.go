package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/app"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

// ROMHandler exposes the live range-of-motion capture session.
type ROMHandler struct {
	app         *app.App
	store       *store.Store
	defaultSide pose.Side
}

// NewROMHandler creates a handler driving a. Sessions started without a
// side use defaultSide.
func NewROMHandler(a *app.App, s *store.Store, defaultSide pose.Side) *ROMHandler {
	return &ROMHandler{app: a, store: s, defaultSide: defaultSide}
}

// Routes registers the handler under /api/rom.
func (h *ROMHandler) Routes(r chi.Router) {
	r.Post("/sessions", h.start)
	r.Get("/sessions/current", h.current)
	r.Delete("/sessions/current", h.stop)
	r.Post("/sessions/current/next", h.next)
	r.Post("/sessions/current/capture", h.capture)
	r.Post("/sessions/current/skip", h.skip)
	r.Get("/results", h.listResults)
	r.Get("/results/{id}", h.getResult)
}

type startSessionRequest struct {
	Side      string `json:"side"`
	PatientID string `json:"patient_id"`
}

// start handles POST /api/rom/sessions.
func (h *ROMHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	side := h.defaultSide
	if req.Side != "" {
		parsed, err := pose.ParseSide(req.Side)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid side")
			return
		}
		side = parsed
	}

	snap, err := h.app.Start(side, req.PatientID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// current handles GET /api/rom/sessions/current.
func (h *ROMHandler) current(w http.ResponseWriter, r *http.Request) {
	snap := h.app.Current()
	if snap.ID == "" {
		writeError(w, http.StatusNotFound, "No session")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// stop handles DELETE /api/rom/sessions/current.
func (h *ROMHandler) stop(w http.ResponseWriter, r *http.Request) {
	h.app.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (h *ROMHandler) next(w http.ResponseWriter, r *http.Request) {
	h.command(w, h.app.Next)
}

func (h *ROMHandler) capture(w http.ResponseWriter, r *http.Request) {
	h.command(w, h.app.CaptureNow)
}

func (h *ROMHandler) skip(w http.ResponseWriter, r *http.Request) {
	h.command(w, h.app.Skip)
}

func (h *ROMHandler) command(w http.ResponseWriter, fn func() (app.Snapshot, error)) {
	snap, err := fn()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type listResultsResponse struct {
	Results []*store.ROMResult `json:"results"`
}

// listResults handles GET /api/rom/results?patient_id=&limit=.
func (h *ROMHandler) listResults(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.store.ROMResults().ListByPatient(r.URL.Query().Get("patient_id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}
	if results == nil {
		results = []*store.ROMResult{}
	}
	writeJSON(w, http.StatusOK, listResultsResponse{Results: results})
}

// getResult handles GET /api/rom/results/{id}.
func (h *ROMHandler) getResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.ROMResults().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Result not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get result")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
