package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/store"
)

// ExerciseHandler lists the exercise catalog.
type ExerciseHandler struct {
	store *store.Store
}

// NewExerciseHandler creates a new ExerciseHandler with the given store.
func NewExerciseHandler(s *store.Store) *ExerciseHandler {
	return &ExerciseHandler{store: s}
}

// Routes registers the handler under /api/exercises.
func (h *ExerciseHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

type listExercisesResponse struct {
	Exercises []*store.Exercise `json:"exercises"`
}

func (h *ExerciseHandler) list(w http.ResponseWriter, r *http.Request) {
	exercises, err := h.store.Exercises().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exercises")
		return
	}
	if exercises == nil {
		exercises = []*store.Exercise{}
	}
	writeJSON(w, http.StatusOK, listExercisesResponse{Exercises: exercises})
}

func (h *ExerciseHandler) get(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.Exercises().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
