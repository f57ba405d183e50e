package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/coursegen/worldmodel/internal/service"
	"github.com/coursegen/worldmodel/internal/store"
	"github.com/go-chi/chi/v5"
)

type SubjectHandler struct {
	subjects domain.SubjectStore
	network  *service.BeliefNetwork
}

func NewSubjectHandler(subjects domain.SubjectStore, network *service.BeliefNetwork) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, network: network}
}

type createSubjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (h *SubjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	subject := &domain.Subject{ID: req.ID, Name: req.Name}
	if err := h.subjects.Create(r.Context(), subject); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create subject")
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (h *SubjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	subject, err := h.subjects.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subject not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load subject")
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

// Belief resolves the subject's current belief. A subject with no claims
// returns an empty belief, not an error.
func (h *SubjectHandler) Belief(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	belief, err := h.network.CurrentBelief(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve belief")
		return
	}
	writeJSON(w, http.StatusOK, belief)
}

// Explain returns the full claim trace for a subject.
func (h *SubjectHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	explanation, err := h.network.Explain(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to explain subject")
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}
