package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/coursegen/worldmodel/internal/service"
)

type ClaimHandler struct {
	network *service.BeliefNetwork
}

func NewClaimHandler(network *service.BeliefNetwork) *ClaimHandler {
	return &ClaimHandler{network: network}
}

type addClaimRequest struct {
	SubjectID  string     `json:"subject_id"`
	Body       string     `json:"body"`
	Evidence   []string   `json:"evidence,omitempty"`
	CreatedBy  string     `json:"created_by,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	AssertedAt *time.Time `json:"asserted_at,omitempty"`
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req addClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	evidence := make([]domain.Citation, 0, len(req.Evidence))
	for _, ref := range req.Evidence {
		if ref == "" {
			continue
		}
		evidence = append(evidence, domain.Citation{Ref: ref})
	}

	result, err := h.network.AddClaim(r.Context(), service.AddClaimInput{
		SubjectID:  req.SubjectID,
		Body:       req.Body,
		Evidence:   evidence,
		CreatedBy:  req.CreatedBy,
		Confidence: req.Confidence,
		AssertedAt: req.AssertedAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubjectMissing),
			errors.Is(err, service.ErrBodyEmpty),
			errors.Is(err, service.ErrConfidenceOutOfRange):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubjectUnknown):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrDuplicateClaim):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to add claim")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *ClaimHandler) HighConfidence(w http.ResponseWriter, r *http.Request) {
	min := 0.7
	if raw := r.URL.Query().Get("min_confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_confidence")
			return
		}
		min = parsed
	}

	claims, err := h.network.HighConfidenceClaims(r.Context(), min)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims, "count": len(claims)})
}

func (h *ClaimHandler) Controversial(w http.ResponseWriter, r *http.Request) {
	maxConfidence := 0.6
	if raw := r.URL.Query().Get("max_confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid max_confidence")
			return
		}
		maxConfidence = parsed
	}

	minContradictions := 1
	if raw := r.URL.Query().Get("min_contradictions"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_contradictions")
			return
		}
		minContradictions = parsed
	}

	claims, err := h.network.ControversialClaims(r.Context(), maxConfidence, minContradictions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims, "count": len(claims)})
}
