package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/doxalabs/doxa/internal/api/middleware"
	"github.com/doxalabs/doxa/internal/domain"
	"github.com/doxalabs/doxa/internal/graph"
	"github.com/doxalabs/doxa/internal/service"
	"github.com/go-chi/chi/v5"
)

type LearningHandler struct {
	manager  *service.GraphManager
	learning *service.LearningService
	events   domain.EventStore
}

func NewLearningHandler(manager *service.GraphManager, learning *service.LearningService, events domain.EventStore) *LearningHandler {
	return &LearningHandler{manager: manager, learning: learning, events: events}
}

type recordOutcomeRequest struct {
	ContextKey         string  `json:"context_key"`
	Outcome            string  `json:"outcome"`
	Difficulty         int     `json:"difficulty,omitempty"`
	IsEndMemory        bool    `json:"is_end_memory,omitempty"`
	EmotionalIntensity float64 `json:"emotional_intensity,omitempty"`
}

// RecordOutcome handles POST /v1/beliefs/{id}/outcome
func (h *LearningHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req recordOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ContextKey == "" {
		req.ContextKey = domain.ContextWildcard
	}

	update := domain.UpdateRequest{
		BeliefID:           chi.URLParam(r, "id"),
		ContextKey:         req.ContextKey,
		Outcome:            domain.Outcome(req.Outcome),
		Difficulty:         req.Difficulty,
		IsEndMemory:        req.IsEndMemory,
		EmotionalIntensity: req.EmotionalIntensity,
	}

	var res *domain.UpdateResult
	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		var uErr error
		res, uErr = h.learning.Update(r.Context(), g, update)
		if uErr == nil && !res.Blocked() {
			h.manager.MarkDirty(tenant.ID)
		}
		return uErr
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBeliefNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidOutcome), errors.Is(err, service.ErrInvalidContextKey):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to record outcome")
		}
		return
	}

	if res.Blocked() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Challenge handles POST /v1/beliefs/{id}/challenge
func (h *LearningHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")

	var res *domain.UpdateResult
	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		var cErr error
		res, cErr = h.learning.Challenge(r.Context(), g, id)
		if cErr == nil && !res.Blocked() {
			h.manager.MarkDirty(tenant.ID)
		}
		return cErr
	})
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to challenge belief")
		return
	}

	if res.Blocked() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListEvents handles GET /v1/beliefs/{id}/events
func (h *LearningHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		if _, ok := g.Get(id); !ok {
			return service.ErrBeliefNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	if h.events == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"belief_id": id,
			"count":     0,
			"events":    []any{},
		})
		return
	}

	events, err := h.events.ListByBelief(r.Context(), tenant.ID, id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []domain.StrengthUpdateEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"belief_id": id,
		"count":     len(events),
		"events":    events,
	})
}
