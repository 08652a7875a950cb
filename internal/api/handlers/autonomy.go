package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/doxalabs/doxa/internal/api/middleware"
	"github.com/doxalabs/doxa/internal/domain"
	"github.com/doxalabs/doxa/internal/graph"
	"github.com/doxalabs/doxa/internal/service"
	"github.com/go-chi/chi/v5"
)

type AutonomyHandler struct {
	manager  *service.GraphManager
	autonomy *service.AutonomyService
}

func NewAutonomyHandler(manager *service.GraphManager, autonomy *service.AutonomyService) *AutonomyHandler {
	return &AutonomyHandler{manager: manager, autonomy: autonomy}
}

// GetAutonomy handles GET /v1/beliefs/{id}/autonomy
func (h *AutonomyHandler) GetAutonomy(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	contextKey := r.URL.Query().Get("context")
	if contextKey == "" {
		contextKey = domain.ContextWildcard
	}
	if !domain.ValidContextKey(contextKey) {
		writeError(w, http.StatusBadRequest, "invalid context key")
		return
	}

	var level domain.AutonomyLevel
	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		if _, ok := g.Get(id); !ok {
			return service.ErrBeliefNotFound
		}
		level = h.autonomy.Level(g, id, contextKey)
		return nil
	})
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to compute autonomy")
		return
	}

	behavior := domain.GetAutonomyBehavior(level)
	writeJSON(w, http.StatusOK, map[string]any{
		"belief_id":             id,
		"context_key":           contextKey,
		"autonomy":              level,
		"requires_confirmation": behavior.RequiresConfirmation,
		"flag_for_review":       behavior.FlagForReview,
	})
}

type aggregateAutonomyRequest struct {
	BeliefIDs  []string `json:"belief_ids"`
	ContextKey string   `json:"context_key,omitempty"`
}

// Aggregate handles POST /v1/autonomy/aggregate
func (h *AutonomyHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req aggregateAutonomyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.BeliefIDs) == 0 {
		writeError(w, http.StatusBadRequest, "belief_ids is required")
		return
	}
	if req.ContextKey == "" {
		req.ContextKey = domain.ContextWildcard
	}
	if !domain.ValidContextKey(req.ContextKey) {
		writeError(w, http.StatusBadRequest, "invalid context key")
		return
	}

	var (
		level domain.AutonomyLevel
		mean  float64
	)
	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		level, mean = h.autonomy.Aggregate(g, req.BeliefIDs, req.ContextKey)
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate autonomy")
		return
	}

	behavior := domain.GetAutonomyBehavior(level)
	writeJSON(w, http.StatusOK, map[string]any{
		"context_key":           req.ContextKey,
		"belief_count":          len(req.BeliefIDs),
		"autonomy":              level,
		"mean_strength":         mean,
		"requires_confirmation": behavior.RequiresConfirmation,
		"flag_for_review":       behavior.FlagForReview,
	})
}

type activateRequest struct {
	ContextKey  string  `json:"context_key,omitempty"`
	MinStrength float64 `json:"min_strength,omitempty"`
	Limit       int     `json:"limit,omitempty"`
}

// Activate handles POST /v1/beliefs/activate
func (h *AutonomyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContextKey == "" {
		req.ContextKey = domain.ContextWildcard
	}
	if !domain.ValidContextKey(req.ContextKey) {
		writeError(w, http.StatusBadRequest, "invalid context key")
		return
	}

	var payload []byte
	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		activated := h.autonomy.Activate(g, req.ContextKey, req.MinStrength, req.Limit)
		if activated == nil {
			activated = []domain.ActivatedBelief{}
		}
		var mErr error
		payload, mErr = json.Marshal(map[string]any{
			"context_key": req.ContextKey,
			"count":       len(activated),
			"beliefs":     activated,
		})
		return mErr
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to activate beliefs")
		return
	}

	writeRawJSON(w, http.StatusOK, payload)
}
