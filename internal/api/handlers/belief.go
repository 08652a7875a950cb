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

var errBeliefExists = errors.New("belief already exists")

type BeliefHandler struct {
	manager *service.GraphManager
}

func NewBeliefHandler(manager *service.GraphManager) *BeliefHandler {
	return &BeliefHandler{manager: manager}
}

type createBeliefRequest struct {
	ID                    string   `json:"id"`
	Statement             string   `json:"statement"`
	Category              string   `json:"category"`
	Strength              *float64 `json:"strength,omitempty"`
	DefaultContext        string   `json:"default_context,omitempty"`
	InvalidationThreshold float64  `json:"invalidation_threshold,omitempty"`
}

func (h *BeliefHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createBeliefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !domain.ValidCategory(req.Category) {
		writeError(w, http.StatusBadRequest, "invalid category: must be moral, competence, technical, preference, or identity")
		return
	}

	var opts []domain.BeliefOption
	if req.Strength != nil {
		opts = append(opts, domain.WithStrength(*req.Strength))
	}
	if req.DefaultContext != "" {
		opts = append(opts, domain.WithDefaultContext(req.DefaultContext))
	}
	if req.InvalidationThreshold > 0 {
		opts = append(opts, domain.WithInvalidationThreshold(req.InvalidationThreshold))
	}

	b, err := domain.NewBelief(req.ID, req.Statement, domain.Category(req.Category), opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload []byte
	err = h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		if _, exists := g.Get(b.ID); exists {
			return errBeliefExists
		}
		g.Add(b)
		if err := h.manager.Save(r.Context(), tenant.ID, b); err != nil {
			// Memory stays authoritative; the flush worker retries.
			h.manager.MarkDirty(tenant.ID)
		}
		var mErr error
		payload, mErr = json.Marshal(b)
		return mErr
	})
	if err != nil {
		if errors.Is(err, errBeliefExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create belief")
		return
	}

	writeRawJSON(w, http.StatusCreated, payload)
}

type beliefSummary struct {
	ID           string          `json:"id"`
	Statement    string          `json:"statement"`
	Category     domain.Category `json:"category"`
	Strength     float64         `json:"strength"`
	SuccessCount int             `json:"success_count"`
	FailureCount int             `json:"failure_count"`
	Contexts     int             `json:"contexts"`
	IsDistrusted bool            `json:"is_distrusted,omitempty"`
	IsDisputed   bool            `json:"is_disputed,omitempty"`
}

type listBeliefsResponse struct {
	Beliefs []beliefSummary `json:"beliefs"`
	Count   int             `json:"count"`
}

func (h *BeliefHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	category := r.URL.Query().Get("category")
	if category != "" && !domain.ValidCategory(category) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}

	var summaries []beliefSummary
	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		var beliefs []*domain.Belief
		if category != "" {
			beliefs = g.ListByCategory(domain.Category(category))
		} else {
			beliefs = g.List()
		}
		summaries = make([]beliefSummary, 0, len(beliefs))
		for _, b := range beliefs {
			summaries = append(summaries, beliefSummary{
				ID:           b.ID,
				Statement:    b.Statement,
				Category:     b.Category,
				Strength:     b.Strength,
				SuccessCount: b.SuccessCount,
				FailureCount: b.FailureCount,
				Contexts:     len(b.ContextStates),
				IsDistrusted: b.IsDistrusted,
				IsDisputed:   b.IsDisputed,
			})
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list beliefs")
		return
	}

	writeJSON(w, http.StatusOK, listBeliefsResponse{Beliefs: summaries, Count: len(summaries)})
}

func (h *BeliefHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")

	var payload []byte
	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		b, ok := g.Get(id)
		if !ok {
			return service.ErrBeliefNotFound
		}
		var mErr error
		payload, mErr = json.Marshal(b)
		return mErr
	})
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get belief")
		return
	}

	writeRawJSON(w, http.StatusOK, payload)
}

type addSupportRequest struct {
	To     string  `json:"to"`
	Weight float64 `json:"weight"`
}

// AddSupport links the belief in the path as a supporter of the belief in
// the body: holding {id} lends strength to req.To.
func (h *BeliefHandler) AddSupport(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	from := chi.URLParam(r, "id")

	var req addSupportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		if err := g.AddSupport(from, req.To, req.Weight); err != nil {
			return err
		}
		supporter, _ := g.Get(from)
		supported, _ := g.Get(req.To)
		if h.manager.Save(r.Context(), tenant.ID, supporter) != nil ||
			h.manager.Save(r.Context(), tenant.ID, supported) != nil {
			h.manager.MarkDirty(tenant.ID)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrBeliefNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, graph.ErrInvalidWeight), errors.Is(err, graph.ErrSelfSupport):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to add support edge")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":     from,
		"to":       req.To,
		"weight":   req.Weight,
		"relation": domain.RelationSupports,
	})
}
