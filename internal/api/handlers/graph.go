package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/doxalabs/doxa/internal/api/middleware"
	"github.com/doxalabs/doxa/internal/graph"
	"github.com/doxalabs/doxa/internal/service"
)

type GraphHandler struct {
	manager *service.GraphManager
}

func NewGraphHandler(manager *service.GraphManager) *GraphHandler {
	return &GraphHandler{manager: manager}
}

// Export handles GET /v1/graph. It returns the tenant's full graph as a
// document: node and edge views plus the complete belief records.
func (h *GraphHandler) Export(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var payload []byte
	err := h.manager.WithGraph(r.Context(), tenant.ID, func(g *graph.Graph) error {
		var mErr error
		payload, mErr = json.Marshal(g.Snapshot())
		return mErr
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export graph")
		return
	}

	writeRawJSON(w, http.StatusOK, payload)
}

// Flush handles POST /v1/graph/flush. It writes the tenant's whole cached
// graph through to the store without waiting for the background worker.
func (h *GraphHandler) Flush(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	saved, err := h.manager.SaveAll(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to flush graph")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "flushed",
		"beliefs_saved": saved,
	})
}
