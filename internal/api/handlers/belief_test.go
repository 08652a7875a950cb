package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/doxalabs/doxa/internal/api/middleware"
	"github.com/doxalabs/doxa/internal/domain"
	"github.com/doxalabs/doxa/internal/service"
	"github.com/doxalabs/doxa/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAPIKey = "dx_test_key"

type stubTenantStore struct {
	tenant *domain.Tenant
}

func (s *stubTenantStore) Create(ctx context.Context, t *domain.Tenant) error { return nil }

func (s *stubTenantStore) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Tenant, error) {
	if s.tenant != nil && hash == s.tenant.APIKeyHash {
		return s.tenant, nil
	}
	return nil, store.ErrNotFound
}

type stubBeliefStore struct{}

func (stubBeliefStore) LoadAll(ctx context.Context, tenantID uuid.UUID) ([]*domain.Belief, error) {
	return nil, nil
}

func (stubBeliefStore) Save(ctx context.Context, tenantID uuid.UUID, b *domain.Belief) error {
	return nil
}

func (stubBeliefStore) SaveBatch(ctx context.Context, tenantID uuid.UUID, beliefs []*domain.Belief) error {
	return nil
}

type stubEventStore struct {
	mu     sync.Mutex
	events []domain.StrengthUpdateEvent
}

func (s *stubEventStore) Create(ctx context.Context, e *domain.StrengthUpdateEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *stubEventStore) ListByBelief(ctx context.Context, tenantID uuid.UUID, beliefID string, limit int) ([]domain.StrengthUpdateEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StrengthUpdateEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		if e.TenantID == tenantID && e.BeliefID == beliefID {
			out = append(out, e)
		}
	}
	return out, nil
}

// newTestServer wires the belief routes through the real auth middleware so
// requests exercise the same path as production traffic.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	tenant := &domain.Tenant{
		ID:         uuid.New(),
		Name:       "test-tenant",
		APIKeyHash: domain.HashAPIKey(testAPIKey),
	}

	manager := service.NewGraphManager(stubBeliefStore{}, 8, logger)
	events := &stubEventStore{}
	learning := service.NewLearningService(logger)
	learning.SetEventStore(events)
	autonomy := service.NewAutonomyService(logger)

	beliefHandler := NewBeliefHandler(manager)
	learningHandler := NewLearningHandler(manager, learning, events)
	autonomyHandler := NewAutonomyHandler(manager, autonomy)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&stubTenantStore{tenant: tenant}))
		r.Route("/beliefs", func(r chi.Router) {
			r.Post("/", beliefHandler.Create)
			r.Get("/", beliefHandler.List)
			r.Post("/activate", autonomyHandler.Activate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", beliefHandler.GetByID)
				r.Post("/supports", beliefHandler.AddSupport)
				r.Post("/outcome", learningHandler.RecordOutcome)
				r.Post("/challenge", learningHandler.Challenge)
				r.Get("/autonomy", autonomyHandler.GetAutonomy)
				r.Get("/events", learningHandler.ListEvents)
			})
		})
		r.Post("/autonomy/aggregate", autonomyHandler.Aggregate)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createBelief(t *testing.T, srv *httptest.Server, body map[string]any) {
	t.Helper()
	resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateAndGetBelief(t *testing.T) {
	srv := newTestServer(t)

	t.Run("rejects missing api key", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + "/v1/beliefs")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects unknown api key", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/beliefs", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer dx_wrong_key")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("creates with defaults", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs", map[string]any{
			"id":        "prefers-tests",
			"statement": "Changes should land with tests",
			"category":  "technical",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		body := decodeBody(t, resp)
		require.Equal(t, "prefers-tests", body["id"])
		require.InDelta(t, 0.5, body["strength"], 1e-9)
		require.Equal(t, "technical", body["category"])
	})

	t.Run("gets by id", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/v1/beliefs/prefers-tests", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		require.Equal(t, "Changes should land with tests", body["statement"])
	})

	t.Run("404 on unknown id", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/v1/beliefs/no-such-belief", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("409 on duplicate id", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs", map[string]any{
			"id":        "prefers-tests",
			"statement": "duplicate",
			"category":  "technical",
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("400 on invalid category", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs", map[string]any{
			"id":        "bad-category",
			"statement": "nope",
			"category":  "astrological",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("lists with category filter", func(t *testing.T) {
		createBelief(t, srv, map[string]any{
			"id":        "be-honest",
			"statement": "Always disclose uncertainty",
			"category":  "moral",
		})
		resp := doRequest(t, srv, http.MethodGet, "/v1/beliefs?category=moral", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		require.EqualValues(t, 1, body["count"])
	})
}

func TestRecordOutcome(t *testing.T) {
	srv := newTestServer(t)
	createBelief(t, srv, map[string]any{
		"id":        "i-can-refactor",
		"statement": "Large refactors are within my ability",
		"category":  "technical",
	})

	t.Run("success raises strength", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/i-can-refactor/outcome", map[string]any{
			"context_key": "refactoring",
			"outcome":     "success",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		event := body["event"].(map[string]any)
		require.InDelta(t, 0.5, event["old_strength"], 1e-9)
		require.InDelta(t, 0.65, event["new_strength"], 1e-9)
		require.InDelta(t, 0.15, event["delta"], 1e-9)
	})

	t.Run("400 on invalid outcome", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/i-can-refactor/outcome", map[string]any{
			"context_key": "refactoring",
			"outcome":     "shrug",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("404 on unknown belief", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/ghost/outcome", map[string]any{
			"outcome": "success",
		})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("protected moral belief blocks a hard correction", func(t *testing.T) {
		createBelief(t, srv, map[string]any{
			"id":        "never-fabricate",
			"statement": "Never fabricate sources",
			"category":  "moral",
			"strength":  0.97,
		})

		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/never-fabricate/outcome", map[string]any{
			"outcome":       "correction",
			"difficulty":    5,
			"is_end_memory": true,
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		body := decodeBody(t, resp)
		require.Nil(t, body["event"])
		invalidation := body["invalidation"].(map[string]any)
		require.Equal(t, false, invalidation["allowed"])
		require.InDelta(t, 0.97, invalidation["current_strength"], 1e-9)
		require.InDelta(t, 0.95, invalidation["threshold"], 1e-9)

		// The blocked update must leave the belief untouched.
		got := doRequest(t, srv, http.MethodGet, "/v1/beliefs/never-fabricate", nil)
		require.Equal(t, http.StatusOK, got.StatusCode)
		gotBody := decodeBody(t, got)
		require.InDelta(t, 0.97, gotBody["strength"], 1e-9)
	})
}

func TestSupportEdgesAndCascade(t *testing.T) {
	srv := newTestServer(t)
	createBelief(t, srv, map[string]any{
		"id":        "tests-catch-bugs",
		"statement": "Tests catch regressions before users do",
		"category":  "technical",
	})
	createBelief(t, srv, map[string]any{
		"id":        "ship-with-tests",
		"statement": "I should not ship untested changes",
		"category":  "competence",
	})

	t.Run("links supporter to supported", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/tests-catch-bugs/supports", map[string]any{
			"to":     "ship-with-tests",
			"weight": 0.8,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		require.Equal(t, "tests-catch-bugs", body["from"])
		require.Equal(t, "ship-with-tests", body["to"])
		require.Equal(t, "supports", body["relation"])
	})

	t.Run("400 on self support", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/tests-catch-bugs/supports", map[string]any{
			"to":     "tests-catch-bugs",
			"weight": 0.5,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("404 on unknown target", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/tests-catch-bugs/supports", map[string]any{
			"to":     "missing",
			"weight": 0.5,
		})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("outcome cascades through the edge", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/tests-catch-bugs/outcome", map[string]any{
			"context_key": "code-review",
			"outcome":     "success",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		event := body["event"].(map[string]any)
		require.EqualValues(t, 1, event["cascaded_count"])
		require.Equal(t, []any{"ship-with-tests"}, body["affected"])
	})
}

func TestActivateBeliefs(t *testing.T) {
	srv := newTestServer(t)
	createBelief(t, srv, map[string]any{
		"id": "strong", "statement": "strong belief", "category": "technical", "strength": 0.9,
	})
	createBelief(t, srv, map[string]any{
		"id": "medium", "statement": "medium belief", "category": "technical", "strength": 0.6,
	})
	createBelief(t, srv, map[string]any{
		"id": "weak", "statement": "weak belief", "category": "technical", "strength": 0.3,
	})

	resp := doRequest(t, srv, http.MethodPost, "/v1/beliefs/activate", map[string]any{
		"min_strength": 0.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	require.EqualValues(t, 2, body["count"])

	beliefs := body["beliefs"].([]any)
	require.Len(t, beliefs, 2)
	first := beliefs[0].(map[string]any)["belief"].(map[string]any)
	second := beliefs[1].(map[string]any)["belief"].(map[string]any)
	require.Equal(t, "strong", first["id"])
	require.Equal(t, "medium", second["id"])
}

func TestAggregateAutonomy(t *testing.T) {
	srv := newTestServer(t)
	createBelief(t, srv, map[string]any{
		"id": "high", "statement": "high strength", "category": "technical", "strength": 0.9,
	})
	createBelief(t, srv, map[string]any{
		"id": "low", "statement": "low strength", "category": "technical", "strength": 0.3,
	})

	resp := doRequest(t, srv, http.MethodPost, "/v1/autonomy/aggregate", map[string]any{
		"belief_ids": []string{"high", "low"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	require.Equal(t, "medium", body["autonomy"])
	require.InDelta(t, 0.6, body["mean_strength"], 1e-9)
	require.Equal(t, true, body["requires_confirmation"])
	require.Equal(t, false, body["flag_for_review"])
}
