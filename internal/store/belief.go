package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/doxalabs/doxa/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BeliefStore persists belief rows keyed by (tenant_id, id). The engine is
// write-back: rows mirror the in-memory graph, so timestamps come from the
// caller rather than the database.
type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

func (s *BeliefStore) LoadAll(ctx context.Context, tenantID uuid.UUID) ([]*domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, statement, category, strength, default_context,
			context_states, supports, supported_by, support_weights,
			success_count, failure_count, immutable, is_distrusted, is_disputed,
			moral_violation_count, invalidation_threshold, peak_intensity, end_memory_influenced,
			created_at, updated_at
		 FROM beliefs WHERE tenant_id = $1
		 ORDER BY created_at ASC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beliefs []*domain.Belief
	for rows.Next() {
		b := &domain.Belief{TenantID: tenantID}
		var contextStatesJSON, supportsJSON, supportedByJSON, supportWeightsJSON []byte

		err := rows.Scan(
			&b.ID, &b.Statement, &b.Category, &b.Strength, &b.DefaultContext,
			&contextStatesJSON, &supportsJSON, &supportedByJSON, &supportWeightsJSON,
			&b.SuccessCount, &b.FailureCount, &b.Immutable, &b.IsDistrusted, &b.IsDisputed,
			&b.MoralViolationCount, &b.InvalidationThreshold, &b.PeakIntensity, &b.EndMemoryInfluenced,
			&b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(contextStatesJSON) > 0 {
			if err := json.Unmarshal(contextStatesJSON, &b.ContextStates); err != nil {
				return nil, fmt.Errorf("unmarshal context_states for %s: %w", b.ID, err)
			}
		}
		if len(supportsJSON) > 0 {
			if err := json.Unmarshal(supportsJSON, &b.Supports); err != nil {
				return nil, fmt.Errorf("unmarshal supports for %s: %w", b.ID, err)
			}
		}
		if len(supportedByJSON) > 0 {
			if err := json.Unmarshal(supportedByJSON, &b.SupportedBy); err != nil {
				return nil, fmt.Errorf("unmarshal supported_by for %s: %w", b.ID, err)
			}
		}
		if len(supportWeightsJSON) > 0 {
			if err := json.Unmarshal(supportWeightsJSON, &b.SupportWeights); err != nil {
				return nil, fmt.Errorf("unmarshal support_weights for %s: %w", b.ID, err)
			}
		}

		b.Normalize()
		beliefs = append(beliefs, b)
	}
	return beliefs, rows.Err()
}

func (s *BeliefStore) Save(ctx context.Context, tenantID uuid.UUID, b *domain.Belief) error {
	return s.upsert(ctx, tenantID, b)
}

func (s *BeliefStore) SaveBatch(ctx context.Context, tenantID uuid.UUID, beliefs []*domain.Belief) error {
	for _, b := range beliefs {
		if err := s.upsert(ctx, tenantID, b); err != nil {
			return fmt.Errorf("save belief %s: %w", b.ID, err)
		}
	}
	return nil
}

func (s *BeliefStore) upsert(ctx context.Context, tenantID uuid.UUID, b *domain.Belief) error {
	contextStatesJSON, err := json.Marshal(b.ContextStates)
	if err != nil {
		return fmt.Errorf("marshal context_states: %w", err)
	}
	supportsJSON, err := json.Marshal(b.Supports)
	if err != nil {
		return fmt.Errorf("marshal supports: %w", err)
	}
	supportedByJSON, err := json.Marshal(b.SupportedBy)
	if err != nil {
		return fmt.Errorf("marshal supported_by: %w", err)
	}
	supportWeightsJSON, err := json.Marshal(b.SupportWeights)
	if err != nil {
		return fmt.Errorf("marshal support_weights: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO beliefs (
			tenant_id, id, statement, category, strength, default_context,
			context_states, supports, supported_by, support_weights,
			success_count, failure_count, immutable, is_distrusted, is_disputed,
			moral_violation_count, invalidation_threshold, peak_intensity, end_memory_influenced,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21
		)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			statement = EXCLUDED.statement,
			category = EXCLUDED.category,
			strength = EXCLUDED.strength,
			default_context = EXCLUDED.default_context,
			context_states = EXCLUDED.context_states,
			supports = EXCLUDED.supports,
			supported_by = EXCLUDED.supported_by,
			support_weights = EXCLUDED.support_weights,
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			immutable = EXCLUDED.immutable,
			is_distrusted = EXCLUDED.is_distrusted,
			is_disputed = EXCLUDED.is_disputed,
			moral_violation_count = EXCLUDED.moral_violation_count,
			invalidation_threshold = EXCLUDED.invalidation_threshold,
			peak_intensity = EXCLUDED.peak_intensity,
			end_memory_influenced = EXCLUDED.end_memory_influenced,
			updated_at = EXCLUDED.updated_at`,
		tenantID, b.ID, b.Statement, b.Category, b.Strength, b.DefaultContext,
		contextStatesJSON, supportsJSON, supportedByJSON, supportWeightsJSON,
		b.SuccessCount, b.FailureCount, b.Immutable, b.IsDistrusted, b.IsDisputed,
		b.MoralViolationCount, b.InvalidationThreshold, b.PeakIntensity, b.EndMemoryInfluenced,
		b.CreatedAt, b.UpdatedAt,
	)
	return err
}

// Verify interface compliance at compile time
var _ domain.BeliefStore = (*BeliefStore)(nil)
