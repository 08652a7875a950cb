package store

import (
	"context"

	"github.com/doxalabs/doxa/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventStore is the append-only learning audit log.
type EventStore struct {
	db *pgxpool.Pool
}

func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Create(ctx context.Context, e *domain.StrengthUpdateEvent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO belief_events (id, tenant_id, belief_id, context_key, outcome, signal, old_strength, new_strength, delta, category_multiplier, peak_end_multiplier, difficulty_multiplier, learning_rate, cascaded_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.TenantID, e.BeliefID, e.ContextKey, e.Outcome, e.Signal, e.OldStrength, e.NewStrength, e.Delta, e.CategoryMultiplier, e.PeakEndMultiplier, e.DifficultyMultiplier, e.LearningRate, e.CascadedCount, e.CreatedAt,
	)
	return err
}

func (s *EventStore) ListByBelief(ctx context.Context, tenantID uuid.UUID, beliefID string, limit int) ([]domain.StrengthUpdateEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, belief_id, context_key, outcome, signal, old_strength, new_strength, delta, category_multiplier, peak_end_multiplier, difficulty_multiplier, learning_rate, cascaded_count, created_at
		 FROM belief_events WHERE tenant_id = $1 AND belief_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		tenantID, beliefID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.StrengthUpdateEvent
	for rows.Next() {
		var e domain.StrengthUpdateEvent
		if err := rows.Scan(&e.ID, &e.TenantID, &e.BeliefID, &e.ContextKey, &e.Outcome, &e.Signal, &e.OldStrength, &e.NewStrength, &e.Delta, &e.CategoryMultiplier, &e.PeakEndMultiplier, &e.DifficultyMultiplier, &e.LearningRate, &e.CascadedCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
