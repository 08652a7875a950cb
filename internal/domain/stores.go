package domain

import (
	"context"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error)
}

// BeliefStore persists whole belief records per tenant. The engine works on
// in-memory graphs; this port only loads and flushes them.
type BeliefStore interface {
	LoadAll(ctx context.Context, tenantID uuid.UUID) ([]*Belief, error)
	Save(ctx context.Context, tenantID uuid.UUID, b *Belief) error
	SaveBatch(ctx context.Context, tenantID uuid.UUID, beliefs []*Belief) error
}

// EventStore is append-only; events are never updated or deleted.
type EventStore interface {
	Create(ctx context.Context, e *StrengthUpdateEvent) error
	ListByBelief(ctx context.Context, tenantID uuid.UUID, beliefID string, limit int) ([]StrengthUpdateEvent, error)
}
