package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryMoral      Category = "moral"
	CategoryCompetence Category = "competence"
	CategoryTechnical  Category = "technical"
	CategoryPreference Category = "preference"
	CategoryIdentity   Category = "identity"
)

func ValidCategory(c string) bool {
	switch Category(c) {
	case CategoryMoral, CategoryCompetence, CategoryTechnical, CategoryPreference, CategoryIdentity:
		return true
	}
	return false
}

func AllCategories() []Category {
	return []Category{CategoryMoral, CategoryCompetence, CategoryTechnical, CategoryPreference, CategoryIdentity}
}

type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeNeutral    Outcome = "neutral"
	OutcomeValidation Outcome = "validation"
	OutcomeCorrection Outcome = "correction"
	OutcomeNone       Outcome = "none"
)

// ValidOutcome reports whether o is an outcome callers may submit.
// OutcomeNone is the initial state of a context and is never submitted.
func ValidOutcome(o string) bool {
	switch Outcome(o) {
	case OutcomeSuccess, OutcomeFailure, OutcomeNeutral, OutcomeValidation, OutcomeCorrection:
		return true
	}
	return false
}

// Signal maps an outcome to the direction of the strength update.
func (o Outcome) Signal() float64 {
	switch o {
	case OutcomeSuccess, OutcomeValidation:
		return 1
	case OutcomeFailure, OutcomeCorrection:
		return -1
	}
	return 0
}

const (
	ContextWildcard  = "*"
	ContextSeparator = "|"
)

// ValidContextKey accepts pipe-delimited keys with non-empty segments.
// Arity is chosen by the tenant; the engine treats keys as opaque tuples.
func ValidContextKey(key string) bool {
	if key == "" {
		return false
	}
	for _, seg := range strings.Split(key, ContextSeparator) {
		if seg == "" {
			return false
		}
	}
	return true
}

// ContextState tracks how strongly a belief holds within one context.
type ContextState struct {
	Strength     float64   `json:"strength"`
	LastUpdated  time.Time `json:"last_updated"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	LastOutcome  Outcome   `json:"last_outcome"`
}

const RelationSupports = "supports"

// SupportEdge is a weighted directed edge: holding From lends strength to To.
type SupportEdge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Weight   float64 `json:"weight"`
	Relation string  `json:"relation"`
}

type Belief struct {
	ID             string                   `json:"id"`
	TenantID       uuid.UUID                `json:"tenant_id,omitempty"`
	Statement      string                   `json:"statement"`
	Category       Category                 `json:"category"`
	Strength       float64                  `json:"strength"`
	DefaultContext string                   `json:"default_context,omitempty"`
	ContextStates  map[string]*ContextState `json:"context_states,omitempty"`

	// Graph linkage. SupportWeights keys by supporter id and holds the
	// weight of the edge coming INTO this belief.
	Supports       []string           `json:"supports,omitempty"`
	SupportedBy    []string           `json:"supported_by,omitempty"`
	SupportWeights map[string]float64 `json:"support_weights,omitempty"`

	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`

	Immutable           bool `json:"immutable,omitempty"`
	IsDistrusted        bool `json:"is_distrusted,omitempty"`
	IsDisputed          bool `json:"is_disputed,omitempty"`
	MoralViolationCount int  `json:"moral_violation_count,omitempty"`

	// InvalidationThreshold overrides the category default when > 0.
	InvalidationThreshold float64 `json:"invalidation_threshold,omitempty"`

	PeakIntensity       float64 `json:"peak_intensity,omitempty"`
	EndMemoryInfluenced bool    `json:"end_memory_influenced,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BeliefOption func(*Belief)

func WithStrength(s float64) BeliefOption {
	return func(b *Belief) { b.Strength = s }
}

func WithDefaultContext(key string) BeliefOption {
	return func(b *Belief) { b.DefaultContext = key }
}

func WithInvalidationThreshold(t float64) BeliefOption {
	return func(b *Belief) { b.InvalidationThreshold = t }
}

// NewBelief builds a validated belief. Identity beliefs come out immutable.
func NewBelief(id, statement string, category Category, opts ...BeliefOption) (*Belief, error) {
	now := time.Now().UTC()
	b := &Belief{
		ID:             id,
		Statement:      statement,
		Category:       category,
		Strength:       DefaultStrength,
		DefaultContext: ContextWildcard,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if category == CategoryIdentity {
		b.Immutable = true
	}
	b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Normalize replaces nil collections so callers never branch on them.
func (b *Belief) Normalize() {
	if b.ContextStates == nil {
		b.ContextStates = make(map[string]*ContextState)
	}
	if b.SupportWeights == nil {
		b.SupportWeights = make(map[string]float64)
	}
	if b.Supports == nil {
		b.Supports = []string{}
	}
	if b.SupportedBy == nil {
		b.SupportedBy = []string{}
	}
}

func (b *Belief) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("belief id is required")
	}
	if b.Statement == "" {
		return fmt.Errorf("belief %s: statement is required", b.ID)
	}
	if !ValidCategory(string(b.Category)) {
		return fmt.Errorf("belief %s: invalid category %q", b.ID, b.Category)
	}
	if b.Strength < 0 || b.Strength > 1 {
		return fmt.Errorf("belief %s: strength %v outside [0,1]", b.ID, b.Strength)
	}
	if b.InvalidationThreshold < 0 || b.InvalidationThreshold > 1 {
		return fmt.Errorf("belief %s: invalidation threshold %v outside [0,1]", b.ID, b.InvalidationThreshold)
	}
	if b.DefaultContext != "" && !ValidContextKey(b.DefaultContext) {
		return fmt.Errorf("belief %s: invalid default context %q", b.ID, b.DefaultContext)
	}
	for key, state := range b.ContextStates {
		if !ValidContextKey(key) {
			return fmt.Errorf("belief %s: invalid context key %q", b.ID, key)
		}
		if state == nil {
			return fmt.Errorf("belief %s: nil state for context %q", b.ID, key)
		}
		if state.Strength < 0 || state.Strength > 1 {
			return fmt.Errorf("belief %s: context %q strength %v outside [0,1]", b.ID, key, state.Strength)
		}
	}
	for from, w := range b.SupportWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("belief %s: support weight %v from %q outside [0,1]", b.ID, w, from)
		}
	}
	return nil
}
