// Package store persists the governance audit trail: interaction records,
// every policy action ever taken (including superseding review decisions),
// and the threshold change history.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

// ErrDuplicate is returned when appending a record whose id is already stored.
var ErrDuplicate = errors.New("event already stored")

// highRiskCutoff is the score above which a detection counts as high-risk in
// the metrics rollup.
const highRiskCutoff = 0.5

// Metrics is the aggregate view over the stored audit trail.
type Metrics struct {
	TotalEvents     int64                    `json:"total_events"`
	EventsBySurface map[model.Surface]int64  `json:"events_by_surface"`
	EventsByTier    map[model.Tier]int64     `json:"events_by_tier"`
	RiskDetections  map[model.Category]int64 `json:"risk_detections"`
	ActionsTaken    map[model.Action]int64   `json:"actions_taken"`
	ASLTriggers     int64                    `json:"asl_triggers"`
}

func newMetrics() Metrics {
	m := Metrics{
		EventsBySurface: make(map[model.Surface]int64, len(model.Surfaces())),
		EventsByTier:    make(map[model.Tier]int64, len(model.Tiers())),
		RiskDetections:  make(map[model.Category]int64, len(model.Categories())),
		ActionsTaken:    make(map[model.Action]int64, len(model.Actions())),
	}
	for _, s := range model.Surfaces() {
		m.EventsBySurface[s] = 0
	}
	for _, t := range model.Tiers() {
		m.EventsByTier[t] = 0
	}
	for _, c := range model.Categories() {
		m.RiskDetections[c] = 0
	}
	for _, a := range model.Actions() {
		m.ActionsTaken[a] = 0
	}
	return m
}

// Store is the audit trail backend. All writes are appends; stored rows are
// never updated in place.
type Store interface {
	// AppendEvent stores a scored record together with its initial policy
	// action. Returns ErrDuplicate when the event id is already stored.
	AppendEvent(ctx context.Context, record *model.InteractionRecord, action model.PolicyAction) error

	// AppendAction stores an additional policy action for an already-stored
	// event, such as a superseding review decision.
	AppendAction(ctx context.Context, action model.PolicyAction) error

	// AppendThresholdChange records one threshold change in the history.
	AppendThresholdChange(ctx context.Context, change model.ThresholdChange) error

	// Exists reports whether an event id is already stored.
	Exists(ctx context.Context, eventID uuid.UUID) (bool, error)

	// Metrics computes the aggregate rollup over the audit trail.
	Metrics(ctx context.Context) (Metrics, error)

	// ThresholdHistory returns the most recent threshold changes, newest
	// first, up to limit.
	ThresholdHistory(ctx context.Context, limit int) ([]model.ThresholdChange, error)

	// Close releases backend resources.
	Close()
}
