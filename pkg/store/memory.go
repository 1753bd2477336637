package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

// storedEvent pairs a record with the action and ASL flag it was stored with.
// The embedded record is a deep-enough copy that later caller mutations do
// not reach the stored state.
type storedEvent struct {
	record       model.InteractionRecord
	action       model.Action
	aslTriggered bool
}

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu      sync.RWMutex
	events  map[uuid.UUID]*storedEvent
	actions []model.PolicyAction
	history []model.ThresholdChange
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events: make(map[uuid.UUID]*storedEvent),
	}
}

// AppendEvent implements Store.
func (m *Memory) AppendEvent(_ context.Context, record *model.InteractionRecord, action model.PolicyAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[record.EventID]; ok {
		return fmt.Errorf("event %s: %w", record.EventID, ErrDuplicate)
	}

	m.events[record.EventID] = &storedEvent{
		record:       copyRecord(record),
		action:       action.Action,
		aslTriggered: action.ASLTriggered,
	}
	m.actions = append(m.actions, action)
	return nil
}

// AppendAction implements Store.
func (m *Memory) AppendAction(_ context.Context, action model.PolicyAction) error {
	m.mu.Lock()
	m.actions = append(m.actions, action)
	m.mu.Unlock()
	return nil
}

// AppendThresholdChange implements Store.
func (m *Memory) AppendThresholdChange(_ context.Context, change model.ThresholdChange) error {
	m.mu.Lock()
	m.history = append(m.history, change)
	m.mu.Unlock()
	return nil
}

// Exists implements Store.
func (m *Memory) Exists(_ context.Context, eventID uuid.UUID) (bool, error) {
	m.mu.RLock()
	_, ok := m.events[eventID]
	m.mu.RUnlock()
	return ok, nil
}

// Metrics implements Store.
func (m *Memory) Metrics(_ context.Context) (Metrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := newMetrics()
	for _, ev := range m.events {
		metrics.TotalEvents++
		metrics.EventsBySurface[ev.record.Surface]++
		metrics.EventsByTier[ev.record.Tier]++
		metrics.ActionsTaken[ev.action]++
		if ev.aslTriggered {
			metrics.ASLTriggers++
		}
		for cat, score := range ev.record.RiskScores {
			if score > highRiskCutoff {
				metrics.RiskDetections[cat]++
			}
		}
	}
	return metrics, nil
}

// ThresholdHistory implements Store.
func (m *Memory) ThresholdHistory(_ context.Context, limit int) ([]model.ThresholdChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.ThresholdChange, len(m.history))
	copy(out, m.history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close implements Store.
func (m *Memory) Close() {}

// ActionsForEvent returns every stored action for an event, oldest first.
// Used by tests to verify the superseding audit trail.
func (m *Memory) ActionsForEvent(eventID uuid.UUID) []model.PolicyAction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.PolicyAction
	for _, a := range m.actions {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out
}

func copyRecord(r *model.InteractionRecord) model.InteractionRecord {
	cp := *r
	cp.RiskScores = make(map[model.Category]float64, len(r.RiskScores))
	for k, v := range r.RiskScores {
		cp.RiskScores[k] = v
	}
	cp.Tags = append([]string(nil), r.Tags...)
	return cp
}
