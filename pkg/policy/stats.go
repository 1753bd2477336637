package policy

import (
	"sync"
	"time"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

// Stats accumulates enforcement counters across the engine's lifetime.
type Stats struct {
	mu             sync.Mutex
	totalEvaluated int64
	actions        map[model.Action]int64
	aslTriggers    int64
	byCategory     map[model.Category]int64
}

func newStats() *Stats {
	s := &Stats{
		actions:    make(map[model.Action]int64, len(model.Actions())),
		byCategory: make(map[model.Category]int64, len(model.Categories())),
	}
	// Pre-seed so snapshots always carry every key, including zero counts.
	for _, a := range model.Actions() {
		s.actions[a] = 0
	}
	for _, c := range model.Categories() {
		s.byCategory[c] = 0
	}
	return s
}

func (s *Stats) recordEvaluation() {
	s.mu.Lock()
	s.totalEvaluated++
	s.mu.Unlock()
}

func (s *Stats) recordAction(a model.Action) {
	s.mu.Lock()
	s.actions[a]++
	s.mu.Unlock()
}

func (s *Stats) recordASLTrigger() {
	s.mu.Lock()
	s.aslTriggers++
	s.mu.Unlock()
}

func (s *Stats) recordCategoryHit(c model.Category) {
	s.mu.Lock()
	s.byCategory[c]++
	s.mu.Unlock()
}

// StatsSnapshot is a point-in-time copy of the enforcement counters with
// derived rates. Rates are zero until at least one record is evaluated.
type StatsSnapshot struct {
	TotalEvaluated int64                    `json:"total_evaluated"`
	Actions        map[model.Action]int64   `json:"actions"`
	ASLTriggers    int64                    `json:"asl_triggers"`
	ByCategory     map[model.Category]int64 `json:"by_category"`
	ASLTriggerRate float64                  `json:"asl_trigger_rate"`
	BlockRate      float64                  `json:"block_rate"`
	EscalationRate float64                  `json:"escalation_rate"`
	LastUpdated    time.Time                `json:"last_updated"`
}

func (s *Stats) snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalEvaluated: s.totalEvaluated,
		Actions:        make(map[model.Action]int64, len(s.actions)),
		ASLTriggers:    s.aslTriggers,
		ByCategory:     make(map[model.Category]int64, len(s.byCategory)),
		LastUpdated:    time.Now().UTC(),
	}
	for a, n := range s.actions {
		snap.Actions[a] = n
	}
	for c, n := range s.byCategory {
		snap.ByCategory[c] = n
	}

	if s.totalEvaluated > 0 {
		total := float64(s.totalEvaluated)
		snap.ASLTriggerRate = float64(s.aslTriggers) / total
		snap.BlockRate = float64(s.actions[model.ActionBlock]) / total
		snap.EscalationRate = float64(s.actions[model.ActionEscalate]) / total
	}
	return snap
}
