// Package policy implements the threshold table and the rules engine that
// turns per-category risk scores into enforcement actions.
package policy

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

// Sentinel errors for threshold updates.
var (
	// ErrBelowFloor rejects updates under the regulatory minimum.
	ErrBelowFloor = errors.New("threshold below regulatory floor")
	// ErrUnknownThreshold rejects updates to a category/tier pair that is not
	// in the table.
	ErrUnknownThreshold = errors.New("unknown category/tier threshold")
)

// Thresholds maps category -> tier -> trigger threshold. Snapshots handed out
// by the table are immutable; mutating one is a caller bug.
type Thresholds map[model.Category]map[model.Tier]float64

// regulatoryFloors are the minimums a threshold can never be lowered past,
// regardless of tier. CBRN sits lowest: awareness must survive any retuning.
var regulatoryFloors = map[model.Category]float64{
	model.CategoryCBRN:         0.10,
	model.CategorySelfHarm:     0.20,
	model.CategoryJailbreak:    0.20,
	model.CategoryExploitation: 0.20,
}

// Floor returns the regulatory minimum threshold for a category.
func Floor(cat model.Category) (float64, bool) {
	f, ok := regulatoryFloors[cat]
	return f, ok
}

// DefaultThresholds returns the hardcoded threshold table used when no policy
// file is available.
func DefaultThresholds() Thresholds {
	return Thresholds{
		model.CategoryCBRN: {
			model.TierGeneral:         0.15,
			model.TierEnterprise:      0.18,
			model.TierResearchSandbox: 0.25,
		},
		model.CategorySelfHarm: {
			model.TierGeneral:         0.30,
			model.TierEnterprise:      0.50,
			model.TierResearchSandbox: 0.80,
		},
		model.CategoryJailbreak: {
			model.TierGeneral:         0.30,
			model.TierEnterprise:      0.45,
			model.TierResearchSandbox: 0.60,
		},
		model.CategoryExploitation: {
			model.TierGeneral:         0.30,
			model.TierEnterprise:      0.45,
			model.TierResearchSandbox: 0.60,
		},
	}
}

// Table is the live threshold table. Readers load an immutable snapshot with
// no locking; the single writer copies, swaps, then persists under a mutex.
// A reader that raced an update sees either the old or the new snapshot in
// full, never a half-applied one.
type Table struct {
	mu      sync.Mutex
	snap    atomic.Pointer[Thresholds]
	persist func(Thresholds) error
}

// NewTable creates a table seeded with the given thresholds. A nil initial
// map falls back to the defaults.
func NewTable(initial Thresholds) *Table {
	if initial == nil {
		initial = DefaultThresholds()
	}
	t := &Table{}
	snap := cloneThresholds(initial)
	t.snap.Store(&snap)
	return t
}

// SetPersist installs the hook invoked after every successful update, while
// the writer lock is still held. Typically writes the policy file in full.
func (t *Table) SetPersist(fn func(Thresholds) error) {
	t.mu.Lock()
	t.persist = fn
	t.mu.Unlock()
}

// Lookup returns the threshold for a category/tier pair.
func (t *Table) Lookup(cat model.Category, tier model.Tier) (float64, bool) {
	snap := *t.snap.Load()
	tiers, ok := snap[cat]
	if !ok {
		return 0, false
	}
	v, ok := tiers[tier]
	return v, ok
}

// Current returns the live snapshot. Read-only: shared across all readers.
func (t *Table) Current() Thresholds {
	return *t.snap.Load()
}

// Snapshot returns a deep copy safe to serialize or mutate.
func (t *Table) Snapshot() Thresholds {
	return cloneThresholds(*t.snap.Load())
}

// Update sets a new threshold for the category/tier pair and returns the
// previous value. The update is rejected below the category's regulatory
// floor or when the pair is not in the table. On success the persist hook
// runs before the lock is released; a persist failure is returned but the
// in-memory update stands, so a restart falls back to the file's last good
// state while the running process enforces the new value.
func (t *Table) Update(cat model.Category, tier model.Tier, newThreshold float64) (float64, error) {
	if floor, ok := regulatoryFloors[cat]; ok && newThreshold < floor {
		return 0, fmt.Errorf("%w: %s threshold %.2f is under floor %.2f", ErrBelowFloor, cat, newThreshold, floor)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := *t.snap.Load()
	tiers, ok := current[cat]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownThreshold, cat)
	}
	old, ok := tiers[tier]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnknownThreshold, cat, tier)
	}

	next := cloneThresholds(current)
	next[cat][tier] = newThreshold
	t.snap.Store(&next)

	if t.persist != nil {
		if err := t.persist(next); err != nil {
			return old, fmt.Errorf("threshold updated but not persisted: %w", err)
		}
	}
	return old, nil
}

func cloneThresholds(src Thresholds) Thresholds {
	dst := make(Thresholds, len(src))
	for cat, tiers := range src {
		inner := make(map[model.Tier]float64, len(tiers))
		for tier, v := range tiers {
			inner[tier] = v
		}
		dst[cat] = inner
	}
	return dst
}
