// Package patterns provides the centralized pattern library backing the risk
// detectors. All expressions are compiled once at package init and shared
// across detectors and requests.
//
// Design principles:
// - COMPILE ONCE: patterns compiled at init, not per-request
// - DATA, NOT CODE: each entry is a (label, weight, expression) triple so
//   detectors and the aggregator stay generic and independently testable
// - SIGNED WEIGHTS: positive weight = risk evidence, negative weight =
//   mitigating context (academic, fictional, defensive, help-seeking)
package patterns

import (
	"regexp"
	"sync"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

// Pattern holds a compiled expression with its scoring metadata.
type Pattern struct {
	Label         string         // Stable label used in matched-pattern lists and tags
	Regex         *regexp.Regexp // Compiled expression (never nil after init)
	Category      model.Category // Detection category this pattern belongs to
	Weight        float64        // Signed contribution; negative mitigates
	CaseSensitive bool           // True where literal casing carries signal (injection tags)
	Description   string         // What this pattern detects
}

// Mitigating reports whether the pattern reduces rather than adds risk.
func (p *Pattern) Mitigating() bool {
	return p.Weight < 0
}

// Registry holds all compiled patterns, organized by category.
type Registry struct {
	mu         sync.RWMutex
	byCategory map[model.Category][]*Pattern
	all        []*Pattern
}

// global singleton - initialized once at package load
var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global pattern registry (singleton).
// Thread-safe and guaranteed to be initialized.
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

// newRegistry creates and populates the pattern registry.
func newRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[model.Category][]*Pattern),
		all:        make([]*Pattern, 0, 64),
	}

	r.registerCBRNPatterns()
	r.registerSelfHarmPatterns()
	r.registerJailbreakPatterns()
	r.registerExploitationPatterns()

	return r
}

// register adds a case-insensitive pattern to the registry (internal use only).
func (r *Registry) register(cat model.Category, label, expr string, weight float64, description string) {
	r.add(cat, label, "(?i)"+expr, weight, false, description)
}

// registerExact adds a case-sensitive pattern. Injection-tag expressions use
// this because their literal casing is part of the signal.
func (r *Registry) registerExact(cat model.Category, label, expr string, weight float64, description string) {
	r.add(cat, label, expr, weight, true, description)
}

func (r *Registry) add(cat model.Category, label, expr string, weight float64, caseSensitive bool, description string) {
	p := &Pattern{
		Label:         label,
		Regex:         regexp.MustCompile(expr),
		Category:      cat,
		Weight:        weight,
		CaseSensitive: caseSensitive,
		Description:   description,
	}

	r.byCategory[cat] = append(r.byCategory[cat], p)
	r.all = append(r.all, p)
}

// GetByCategory returns all patterns for a category, risk and context alike.
// Returns empty slice if category not found (never nil).
func (r *Registry) GetByCategory(cat model.Category) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if patterns, ok := r.byCategory[cat]; ok {
		return patterns
	}
	return []*Pattern{}
}

// MatchAll returns every pattern in the category that matches text.
// All patterns scan the same text; only CaseSensitive entries depend on its
// casing since the rest compile with (?i).
func (r *Registry) MatchAll(text string, cat model.Category) []*Pattern {
	var matches []*Pattern
	for _, p := range r.GetByCategory(cat) {
		if p.Regex.MatchString(text) {
			matches = append(matches, p)
		}
	}
	return matches
}

// TotalPatterns returns the total count of registered patterns.
func (r *Registry) TotalPatterns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// CategoryCount returns the number of patterns in a category.
func (r *Registry) CategoryCount(cat model.Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCategory[cat])
}
