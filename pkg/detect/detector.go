package detect

import (
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
	"github.com/TrustPlaneAI/trustplane/pkg/patterns"
)

// Detector scans interaction text against one category's pattern set.
// Stateless and safe for concurrent use.
type Detector struct {
	category model.Category
	registry *patterns.Registry
}

// New creates a detector for the given category, backed by the global
// pattern registry.
func New(cat model.Category) *Detector {
	return &Detector{
		category: cat,
		registry: patterns.Get(),
	}
}

// NewDefaults returns one detector per detection category, in evaluation
// order.
func NewDefaults() []*Detector {
	cats := model.Categories()
	ds := make([]*Detector, 0, len(cats))
	for _, cat := range cats {
		ds = append(ds, New(cat))
	}
	return ds
}

// Category returns the category this detector scores.
func (d *Detector) Category() model.Category {
	return d.category
}

// Detect scores the combined prompt and completion text.
//
// Text is NFKC-normalized before matching so fullwidth and compatibility
// codepoints cannot slip past literal patterns. Original casing is preserved:
// most patterns compile case-insensitive, and the few case-sensitive
// injection-tag patterns need the raw casing to match.
func (d *Detector) Detect(prompt, completion string) model.RiskScore {
	text := norm.NFKC.String(prompt + " " + completion)

	var (
		matches       []Match
		matchedLabels []string
	)
	for _, p := range d.registry.MatchAll(text, d.category) {
		matches = append(matches, Match{Label: p.Label, Weight: p.Weight})
		if !p.Mitigating() {
			matchedLabels = append(matchedLabels, p.Label)
		}
	}

	confidence := Aggregate(matches)

	return model.RiskScore{
		Category:        d.category,
		Confidence:      confidence,
		MatchedPatterns: matchedLabels,
		Severity:        severityFor(d.category, confidence),
	}
}

// severityFor maps a confidence to the category's severity bucket.
// Self-harm floors at medium regardless of confidence; jailbreak caps at high
// since it threatens the safety layer rather than causing direct harm.
func severityFor(cat model.Category, confidence float64) model.Severity {
	switch cat {
	case model.CategorySelfHarm:
		switch {
		case confidence > 0.7:
			return model.SeverityCritical
		case confidence > 0.5:
			return model.SeverityHigh
		default:
			return model.SeverityMedium
		}
	case model.CategoryJailbreak:
		switch {
		case confidence > 0.8:
			return model.SeverityHigh
		case confidence > 0.6:
			return model.SeverityMedium
		default:
			return model.SeverityLow
		}
	case model.CategoryCBRN, model.CategoryExploitation:
		switch {
		case confidence > 0.8:
			return model.SeverityCritical
		case confidence > 0.6:
			return model.SeverityHigh
		case confidence > 0.4:
			return model.SeverityMedium
		default:
			return model.SeverityLow
		}
	default:
		return model.SeverityLow
	}
}

// RunAll runs every detector against the same text concurrently and returns
// the scores keyed by category.
func RunAll(detectors []*Detector, prompt, completion string) map[model.Category]model.RiskScore {
	scores := make([]model.RiskScore, len(detectors))

	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d *Detector) {
			defer wg.Done()
			scores[i] = d.Detect(prompt, completion)
		}(i, d)
	}
	wg.Wait()

	out := make(map[model.Category]model.RiskScore, len(detectors))
	for _, s := range scores {
		out[s.Category] = s
	}
	return out
}
