// Package detect implements the per-category risk detectors and the
// confidence aggregation they share. Detectors are pure: the same text always
// produces the same score, so they can run concurrently without coordination.
package detect

import "sort"

// decayFactor attenuates each additional positive match. The strongest signal
// counts in full; stacked weaker signals saturate instead of summing linearly.
const decayFactor = 0.8

// Match is a single pattern hit contributing to a category confidence.
// Weight is signed: negative matches are mitigating context.
type Match struct {
	Label  string
	Weight float64
}

// Aggregate folds a set of pattern matches into a confidence in [0, 1].
//
// Positive weights are sorted descending and summed under geometric decay, so
// the contribution order is deterministic regardless of match order. Negative
// weights reduce the total at full magnitude with no decay. The result is
// clamped to [0, 1]; with no positive matches it is always 0.0, no matter how
// much mitigating context is present.
func Aggregate(matches []Match) float64 {
	if len(matches) == 0 {
		return 0.0
	}

	positive := make([]float64, 0, len(matches))
	var mitigation float64
	for _, m := range matches {
		switch {
		case m.Weight > 0:
			positive = append(positive, m.Weight)
		case m.Weight < 0:
			mitigation += -m.Weight
		}
	}

	var base float64
	if len(positive) > 0 {
		sort.Sort(sort.Reverse(sort.Float64Slice(positive)))
		decay := 1.0
		for _, w := range positive {
			base += w * decay
			decay *= decayFactor
		}
	}

	confidence := base - mitigation
	if confidence < 0 {
		return 0.0
	}
	if confidence > 1 {
		return 1.0
	}
	return confidence
}
