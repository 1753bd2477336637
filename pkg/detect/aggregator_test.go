package detect

import (
	"math"
	"testing"
)

func TestAggregate(t *testing.T) {
	testCases := []struct {
		name    string
		matches []Match
		want    float64
	}{
		{
			name:    "no matches",
			matches: nil,
			want:    0.0,
		},
		{
			name:    "single positive match",
			matches: []Match{{Label: "nerve_agent_synthesis", Weight: 0.95}},
			want:    0.95,
		},
		{
			name: "two strong matches clamp to one",
			matches: []Match{
				{Label: "nerve_agent_synthesis", Weight: 0.95},
				{Label: "precursor_inquiry", Weight: 0.8},
			},
			// 0.95 + 0.8*0.8 = 1.59, clamped
			want: 1.0,
		},
		{
			name: "three decayed matches",
			matches: []Match{
				{Label: "a", Weight: 0.4},
				{Label: "b", Weight: 0.3},
				{Label: "c", Weight: 0.2},
			},
			// 0.4 + 0.3*0.8 + 0.2*0.64
			want: 0.768,
		},
		{
			name: "mitigation subtracts flat",
			matches: []Match{
				{Label: "harm_intent", Weight: 0.6},
				{Label: "fictional_context", Weight: -0.3},
			},
			want: 0.3,
		},
		{
			name: "mitigation never goes negative",
			matches: []Match{
				{Label: "distress_expression", Weight: 0.2},
				{Label: "help_seeking", Weight: -0.3},
				{Label: "third_person", Weight: -0.2},
			},
			want: 0.0,
		},
		{
			name: "only mitigating matches stay at zero",
			matches: []Match{
				{Label: "academic_context", Weight: -0.3},
				{Label: "fictional_context", Weight: -0.2},
			},
			want: 0.0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Aggregate(tc.matches)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Aggregate() = %f, want %f", got, tc.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Aggregate() = %f, outside [0, 1]", got)
			}
		})
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	forward := []Match{
		{Label: "a", Weight: 0.3},
		{Label: "b", Weight: 0.9},
		{Label: "c", Weight: -0.2},
		{Label: "d", Weight: 0.6},
	}
	reversed := []Match{
		{Label: "d", Weight: 0.6},
		{Label: "c", Weight: -0.2},
		{Label: "b", Weight: 0.9},
		{Label: "a", Weight: 0.3},
	}

	if f, r := Aggregate(forward), Aggregate(reversed); f != r {
		t.Errorf("Aggregate() depends on match order: %f vs %f", f, r)
	}
}

func TestAggregateDecayFavorsStrongest(t *testing.T) {
	// Weights are sorted before decay, so the strongest signal always
	// contributes in full regardless of input order.
	got := Aggregate([]Match{{Label: "weak", Weight: 0.1}, {Label: "strong", Weight: 0.9}})
	want := 0.9 + 0.1*0.8
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Aggregate() = %f, want %f", got, want)
	}
}

func BenchmarkAggregate(b *testing.B) {
	matches := []Match{
		{Label: "a", Weight: 0.95},
		{Label: "b", Weight: 0.8},
		{Label: "c", Weight: 0.6},
		{Label: "d", Weight: -0.3},
		{Label: "e", Weight: -0.2},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Aggregate(matches)
	}
}
