// Package rerank re-scores retrieved memory candidates by semantic similarity,
// recency, stored importance and memory-type priority.
package rerank

import (
	"math"
	"sort"
	"time"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

const (
	// DefaultHalfLife is the recency half-life, 30 days
	DefaultHalfLife = 720 * time.Hour

	// DefaultTypeWeight applies to memory types missing from the weight table
	DefaultTypeWeight = 0.50

	// futureSkew is how far in the future a timestamp may lie before it counts as a clock anomaly
	futureSkew = 5 * time.Second

	skewRecency    = 0.9
	anomalyRecency = 0.5
)

// Weights are the coefficients of the final score.
type Weights struct {
	Semantic   float64
	Recency    float64
	Importance float64
	Type       float64
}

// DefaultWeights returns 0.50 semantic, 0.20 recency, 0.20 importance, 0.10 type.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.50, Recency: 0.20, Importance: 0.20, Type: 0.10}
}

// DefaultTypeWeights returns the memory-type priority table.
func DefaultTypeWeights() map[ltm.MemoryType]float64 {
	return map[ltm.MemoryType]float64{
		ltm.TypePersonalInfo: 0.95,
		ltm.TypeGoal:         0.90,
		ltm.TypeTask:         0.88,
		ltm.TypePreference:   0.75,
		ltm.TypeFact:         0.55,
		ltm.TypeShortTerm:    0.50,
		ltm.TypeCompressed:   0.45,
	}
}

// Config configures a Reranker. Zero fields take their defaults.
type Config struct {
	HalfLife    time.Duration
	Weights     Weights
	TypeWeights map[ltm.MemoryType]float64

	// Now is the clock recency is measured against
	Now func() time.Time
}

// Scored is a candidate with its score components.
type Scored struct {
	ltm.Candidate

	Semantic   float64
	Recency    float64
	Importance float64
	TypeWeight float64
	Score      float64
}

// Reranker orders candidates by final score. It holds no mutable state and is
// safe for concurrent use.
type Reranker struct {
	halfLife    time.Duration
	weights     Weights
	typeWeights map[ltm.MemoryType]float64
	now         func() time.Time
}

// New creates a Reranker from cfg.
func New(cfg Config) *Reranker {
	r := &Reranker{
		halfLife:    cfg.HalfLife,
		weights:     cfg.Weights,
		typeWeights: cfg.TypeWeights,
		now:         cfg.Now,
	}
	if r.halfLife <= 0 {
		r.halfLife = DefaultHalfLife
	}
	if r.weights == (Weights{}) {
		r.weights = DefaultWeights()
	}
	if r.typeWeights == nil {
		r.typeWeights = DefaultTypeWeights()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Rerank scores every candidate and returns them by descending score. Duplicate
// ids collapse to their first occurrence and ties keep input order. The input
// slice is not modified.
func (r *Reranker) Rerank(candidates []ltm.Candidate) []Scored {
	now := r.now()
	seen := make(map[string]bool, len(candidates))
	out := make([]Scored, 0, len(candidates))

	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true

		s := Scored{
			Candidate:  c,
			Semantic:   Semantic(c.Distance),
			Recency:    r.Recency(c.Metadata.CreatedAt, now),
			Importance: ltm.ClampImportance(c.Metadata.Importance),
			TypeWeight: r.TypeWeight(c.Metadata.Type),
		}
		s.Score = r.weights.Semantic*s.Semantic +
			r.weights.Recency*s.Recency +
			r.weights.Importance*s.Importance +
			r.weights.Type*s.TypeWeight
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Semantic converts a distance into a similarity in [0,1]. Distances above 1
// give 0 and negative or NaN distances are clamped.
func Semantic(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return clamp01(1 - distance)
}

// Recency is 0.5^(age/halfLife). A zero timestamp gives 0, one at most 5s in
// the future gives 0.9 and one further ahead gives 0.5.
func (r *Reranker) Recency(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	age := now.Sub(createdAt)
	if age < 0 {
		if -age <= futureSkew {
			return skewRecency
		}
		return anomalyRecency
	}
	return clamp01(math.Pow(0.5, age.Hours()/r.halfLife.Hours()))
}

// TypeWeight looks up the priority of a memory type.
func (r *Reranker) TypeWeight(t ltm.MemoryType) float64 {
	if w, ok := r.typeWeights[t]; ok {
		return w
	}
	return DefaultTypeWeight
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
