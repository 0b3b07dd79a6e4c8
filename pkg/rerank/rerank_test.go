package rerank

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestReranker() *Reranker {
	return New(Config{Now: func() time.Time { return testNow }})
}

func candidate(id string, distance float64, memType ltm.MemoryType, importance float64, created time.Time) ltm.Candidate {
	return ltm.Candidate{
		ID:       id,
		Text:     "memory " + id,
		Distance: distance,
		Metadata: ltm.Metadata{
			UserID:     "alice",
			Type:       memType,
			Importance: importance,
			CreatedAt:  created,
			UpdatedAt:  created,
		},
	}
}

func TestSemantic(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.25, 0.75},
		{1, 0},
		{1.7, 0},
		{2, 0},
		{-0.5, 1},
		{math.Inf(1), 0},
		{math.Inf(-1), 1},
		{math.NaN(), 0},
	}
	for _, tc := range tests {
		got := Semantic(tc.distance)
		assert.InDelta(t, tc.want, got, 1e-9, "distance %v", tc.distance)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		// re-applying the clamp to a similarity is stable
		assert.Equal(t, clamp01(got), clamp01(clamp01(got)))
	}
}

func TestRecency(t *testing.T) {
	r := newTestReranker()

	tests := []struct {
		name    string
		created time.Time
		want    float64
	}{
		{"now", testNow, 1},
		{"one half-life", testNow.Add(-DefaultHalfLife), 0.5},
		{"two half-lives", testNow.Add(-2 * DefaultHalfLife), 0.25},
		{"missing", time.Time{}, 0},
		{"slight skew", testNow.Add(3 * time.Second), 0.9},
		{"skew boundary", testNow.Add(5 * time.Second), 0.9},
		{"clock anomaly", testNow.Add(time.Hour), 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, r.Recency(tc.created, testNow), 1e-9)
		})
	}
}

func TestRecency_CustomHalfLife(t *testing.T) {
	r := New(Config{HalfLife: 24 * time.Hour, Now: func() time.Time { return testNow }})
	assert.InDelta(t, 0.5, r.Recency(testNow.Add(-24*time.Hour), testNow), 1e-9)
}

func TestTypeWeight(t *testing.T) {
	r := newTestReranker()
	assert.Equal(t, 0.95, r.TypeWeight(ltm.TypePersonalInfo))
	assert.Equal(t, 0.90, r.TypeWeight(ltm.TypeGoal))
	assert.Equal(t, 0.88, r.TypeWeight(ltm.TypeTask))
	assert.Equal(t, 0.75, r.TypeWeight(ltm.TypePreference))
	assert.Equal(t, 0.55, r.TypeWeight(ltm.TypeFact))
	assert.Equal(t, 0.50, r.TypeWeight(ltm.TypeShortTerm))
	assert.Equal(t, 0.45, r.TypeWeight(ltm.TypeCompressed))
	assert.Equal(t, DefaultTypeWeight, r.TypeWeight(ltm.MemoryType("mystery")))
}

func TestRerank_Score(t *testing.T) {
	r := newTestReranker()

	out := r.Rerank([]ltm.Candidate{
		candidate("g", 0.2, ltm.TypeGoal, 0.8, testNow.Add(-DefaultHalfLife)),
	})
	require.Len(t, out, 1)

	s := out[0]
	assert.InDelta(t, 0.8, s.Semantic, 1e-9)
	assert.InDelta(t, 0.5, s.Recency, 1e-9)
	assert.InDelta(t, 0.8, s.Importance, 1e-9)
	assert.InDelta(t, 0.90, s.TypeWeight, 1e-9)
	assert.InDelta(t, 0.5*0.8+0.2*0.5+0.2*0.8+0.1*0.9, s.Score, 1e-9)
}

func TestRerank_ClampsImportance(t *testing.T) {
	r := newTestReranker()

	out := r.Rerank([]ltm.Candidate{
		candidate("hi", 0.5, ltm.TypeFact, 3, testNow),
		candidate("lo", 0.5, ltm.TypeFact, -1, testNow),
		candidate("nan", 0.5, ltm.TypeFact, math.NaN(), testNow),
	})
	byID := make(map[string]Scored)
	for _, s := range out {
		byID[s.ID] = s
	}
	assert.Equal(t, 1.0, byID["hi"].Importance)
	assert.Equal(t, 0.0, byID["lo"].Importance)
	assert.Equal(t, ltm.DefaultImportance, byID["nan"].Importance)
}

func TestRerank_Order(t *testing.T) {
	r := newTestReranker()

	out := r.Rerank([]ltm.Candidate{
		candidate("old-fact", 0.3, ltm.TypeFact, 0.4, testNow.Add(-4*DefaultHalfLife)),
		candidate("new-goal", 0.3, ltm.TypeGoal, 0.8, testNow),
		candidate("far", 1.4, ltm.TypeCompressed, 0.1, time.Time{}),
	})
	require.Len(t, out, 3)
	assert.Equal(t, "new-goal", out[0].ID)
	assert.Equal(t, "old-fact", out[1].ID)
	assert.Equal(t, "far", out[2].ID)
}

func TestRerank_DuplicatesFirstWins(t *testing.T) {
	r := newTestReranker()

	first := candidate("dup", 0.9, ltm.TypeFact, 0.1, testNow)
	second := candidate("dup", 0.0, ltm.TypeGoal, 1.0, testNow)
	second.Text = "second copy"

	out := r.Rerank([]ltm.Candidate{first, candidate("other", 0.5, ltm.TypeFact, 0.4, testNow), second})
	require.Len(t, out, 2)
	for _, s := range out {
		if s.ID == "dup" {
			assert.Equal(t, "memory dup", s.Text)
			assert.InDelta(t, 0.1, s.Semantic, 1e-9)
		}
	}
}

func TestRerank_StableTies(t *testing.T) {
	r := newTestReranker()

	var in []ltm.Candidate
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		in = append(in, candidate(id, 0.4, ltm.TypeFact, 0.4, testNow))
	}
	out := r.Rerank(in)
	require.Len(t, out, 5)
	for i, s := range out {
		assert.Equal(t, in[i].ID, s.ID)
	}
}

func TestRerank_SortedNonIncreasing(t *testing.T) {
	r := newTestReranker()
	rng := rand.New(rand.NewSource(42))
	types := append([]ltm.MemoryType{"unknown"}, ltm.MemoryTypes...)

	for round := 0; round < 50; round++ {
		n := rng.Intn(20)
		in := make([]ltm.Candidate, n)
		for i := range in {
			created := testNow.Add(-time.Duration(rng.Intn(5000)) * time.Hour)
			if rng.Intn(10) == 0 {
				created = time.Time{}
			}
			// coarse values produce ties
			in[i] = candidate(
				string(rune('a'+rng.Intn(26))),
				float64(rng.Intn(5))*0.5-0.5,
				types[rng.Intn(len(types))],
				float64(rng.Intn(3))*0.5,
				created,
			)
		}

		out := r.Rerank(in)
		for i := 1; i < len(out); i++ {
			require.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
		}

		// ties keep the position of the first occurrence in the input
		firstIndex := make(map[string]int)
		for i, c := range in {
			if _, ok := firstIndex[c.ID]; !ok {
				firstIndex[c.ID] = i
			}
		}
		assert.Len(t, out, len(firstIndex))
		for i := 1; i < len(out); i++ {
			if out[i-1].Score == out[i].Score {
				assert.Less(t, firstIndex[out[i-1].ID], firstIndex[out[i].ID])
			}
		}
	}
}

func TestRerank_DoesNotModifyInput(t *testing.T) {
	r := newTestReranker()
	in := []ltm.Candidate{
		candidate("a", 0.9, ltm.TypeFact, 0.4, testNow),
		candidate("b", 0.1, ltm.TypeGoal, 0.9, testNow),
	}
	r.Rerank(in)
	assert.Equal(t, "a", in[0].ID)
	assert.Equal(t, "b", in[1].ID)
}

func TestRerank_Empty(t *testing.T) {
	assert.Empty(t, newTestReranker().Rerank(nil))
}
