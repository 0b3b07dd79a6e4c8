package ltm

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CosineDistance is 1 - CosineSimilarity, in [0,2].
func CosineDistance(a, b []float32) float64 {
	d := 1 - CosineSimilarity(a, b)
	if d < 0 {
		return 0
	}
	return d
}

// NearestByCosine scores records against query and returns the k closest,
// nearest first. Adapters without a native index use it for Query.
func NearestByCosine(records []Record, query []float32, k int) []Candidate {
	cands := make([]Candidate, 0, len(records))
	for _, r := range records {
		cands = append(cands, Candidate{
			ID:        r.ID,
			Text:      r.Text,
			Metadata:  r.Metadata,
			Distance:  CosineDistance(query, r.Embedding),
			Embedding: r.Embedding,
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Distance < cands[j].Distance
	})
	if k >= 0 && len(cands) > k {
		cands = cands[:k]
	}
	return cands
}

// SortNewestFirst orders records by created_at descending, ties broken by id.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ci, cj := records[i].Metadata.CreatedAt, records[j].Metadata.CreatedAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return records[i].ID < records[j].ID
	})
}
