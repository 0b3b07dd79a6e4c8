package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimensions matches the all-MiniLM-L6-v2 output size
const DefaultHashDimensions = 384

// HashEmbedder is a deterministic, dependency-free embedder. It hashes padded
// character trigrams of the lowercased words into a fixed number of buckets
// and normalizes the counts, so texts sharing word fragments get a positive
// cosine similarity. It suits tests and offline runs, not semantic quality.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a HashEmbedder. Non-positive dimensions use DefaultHashDimensions.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Dimensions returns the embedding size.
func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

// Encode implements Embedder.
func (h *HashEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, h.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune(" " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			vec[bucket(string(padded[i:i+3]), h.dimensions)]++
		}
	}

	return normalize(vec), nil
}

func bucket(gram string, dims int) int {
	f := fnv.New64a()
	f.Write([]byte(gram))
	return int(f.Sum64() % uint64(dims))
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	n := float32(math.Sqrt(norm))
	for i, v := range vec {
		vec[i] = v / n
	}
	return vec
}
