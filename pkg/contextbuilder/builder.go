// Package contextbuilder assembles the bounded, ordered context handed to the
// completion service: profile, ranked memories, recent turns and the query.
package contextbuilder

import (
	"strings"
	"unicode/utf8"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/pkg/rerank"
	"github.com/devxilz/mcp-chatbot/pkg/turnlog"
)

// Source tells where a context item came from.
type Source string

// Item sources
const (
	SourceProfile   Source = "profile"
	SourceMemory    Source = "memory"
	SourceUser      Source = "user"
	SourceAssistant Source = "assistant"
	SourceQuery     Source = "query"
)

// Defaults
const (
	DefaultDedupeThreshold = 0.88
	DefaultRecentTurns     = 5
	DefaultCharsPerToken   = 4
)

// Item is one element of an assembled context. It lives for one request.
type Item struct {
	Source   Source            `json:"source"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// Distance is set on memory items
	Distance *float64 `json:"distance,omitempty"`

	// Embedding is set on items that take part in deduplication
	Embedding []float32 `json:"-"`
}

// Assembler merges and trims context items. The zero value is not usable; use New.
type Assembler struct {
	// DedupeThreshold is the cosine similarity at or above which an embedded
	// item is dropped as a near duplicate of an accepted one
	DedupeThreshold float64

	// RecentTurns is how many of the latest conversation turns are included
	RecentTurns int

	// CharsPerToken is the token size approximation used for the budget
	CharsPerToken int
}

// New returns an Assembler with default settings.
func New() *Assembler {
	return &Assembler{
		DedupeThreshold: DefaultDedupeThreshold,
		RecentTurns:     DefaultRecentTurns,
		CharsPerToken:   DefaultCharsPerToken,
	}
}

// Assemble builds the context in fixed order: profile (if any), memories in
// rank order, the latest RecentTurns turns oldest to newest, then the query.
// Near-duplicate embedded items are dropped and the result is trimmed to
// maxBudget approximate tokens with a single forward pass. A non-positive
// maxBudget disables trimming.
func (a *Assembler) Assemble(query string, recent []turnlog.Turn, ranked []rerank.Scored, profileText string, maxBudget int) []Item {
	items := make([]Item, 0, len(ranked)+a.RecentTurns+2)

	if strings.TrimSpace(profileText) != "" {
		items = append(items, Item{Source: SourceProfile, Text: profileText})
	}
	for _, s := range ranked {
		items = append(items, memoryItem(s))
	}
	for _, t := range lastTurns(recent, a.RecentTurns) {
		items = append(items, Item{Source: turnSource(t.Role), Text: t.Text})
	}
	items = append(items, Item{Source: SourceQuery, Text: query})

	items = a.dedupe(items)
	if maxBudget > 0 {
		items = a.trim(items, maxBudget)
	}
	return items
}

// Tokens approximates the token count of text.
func (a *Assembler) Tokens(text string) int {
	cpt := a.CharsPerToken
	if cpt <= 0 {
		cpt = DefaultCharsPerToken
	}
	n := utf8.RuneCountInString(text)
	return (n + cpt - 1) / cpt
}

// Size returns the approximate total tokens of items.
func (a *Assembler) Size(items []Item) int {
	total := 0
	for _, it := range items {
		total += a.Tokens(it.Text)
	}
	return total
}

func (a *Assembler) dedupe(items []Item) []Item {
	out := make([]Item, 0, len(items))
	var accepted [][]float32
	for _, it := range items {
		if len(it.Embedding) == 0 {
			out = append(out, it)
			continue
		}
		if isDuplicate(it.Embedding, accepted, a.DedupeThreshold) {
			continue
		}
		accepted = append(accepted, it.Embedding)
		out = append(out, it)
	}
	return out
}

func isDuplicate(vec []float32, accepted [][]float32, threshold float64) bool {
	for _, prev := range accepted {
		if ltm.CosineSimilarity(vec, prev) >= threshold {
			return true
		}
	}
	return false
}

// trim keeps the longest prefix of items that fits the budget.
func (a *Assembler) trim(items []Item, maxBudget int) []Item {
	used := 0
	for i, it := range items {
		size := a.Tokens(it.Text)
		if used+size > maxBudget {
			return items[:i]
		}
		used += size
	}
	return items
}

func memoryItem(s rerank.Scored) Item {
	d := s.Distance
	return Item{
		Source:    SourceMemory,
		Text:      s.Text,
		Metadata:  s.Metadata.Flatten(),
		Distance:  &d,
		Embedding: s.Embedding,
	}
}

func lastTurns(turns []turnlog.Turn, n int) []turnlog.Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

func turnSource(role string) Source {
	if strings.EqualFold(role, turnlog.RoleUser) {
		return SourceUser
	}
	return SourceAssistant
}
