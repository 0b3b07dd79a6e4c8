package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/reasoning/adapters/mock"
)

func strPtr(s string) *string { return &s }

func TestParseExtraction(t *testing.T) {
	ex, err := ParseExtraction(`{"name":"Alice","preferences":["tea"],"goals":[],"facts":["has a cat"],"update_profile":true}`)
	require.NoError(t, err)
	require.NotNil(t, ex.Name)
	assert.Equal(t, "Alice", *ex.Name)
	assert.Equal(t, []string{"tea"}, ex.Preferences)
	assert.True(t, ex.UpdateProfile)

	ex, err = ParseExtraction("Here you go:\n```json\n{\"name\": null, \"goals\": [\"learn Go\"], \"update_profile\": true}\n```")
	require.NoError(t, err)
	assert.Nil(t, ex.Name)
	assert.Equal(t, []string{"learn Go"}, ex.Goals)

	_, err = ParseExtraction("")
	assert.Error(t, err)
	_, err = ParseExtraction("no personal info")
	assert.Error(t, err)
	_, err = ParseExtraction(`{update_profile: yes}`)
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	current := Profile{
		"name":        "Al",
		"preferences": []interface{}{"tea", "jazz"},
		"city":        "Lisbon",
	}

	merged, changed := Merge(current, Extraction{
		Name:          strPtr("Alice"),
		Preferences:   []string{"jazz", "hiking", " "},
		Goals:         []string{"run a marathon"},
		UpdateProfile: true,
	})
	assert.True(t, changed)
	assert.Equal(t, "Alice", merged["name"])
	assert.Equal(t, []string{"tea", "jazz", "hiking"}, merged["preferences"])
	assert.Equal(t, []string{"run a marathon"}, merged["goals"])
	assert.Equal(t, "Lisbon", merged["city"])
	assert.NotContains(t, merged, "facts")

	// input is untouched
	assert.Equal(t, "Al", current["name"])

	_, changed = Merge(merged, Extraction{Preferences: []string{"tea"}, UpdateProfile: true})
	assert.False(t, changed)

	_, changed = Merge(current, Extraction{Name: strPtr("Bob"), UpdateProfile: false})
	assert.False(t, changed)
}

func TestExtractor_ExtractAndUpdate(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewMockEngine()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, "alice", Profile{"goals": []string{"learn Go"}}))
	x := NewExtractor(engine, store)

	engine.QueueResponses(`{"name":"Alice","goals":["run a marathon"],"update_profile":true}`)
	p, changed, err := x.ExtractAndUpdate(ctx, "alice", "I'm Alice and I want to run a marathon")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Alice", p["name"])

	saved, _, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"learn Go", "run a marathon"}, saved["goals"])

	history := engine.GetCallHistory()
	require.NotEmpty(t, history)
	assert.Contains(t, history[len(history)-1].Args[1], "I'm Alice and I want to run a marathon")
}

func TestExtractor_NoUpdate(t *testing.T) {
	ctx := context.Background()
	engine := mock.NewMockEngine()
	store := NewMemoryStore()
	x := NewExtractor(engine, store)

	for _, resp := range []string{`{"update_profile": false}`, `I could not find anything`} {
		engine.QueueResponses(resp)
		p, changed, err := x.ExtractAndUpdate(ctx, "bob", "what is the weather")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Nil(t, p)
	}
	_, ok, err := store.Load(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractor_EngineError(t *testing.T) {
	engine := mock.NewMockEngine(mock.WithShouldError(true))
	x := NewExtractor(engine, NewMemoryStore())

	_, _, err := x.ExtractAndUpdate(context.Background(), "bob", "I'm Bob")
	assert.Error(t, err)
}
