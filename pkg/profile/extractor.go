package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
)

const extractPrompt = `Extract ONLY personal information from the following message.
Do NOT infer or invent anything.

Return JSON with EXACT keys:
{
  "name": null or string,
  "preferences": list of strings,
  "goals": list of strings,
  "facts": list of strings,
  "update_profile": true or false
}

If no personal information is present, return:
{"update_profile": false}

User message:
"""%s"""`

// List-valued profile keys filled by the extractor
const (
	KeyName        = "name"
	KeyPreferences = "preferences"
	KeyGoals       = "goals"
	KeyFacts       = "facts"
)

// Extraction is the extractor's parsed model answer.
type Extraction struct {
	Name          *string  `json:"name"`
	Preferences   []string `json:"preferences"`
	Goals         []string `json:"goals"`
	Facts         []string `json:"facts"`
	UpdateProfile bool     `json:"update_profile"`
}

// ParseExtraction reads the model answer, tolerating text around the JSON object.
func ParseExtraction(response string) (Extraction, error) {
	var ex Extraction
	text := strings.TrimSpace(response)
	if text == "" {
		return ex, fmt.Errorf("empty response from reasoning engine")
	}
	if err := json.Unmarshal([]byte(text), &ex); err == nil {
		return ex, nil
	}
	obj, ok := reasoning.ExtractJSONObject(text)
	if !ok {
		return ex, fmt.Errorf("no JSON object in extractor response")
	}
	if err := json.Unmarshal([]byte(obj), &ex); err != nil {
		return ex, fmt.Errorf("failed to parse extraction: %w", err)
	}
	return ex, nil
}

// Merge applies ex to a copy of p: name is replaced when given and list fields
// are unioned without duplicates, keeping existing order first. It reports
// whether anything changed.
func Merge(p Profile, ex Extraction) (Profile, bool) {
	out := p.Clone()
	if !ex.UpdateProfile {
		return out, false
	}

	changed := false
	if ex.Name != nil {
		if name := strings.TrimSpace(*ex.Name); name != "" && out[KeyName] != name {
			out[KeyName] = name
			changed = true
		}
	}
	for key, values := range map[string][]string{
		KeyPreferences: ex.Preferences,
		KeyGoals:       ex.Goals,
		KeyFacts:       ex.Facts,
	} {
		merged, grew := union(toStrings(out[key]), values)
		if grew {
			out[key] = merged
			changed = true
		}
	}
	return out, changed
}

func union(existing, add []string) ([]string, bool) {
	seen := make(map[string]bool, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, v := range existing {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	grew := false
	for _, v := range add {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		grew = true
	}
	return out, grew
}

// toStrings reads a stored list value, which is []interface{} after a JSON round trip.
func toStrings(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t != "" {
			return []string{t}
		}
	}
	return nil
}

// Extractor asks the model for personal details in a message and merges them
// into the stored profile.
type Extractor struct {
	engine reasoning.Engine
	store  Store
	opts   []reasoning.Option
}

// NewExtractor creates an Extractor.
func NewExtractor(engine reasoning.Engine, store Store, opts ...reasoning.Option) *Extractor {
	return &Extractor{engine: engine, store: store, opts: opts}
}

// ExtractAndUpdate updates the user's profile from message. It returns the
// saved profile and true when the profile changed.
func (e *Extractor) ExtractAndUpdate(ctx context.Context, userID, message string) (Profile, bool, error) {
	opts := append(append([]reasoning.Option{}, e.opts...), reasoning.WithTemperature(0))
	response, err := e.engine.Process(ctx, fmt.Sprintf(extractPrompt, message), opts...)
	if err != nil {
		return nil, false, fmt.Errorf("profile extraction failed: %w", err)
	}

	ex, err := ParseExtraction(response)
	if err != nil {
		log.DebugContext(ctx, "Ignoring unparseable profile extraction", "error", err)
		return nil, false, nil
	}
	if !ex.UpdateProfile {
		return nil, false, nil
	}

	current, _, err := e.store.Load(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	updated, changed := Merge(current, ex)
	if !changed {
		return updated, false, nil
	}
	if err := e.store.Save(ctx, userID, updated); err != nil {
		return nil, false, err
	}
	log.DebugContext(ctx, "Updated user profile from message", "user_id", userID)
	return updated, true, nil
}
