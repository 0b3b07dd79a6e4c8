package writer

import (
	"encoding/json"
	"strings"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
)

// TypeIrrelevant is the classifier sentinel for messages not worth storing.
// It is never persisted as a memory type.
const TypeIrrelevant = "irrelevant"

// Classification is a validated classifier answer.
type Classification struct {
	// Type is a valid memory type or TypeIrrelevant
	Type string
	// Importance is in [0,1]
	Importance float64
}

// DefaultClassification is used when the classifier never produces a usable answer.
func DefaultClassification() Classification {
	return Classification{Type: string(ltm.TypeFact), Importance: ltm.DefaultImportance}
}

// ParseResult is either Ok(Classification) or Malformed(raw).
type ParseResult struct {
	class Classification
	raw   string
	ok    bool

	// Extracted is true when the object was found inside surrounding text
	Extracted bool
}

// Ok wraps a usable classification.
func Ok(c Classification) ParseResult {
	return ParseResult{class: c, ok: true}
}

// Malformed records classifier output that could not be used.
func Malformed(raw string) ParseResult {
	return ParseResult{raw: raw}
}

// OK reports whether the result carries a classification.
func (r ParseResult) OK() bool {
	return r.ok
}

// Classification returns the parsed value and whether it is present.
func (r ParseResult) Classification() (Classification, bool) {
	return r.class, r.ok
}

// Raw returns the unusable classifier text of a Malformed result.
func (r ParseResult) Raw() string {
	return r.raw
}

// ParseClassification reads untrusted classifier output. It tries the whole
// text as JSON, then the first balanced object inside it. A result without a
// non-empty string "type" is Malformed. The type is validated (unknown
// becomes fact) and importance parsed and clamped (unparseable becomes 0.4).
func ParseClassification(raw string) ParseResult {
	text := strings.TrimSpace(raw)
	if c, ok := decodeClassification(text); ok {
		return Ok(c)
	}
	if obj, found := reasoning.ExtractJSONObject(text); found {
		if c, ok := decodeClassification(obj); ok {
			r := Ok(c)
			r.Extracted = true
			return r
		}
	}
	return Malformed(raw)
}

func decodeClassification(text string) (Classification, bool) {
	var fields map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return Classification{}, false
	}
	if dec.More() {
		return Classification{}, false
	}

	typ, _ := fields["type"].(string)
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		return Classification{}, false
	}
	if typ != TypeIrrelevant {
		typ = string(ltm.ParseMemoryType(typ))
	}

	importance := ltm.DefaultImportance
	if v, ok := fields["importance"]; ok {
		importance = ltm.ParseImportance(v)
	}
	return Classification{Type: typ, Importance: importance}, true
}
