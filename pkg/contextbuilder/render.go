package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

// SectionSeparator separates prompt sections in Render.
const SectionSeparator = "\n\n---\n\n"

const assistantPreamble = `You are a concise, factual AI assistant.
Always give short, meaningful answers.
Do not ask unnecessary questions.
Do not repeat information unless the user requests it.
Do not create stories or add emotional filler.
Maximum 2-3 sentences per answer unless the user explicitly asks for a long explanation.`

// Sections renders the profile, memory and conversation sections of items,
// in that order, skipping empty ones. The query item is not included.
func Sections(items []Item) []string {
	var (
		profile  []string
		memories []string
		history  []string
	)
	for _, it := range items {
		switch it.Source {
		case SourceProfile:
			profile = append(profile, it.Text)
		case SourceMemory:
			memType := ltm.TypeFact
			if it.Metadata != nil {
				memType = ltm.ParseMemoryType(it.Metadata[ltm.KeyMemoryType])
			}
			memories = append(memories, fmt.Sprintf("- (%s) %s", memType, it.Text))
		case SourceUser, SourceAssistant:
			history = append(history, fmt.Sprintf("%s: %s", strings.ToUpper(string(it.Source)), it.Text))
		}
	}

	var sections []string
	if len(profile) > 0 {
		sections = append(sections, assistantPreamble+"\n\nUSER PROFILE:\n"+strings.Join(profile, "\n"))
	}
	if len(memories) > 0 {
		sections = append(sections, "RELEVANT MEMORIES:\n"+strings.Join(memories, "\n"))
	}
	if len(history) > 0 {
		sections = append(sections, "RECENT CONVERSATION:\n"+strings.Join(history, "\n"))
	}
	return sections
}

// Render produces the full prompt text for items, ending with the query block
// when a query item survived the budget.
func Render(items []Item) string {
	sections := Sections(items)
	for _, it := range items {
		if it.Source == SourceQuery {
			sections = append(sections, "USER QUERY:\n"+it.Text)
		}
	}
	return strings.Join(sections, SectionSeparator)
}
