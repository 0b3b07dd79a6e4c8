package mmu

import (
	"context"
	"strings"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

const (
	// beforeEncodeFuncName is the name of the Lua function to call before a memory is written.
	// It receives the pending record and may return false to veto the write or a
	// table overriding text, memory_type or importance.
	beforeEncodeFuncName = "before_encode"

	// afterEncodeFuncName is the name of the Lua function to call after a memory is written
	afterEncodeFuncName = "after_encode"
)

// beforeEncode runs the before_encode hook if loaded. Hook errors are logged
// and the record passes through unchanged.
func (m *MemoryStore) beforeEncode(ctx context.Context, text string, md ltm.Metadata) (string, ltm.Metadata, bool) {
	if m.scriptEngine == nil || !m.scriptEngine.HasFunction(beforeEncodeFuncName) {
		return text, md, true
	}

	pending := map[string]interface{}{
		"text":        text,
		"user_id":     md.UserID,
		"session_id":  md.SessionID,
		"memory_type": string(md.Type),
		"importance":  md.Importance,
	}
	result, err := m.scriptEngine.ExecuteFunction(ctx, beforeEncodeFuncName, pending)
	if err != nil {
		log.WarnContext(ctx, "Error calling Lua hook",
			"hook", beforeEncodeFuncName,
			"error", err)
		return text, md, true
	}

	switch r := result.(type) {
	case bool:
		return text, md, r
	case map[string]interface{}:
		if t, ok := r["text"].(string); ok && strings.TrimSpace(t) != "" {
			text = t
		}
		if t, ok := r["memory_type"].(string); ok {
			md.Type = ltm.ParseMemoryType(t)
		}
		if v, ok := r["importance"]; ok {
			md.Importance = ltm.ParseImportance(v)
		}
		md.Normalize()
	}
	return text, md, true
}

// afterEncode notifies the after_encode hook of a stored id.
func (m *MemoryStore) afterEncode(ctx context.Context, id string) {
	if m.scriptEngine == nil || !m.scriptEngine.HasFunction(afterEncodeFuncName) {
		return
	}
	if _, err := m.scriptEngine.ExecuteFunction(ctx, afterEncodeFuncName, id); err != nil {
		log.WarnContext(ctx, "Error calling Lua hook",
			"hook", afterEncodeFuncName,
			"error", err)
	}
}
