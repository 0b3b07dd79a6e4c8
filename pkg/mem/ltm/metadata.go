package ltm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// MemoryType is the closed category of a memory. It drives ranking weight.
type MemoryType string

// Memory types
const (
	TypePersonalInfo MemoryType = "personal_info"
	TypePreference   MemoryType = "preference"
	TypeGoal         MemoryType = "goal"
	TypeTask         MemoryType = "task"
	TypeFact         MemoryType = "fact"
	TypeShortTerm    MemoryType = "short_term"
	TypeCompressed   MemoryType = "compressed"
)

// DefaultImportance is used when no importance is given or it cannot be parsed
const DefaultImportance = 0.4

// Flat metadata keys
const (
	KeyUserID     = "user_id"
	KeySessionID  = "session_id"
	KeyMemoryType = "memory_type"
	KeyImportance = "importance"
	KeyCreatedAt  = "created_at"
	KeyUpdatedAt  = "updated_at"
)

// MemoryTypes lists every valid memory type.
var MemoryTypes = []MemoryType{
	TypePersonalInfo, TypePreference, TypeGoal, TypeTask, TypeFact, TypeShortTerm, TypeCompressed,
}

// Valid reports whether t is one of the enumerated memory types.
func (t MemoryType) Valid() bool {
	for _, v := range MemoryTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ParseMemoryType normalizes s into a MemoryType. Unknown values become TypeFact.
func ParseMemoryType(s string) MemoryType {
	t := MemoryType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TypeFact
}

// ClampImportance limits v to [0,1]. NaN becomes DefaultImportance.
func ClampImportance(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultImportance
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// ParseImportance converts an untrusted value into an importance in [0,1].
// Numbers and numeric strings are accepted; anything else yields DefaultImportance.
func ParseImportance(v any) float64 {
	switch n := v.(type) {
	case float64:
		return ClampImportance(n)
	case float32:
		return ClampImportance(float64(n))
	case int:
		return ClampImportance(float64(n))
	case int64:
		return ClampImportance(float64(n))
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return DefaultImportance
		}
		return ClampImportance(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return DefaultImportance
		}
		return ClampImportance(f)
	}
	return DefaultImportance
}

// Metadata is the fixed metadata record attached to every memory.
type Metadata struct {
	UserID     string
	SessionID  string
	Type       MemoryType
	Importance float64

	// CreatedAt is set once. The zero value means the timestamp is missing.
	CreatedAt time.Time
	// UpdatedAt is refreshed on every mutation
	UpdatedAt time.Time

	// Extra holds caller-supplied keys outside the fixed schema
	Extra map[string]string
}

// NewMetadata returns metadata with defaults applied and both timestamps set to now.
func NewMetadata(userID, sessionID string, memType MemoryType, now time.Time) Metadata {
	return Metadata{
		UserID:     userID,
		SessionID:  sessionID,
		Type:       ParseMemoryType(string(memType)),
		Importance: DefaultImportance,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Normalize coerces the record into its invariants: a valid type, importance in
// [0,1] and created_at not after updated_at.
func (m *Metadata) Normalize() {
	m.Type = ParseMemoryType(string(m.Type))
	m.Importance = ClampImportance(m.Importance)
	if !m.CreatedAt.IsZero() && m.UpdatedAt.Before(m.CreatedAt) {
		m.UpdatedAt = m.CreatedAt
	}
}

// Flatten renders the metadata as flat string pairs, the form stores filter on.
func (m Metadata) Flatten() map[string]string {
	flat := make(map[string]string, len(m.Extra)+6)
	for k, v := range m.Extra {
		flat[k] = v
	}
	flat[KeyUserID] = m.UserID
	flat[KeySessionID] = m.SessionID
	flat[KeyMemoryType] = string(m.Type)
	flat[KeyImportance] = strconv.FormatFloat(m.Importance, 'f', -1, 64)
	flat[KeyCreatedAt] = formatUnix(m.CreatedAt)
	flat[KeyUpdatedAt] = formatUnix(m.UpdatedAt)
	return flat
}

// MetadataFromMap parses flat metadata read back from a store. It never fails:
// unknown types are coerced to fact, bad importance becomes the default and an
// unparseable timestamp is left as the zero time.
func MetadataFromMap(flat map[string]string) Metadata {
	m := Metadata{
		UserID:     flat[KeyUserID],
		SessionID:  flat[KeySessionID],
		Type:       ParseMemoryType(flat[KeyMemoryType]),
		Importance: DefaultImportance,
		CreatedAt:  parseUnix(flat[KeyCreatedAt]),
		UpdatedAt:  parseUnix(flat[KeyUpdatedAt]),
	}
	if v, ok := flat[KeyImportance]; ok {
		m.Importance = ParseImportance(v)
	}
	for k, v := range flat {
		if isReservedKey(k) {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[k] = v
	}
	m.Normalize()
	return m
}

// Merge applies a shallow merge of flat keys over the metadata. New keys override
// old ones and unset fields are preserved. created_at and updated_at are not
// caller-writable and are ignored here.
func (m Metadata) Merge(updates map[string]string) Metadata {
	out := m
	out.Extra = make(map[string]string, len(m.Extra)+len(updates))
	for k, v := range m.Extra {
		out.Extra[k] = v
	}
	for k, v := range updates {
		switch k {
		case KeyUserID:
			out.UserID = v
		case KeySessionID:
			out.SessionID = v
		case KeyMemoryType:
			out.Type = ParseMemoryType(v)
		case KeyImportance:
			out.Importance = ParseImportance(v)
		case KeyCreatedAt, KeyUpdatedAt:
		default:
			out.Extra[k] = v
		}
	}
	if len(out.Extra) == 0 {
		out.Extra = nil
	}
	out.Normalize()
	return out
}

// MarshalJSON encodes the metadata in its flat form.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flatten())
}

// UnmarshalJSON decodes flat metadata, applying the same coercions as MetadataFromMap.
// Non-string values written by other tools are accepted and stringified.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	flat := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			flat[k] = t
		case json.Number:
			flat[k] = t.String()
		case nil:
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return err
			}
			flat[k] = string(b)
		}
	}
	*m = MetadataFromMap(flat)
	return nil
}

func isReservedKey(k string) bool {
	switch k {
	case KeyUserID, KeySessionID, KeyMemoryType, KeyImportance, KeyCreatedAt, KeyUpdatedAt:
		return true
	}
	return false
}

func formatUnix(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// parseUnix accepts integer or fractional unix seconds and RFC3339 strings.
func parseUnix(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			return time.Time{}
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
