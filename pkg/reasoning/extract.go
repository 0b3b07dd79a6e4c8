package reasoning

// ExtractJSONObject returns the first balanced {...} substring of raw. Braces
// inside double-quoted strings are ignored. It reports false when no opening
// brace has a matching close.
func ExtractJSONObject(raw string) (string, bool) {
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}
		if end, ok := matchBrace(raw, start); ok {
			return raw[start : end+1], true
		}
	}
	return "", false
}

// matchBrace finds the index of the brace closing raw[start].
func matchBrace(raw string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
