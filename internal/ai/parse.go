package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidSeverities enumerates the accepted damage severity values.
var ValidSeverities = map[string]bool{
	"minor":    true,
	"moderate": true,
	"severe":   true,
}

// ParseVerdict extracts a Verdict from model output. Models wrap JSON in
// markdown fences or prose despite instructions, so the first balanced JSON
// object in the text is parsed.
func ParseVerdict(text string) (*Verdict, error) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object in analysis response")
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("malformed analysis response: %w", err)
	}

	verdict.Severity = strings.ToLower(strings.TrimSpace(verdict.Severity))
	if !ValidSeverities[verdict.Severity] {
		verdict.Severity = "minor"
	}

	return &verdict, nil
}

// extractJSONObject returns the first balanced top-level JSON object in s.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
