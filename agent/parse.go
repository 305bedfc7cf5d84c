package agent

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONPayload = errors.New("no json payload in response")

// unmarshalLenient decodes JSON from an LLM response, tolerating the noise
// models wrap around payloads: surrounding prose, markdown code fences, and
// trailing commentary. It first tries the trimmed response verbatim, then
// falls back to the first balanced JSON value found in the text.
func unmarshalLenient(raw string, v any) error {
	trimmed := strings.TrimSpace(stripCodeFences(raw))
	if trimmed == "" {
		return errNoJSONPayload
	}
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}
	payload, ok := extractJSON(trimmed)
	if !ok {
		return errNoJSONPayload
	}
	return json.Unmarshal([]byte(payload), v)
}

// stripCodeFences removes a markdown code fence wrapper, with or without a
// language tag, when the response is fenced.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

// firstLine returns the first non-empty line of an LLM response, trimmed
// and with any wrapping quotes removed. Rewrite and expansion prompts ask
// for a single line, but models occasionally add quotes or a trailing
// explanation anyway.
func firstLine(s string) string {
	for _, line := range strings.Split(stripCodeFences(s), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) >= 2 {
			if (line[0] == '"' && line[len(line)-1] == '"') ||
				(line[0] == '\'' && line[len(line)-1] == '\'') {
				line = strings.TrimSpace(line[1 : len(line)-1])
			}
		}
		return line
	}
	return ""
}

// extractJSON returns the first balanced JSON object or array in s. The scan
// is string-aware so braces inside JSON strings do not confuse the depth
// count.
func extractJSON(s string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
