package analyses

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrJSONExtraction marks model output with no parseable JSON object in it.
var ErrJSONExtraction = errors.New("no JSON object in model output")

// extractJSON pulls a JSON object out of raw model text. Tolerates bare
// JSON, code-fenced JSON and JSON buried in surrounding prose.
func extractJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	var direct map[string]any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct, nil
	}

	if fenced, ok := unfence(text); ok {
		var out map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(fenced)), &out); err == nil {
			return out, nil
		}
	}

	if candidate, ok := braceSpan(text); ok {
		var out map[string]any
		if err := json.Unmarshal([]byte(candidate), &out); err == nil {
			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrJSONExtraction, textSnippet(text))
}

// unfence returns the content of the first code fence. An unclosed fence
// yields everything after the opening marker.
func unfence(text string) (string, bool) {
	marker := "```json"
	idx := strings.Index(text, marker)
	if idx < 0 {
		marker = "```"
		idx = strings.Index(text, marker)
	}
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(marker):]
	if end := strings.Index(rest, "```"); end >= 0 {
		return rest[:end], true
	}
	return rest, true
}

// braceSpan returns the span from the first '{' to its matching '}' by
// plain brace counting. Counting is textual and does not track string
// context; the parse attempt afterwards rejects bad spans.
func braceSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func textSnippet(text string) string {
	if len(text) > 300 {
		return text[:300]
	}
	return text
}
