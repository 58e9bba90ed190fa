package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse marks model output that could not be read as JSON.
var ErrMalformedResponse = errors.New("malformed llm response")

// StripCodeFences returns the first non-language segment of a fenced reply.
func StripCodeFences(content string) string {
	cleaned := strings.TrimSpace(content)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	for _, seg := range strings.Split(cleaned, "```") {
		seg = strings.TrimSpace(seg)
		if seg == "" || strings.EqualFold(seg, "json") {
			continue
		}
		// "json\n{...}" keeps the language tag on the first line
		if first, rest, ok := strings.Cut(seg, "\n"); ok && strings.EqualFold(strings.TrimSpace(first), "json") {
			seg = strings.TrimSpace(rest)
		}
		return seg
	}
	return ""
}

// ParseResponse reads the model output into key -> raw value. It accepts a fenced
// or bare object, a {"results": ...} wrapper, and a list of {"key", "value"} items.
func ParseResponse(content string) (map[string]any, error) {
	cleaned := StripCodeFences(content)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	var data any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		// salvage an object embedded in surrounding prose
		start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if err2 := json.Unmarshal([]byte(cleaned[start:end+1]), &data); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}

	if m, ok := data.(map[string]any); ok {
		if inner, ok := m["results"]; ok {
			data = inner
		}
	}

	switch d := data.(type) {
	case map[string]any:
		return d, nil
	case []any:
		return listToMap(d), nil
	}
	return nil, fmt.Errorf("%w: top level is %T", ErrMalformedResponse, data)
}

func listToMap(items []any) map[string]any {
	out := make(map[string]any, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key, ok := m["key"].(string)
		if !ok || key == "" {
			continue
		}
		if _, dup := out[key]; dup {
			continue
		}
		out[key] = map[string]any{"value": m["value"]}
	}
	return out
}
