package llm

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// SanitizeFields restricts parsed output to the template keys. Unknown keys are
// dropped with a warning; template keys the model omitted come back with a nil Value.
func SanitizeFields(parsed map[string]any, keys []string, logger *slog.Logger) (map[string]FieldValue, []string) {
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}

	dropped := make([]string, 0)
	for _, k := range slices.Sorted(maps.Keys(parsed)) {
		if _, ok := allowed[k]; !ok {
			dropped = append(dropped, k)
		}
	}

	out := make(map[string]FieldValue, len(keys))
	missing := 0
	for _, k := range keys {
		raw, ok := parsed[k]
		if !ok {
			out[k] = FieldValue{}
			missing++
			continue
		}
		out[k] = FieldValue{Value: coerceValue(raw)}
	}

	if len(dropped) > 0 {
		logger.Warn("llm.extract.sanitize", "dropped", dropped)
	}
	if missing > 0 {
		logger.Debug("llm.extract.sanitize", "missing", missing)
	}
	return out, dropped
}

// coerceValue unwraps {"value": x} and renders scalars as trimmed strings.
func coerceValue(raw any) *string {
	if m, ok := raw.(map[string]any); ok {
		v, ok := m["value"]
		if !ok {
			return nil
		}
		raw = v
	}
	var s string
	switch t := raw.(type) {
	case nil:
		return nil
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if v := coerceValue(p); v != nil && *v != "" {
				parts = append(parts, *v)
			}
		}
		s = strings.Join(parts, " ")
	default:
		s = strings.TrimSpace(fmt.Sprint(t))
	}
	return &s
}
