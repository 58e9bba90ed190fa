package llm

// BuildResponseSchema returns the JSON Schema (draft 2020-12 subset) a parsed model
// reply must satisfy. Each declared key, when present, holds a scalar, a list of
// scalars, or an object whose "value" is one of those. Missing keys are allowed and
// unknown keys are left for SanitizeFields to drop.
func BuildResponseSchema(keys []string) map[string]any {
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = fieldProp()
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

func fieldProp() map[string]any {
	return map[string]any{
		"anyOf": []any{
			valueProp(),
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"value": valueProp(),
				},
			},
		},
	}
}

func valueProp() map[string]any {
	scalar := map[string]any{"type": []string{"string", "number", "boolean", "null"}}
	return map[string]any{
		"anyOf": []any{
			scalar,
			map[string]any{"type": "array", "items": scalar},
		},
	}
}
