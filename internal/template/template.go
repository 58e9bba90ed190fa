// Package template loads extraction templates: named field sets read from JSON files.
package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Template is an ordered set of field keys with their specs.
type Template struct {
	Name   string
	Keys   []string
	Fields map[string]any
}

// Spec returns the field spec for key.
func (t *Template) Spec(key string) any {
	return t.Fields[key]
}

// fileSchema is the minimal shape of a template file.
var fileSchema = map[string]any{
	"type":          "object",
	"minProperties": 1,
}

// Parse decodes a template document. Key order follows the document. A single
// top-level "fields" object is unwrapped.
func Parse(name string, data []byte) (*Template, error) {
	if !json.Valid(data) {
		return nil, common.NewAppError(common.CodeTemplateInvalid,
			fmt.Sprintf("template %q is not valid JSON", name), common.ErrTemplateInvalid)
	}
	if err := llm.ValidateJSONAgainstSchema(fileSchema, data); err != nil {
		return nil, common.NewAppError(common.CodeTemplateInvalid,
			fmt.Sprintf("template %q must be a non-empty JSON object", name), fmt.Errorf("%w: %v", common.ErrTemplateInvalid, err))
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, common.NewAppError(common.CodeTemplateInvalid, err.Error(), common.ErrTemplateInvalid)
	}
	keys, err := objectKeys(data)
	if err != nil {
		return nil, common.NewAppError(common.CodeTemplateInvalid, err.Error(), common.ErrTemplateInvalid)
	}

	if inner, ok := fields["fields"].(map[string]any); ok && len(keys) == 1 {
		var wrapper struct {
			Fields json.RawMessage `json:"fields"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, common.NewAppError(common.CodeTemplateInvalid, err.Error(), common.ErrTemplateInvalid)
		}
		if keys, err = objectKeys(wrapper.Fields); err != nil {
			return nil, common.NewAppError(common.CodeTemplateInvalid, err.Error(), common.ErrTemplateInvalid)
		}
		fields = inner
	}
	if len(keys) == 0 {
		return nil, common.NewAppError(common.CodeTemplateInvalid,
			fmt.Sprintf("template %q declares no fields", name), common.ErrTemplateInvalid)
	}

	return &Template{Name: name, Keys: keys, Fields: fields}, nil
}

// ParseInline parses a template sent with a request. Its failures are caller
// input errors, not configuration errors.
func ParseInline(name string, data []byte) (*Template, error) {
	t, err := Parse(name, data)
	if err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, common.MessageOf(err), err)
	}
	return t, nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object")
	}
	var keys []string
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", tok)
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return keys, nil
}
