package extract

import (
	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/geometry"
	"github.com/joseph-ayodele/docextract/internal/locate"
	"github.com/joseph-ayodele/docextract/internal/template"
)

// Request is one field-extraction call.
type Request struct {
	Text     string
	Template *template.Template
	FileName string

	// BoundingBoxes is the raw provider or upload payload; it is normalized when Lines is empty.
	BoundingBoxes any
	Lines         []geometry.LineRecord

	// Words, when set, enables word_indexes on each field.
	Words []geometry.WordRecord
}

// Field is the extraction result for one template key. Value is "" when not found.
type Field struct {
	Value       string            `json:"value"`
	Citations   []locate.Citation `json:"citations"`
	LineIndexes []int             `json:"line_indexes"`
	WordIndexes []int             `json:"word_indexes"`
}

// Result always holds every template key.
type Result struct {
	Keys     []string               `json:"-"`
	Fields   map[string]Field       `json:"fields"`
	State    constants.ExtractState `json:"state"`
	Degraded bool                   `json:"degraded"`
	Attempts int                    `json:"attempts"`
	Dropped  []string               `json:"dropped_keys,omitempty"`
}

// NamedField pairs a key with its field, for ordered output.
type NamedField struct {
	Key string `json:"key"`
	Field
}

// Ordered returns the fields in template order.
func (r *Result) Ordered() []NamedField {
	out := make([]NamedField, 0, len(r.Keys))
	for _, k := range r.Keys {
		out = append(out, NamedField{Key: k, Field: r.Fields[k]})
	}
	return out
}

func emptyField() Field {
	return Field{
		Citations:   []locate.Citation{},
		LineIndexes: []int{},
		WordIndexes: []int{},
	}
}
