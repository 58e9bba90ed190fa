package geometry

// Candidate key tables. Lookups walk each table in order and take the first key
// holding a usable value, so the order here is the precedence.
var (
	// LineBoxKeys locate the raw box of a line entry.
	LineBoxKeys = []string{"raw_box", "raw", "bbox", "box"}

	// LineNumberKeys locate the provider line number of a line entry.
	LineNumberKeys = []string{"line_index", "line_number", "line_no", "line"}

	// LineTextKeys locate the text of a line entry.
	LineTextKeys = []string{"text", "line_text"}

	// PageHeightKeys locate an explicit page height on a line entry.
	PageHeightKeys = []string{"page_height", "pageHeight"}

	// LineListKeys locate the line list inside a wrapper object.
	LineListKeys = []string{"line_metadata", "lines"}

	// WordBoxKeys locate the box of a word entry.
	WordBoxKeys = []string{"bbox", "bounding_box"}

	// WordPageKeys locate the page number of a pages[] entry.
	WordPageKeys = []string{"page", "index"}
)

// Dict-shaped box key sets, tried in order.
var (
	xywhKeys        = []string{"x", "y", "width", "height"}
	ltrbKeys        = []string{"left", "top", "right", "bottom"}
	providerBoxKeys = []string{"page", "base_y", "height", "page_height"}
)

// firstPresent returns the value of the first key in keys that is present and non-empty.
func firstPresent(m map[string]any, keys []string) (any, string, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || isEmpty(v) {
			continue
		}
		return v, k, true
	}
	return nil, "", false
}

func hasAll(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}
