package ocr

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var hexLineRe = regexp.MustCompile(`0x([0-9A-Fa-f]+):`)

// HashKeys are checked in order for the job handle in a submit response.
var HashKeys = []string{"whisper_hash", "hash", "document_hash"}

// ParseHexLineNumbers returns the sorted unique line numbers of "0x<hex>:" markers.
func ParseHexLineNumbers(text string) []int {
	seen := make(map[int]struct{})
	for _, m := range hexLineRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.ParseInt(m[1], 16, 64)
		if err != nil {
			continue
		}
		seen[int(n)] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// CompressLineRange renders sorted line numbers as "1-3,7". Empty input yields "1".
func CompressLineRange(lines []int) string {
	if len(lines) == 0 {
		return "1"
	}
	var parts []string
	start, end := lines[0], lines[0]
	flush := func() {
		if start == end {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, n := range lines[1:] {
		if n == end+1 {
			end = n
			continue
		}
		flush()
		start, end = n, n
	}
	flush()
	return strings.Join(parts, ",")
}

// ExtractResultText finds the document text, which providers nest at varying depths.
func ExtractResultText(data map[string]any) string {
	if s := nonEmptyString(ExtractNested(data, "result_text")); s != "" {
		return s
	}
	if s := nonEmptyString(data["text"]); s != "" {
		return s
	}
	if ex, ok := data["extraction"].(map[string]any); ok {
		if s := nonEmptyString(ex["text"]); s != "" {
			return s
		}
	}
	return ""
}

// ExtractNested looks up key at the top level, then under "extraction", then under
// "extraction.extraction". Empty values are skipped.
func ExtractNested(data map[string]any, key string) any {
	if v := data[key]; !isBlank(v) {
		return v
	}
	ex, ok := data["extraction"].(map[string]any)
	if !ok {
		return nil
	}
	if v := ex[key]; !isBlank(v) {
		return v
	}
	inner, ok := ex["extraction"].(map[string]any)
	if !ok {
		return nil
	}
	if v := inner[key]; !isBlank(v) {
		return v
	}
	return nil
}

func extractHash(payload map[string]any) string {
	for _, k := range HashKeys {
		if v := payload[k]; !isBlank(v) {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func nonEmptyString(v any) string {
	s, _ := v.(string)
	return s
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}
