package geometry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// payloadShape tags the structural shape of a provider line payload.
type payloadShape int

const (
	shapeUnknown payloadShape = iota
	shapeWrapped              // {"line_metadata": [...]}
	shapeList                 // [...]
	shapeKeyed                // {"1": {...}, "2": {...}}
	shapeCanonical            // []LineRecord already in memory
)

func (s payloadShape) String() string {
	switch s {
	case shapeWrapped:
		return "wrapped"
	case shapeList:
		return "list"
	case shapeKeyed:
		return "keyed"
	case shapeCanonical:
		return "canonical"
	}
	return "unknown"
}

// rawLine is one provider entry plus the line number its shape assigned it.
type rawLine struct {
	entry  map[string]any
	number int
}

// Normalizer converts provider line metadata into canonical LineRecords.
type Normalizer struct {
	logger *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize accepts any of the provider shapes and returns canonical line records.
// fullText, when non-empty, supplies text for entries that carry none.
// Entries without a usable box are dropped; a bad entry never fails the whole payload.
func (n *Normalizer) Normalize(payload any, fullText string) []LineRecord {
	if lines, ok := payload.([]LineRecord); ok {
		return n.normalizeCanonical(lines)
	}

	shape, entries := detectShape(payload)
	if shape == shapeUnknown {
		n.logger.Debug("geometry.normalize.unrecognized", "type", fmt.Sprintf("%T", payload))
		return []LineRecord{}
	}

	var textLines []string
	if fullText != "" {
		textLines = strings.Split(fullText, "\n")
	}

	out := make([]LineRecord, 0, len(entries))
	seen := make(map[int]struct{}, len(entries))
	skipped := 0
	for _, rl := range entries {
		rec, err := n.toRecord(rl, textLines)
		if err != nil {
			skipped++
			n.logger.Debug("geometry.normalize.skip", "line", rl.number, "reason", err.Error())
			continue
		}
		if _, dup := seen[rec.LineIndex]; dup {
			skipped++
			n.logger.Debug("geometry.normalize.skip", "line", rec.LineIndex, "reason", "duplicate line index")
			continue
		}
		seen[rec.LineIndex] = struct{}{}
		out = append(out, rec)
	}

	n.logger.Debug("geometry.normalize.done", "shape", shape.String(), "in", len(entries), "out", len(out), "skipped", skipped)
	return out
}

func (n *Normalizer) normalizeCanonical(lines []LineRecord) []LineRecord {
	out := make([]LineRecord, 0, len(lines))
	for _, l := range lines {
		if !l.HasBox() {
			continue
		}
		if l.Page == 0 {
			l.Page = 1
		}
		out = append(out, l)
	}
	return out
}

var (
	errNoBox   = errors.New("no box")
	errZeroBox = errors.New("all-zero placeholder box")
)

func (n *Normalizer) toRecord(rl rawLine, textLines []string) (LineRecord, error) {
	raw, ok := discoverBox(rl.entry)
	if !ok {
		return LineRecord{}, errNoBox
	}
	box, err := convertBox(raw)
	if err != nil {
		return LineRecord{}, err
	}
	// exact equality only: providers emit literal zero rows as placeholders
	if box == [4]int{} {
		return LineRecord{}, errZeroBox
	}

	if box[3] == 0 {
		if v, _, ok := firstPresent(rl.entry, PageHeightKeys); ok {
			if ph, err := toInt(v); err == nil {
				box[3] = ph
			}
		}
	}

	page := optInt(rl.entry["page"], box[0])
	if page == 0 {
		page = 1
	}
	// bbox[0] carries the page too
	if box[0] == 0 {
		box[0] = page
	}

	text := ""
	if v, _, ok := firstPresent(rl.entry, LineTextKeys); ok {
		text = toString(v)
	} else if i := rl.number - 1; i >= 0 && i < len(textLines) {
		text = textLines[i]
	}

	return LineRecord{
		LineIndex: rl.number,
		Text:      text,
		Page:      page,
		BBox:      box,
	}, nil
}

// detectShape dispatches on the payload structure and flattens it into ordered entries.
func detectShape(payload any) (payloadShape, []rawLine) {
	switch p := payload.(type) {
	case []any:
		return shapeList, listEntries(p)
	case []map[string]any:
		items := make([]any, len(p))
		for i := range p {
			items[i] = p[i]
		}
		return shapeList, listEntries(items)
	case map[string]any:
		if v, _, ok := firstPresent(p, LineListKeys); ok {
			if list, ok := v.([]any); ok {
				return shapeWrapped, listEntries(list)
			}
		}
		if inner, ok := p["bounding_boxes"].(map[string]any); ok {
			return detectShape(inner)
		}
		if entries := keyedEntries(p); len(entries) > 0 {
			return shapeKeyed, entries
		}
	}
	return shapeUnknown, nil
}

func listEntries(list []any) []rawLine {
	out := make([]rawLine, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		number := i + 1
		if v, _, ok := firstPresent(m, LineNumberKeys); ok {
			if ln, err := toInt(v); err == nil {
				number = ln
			}
		}
		out = append(out, rawLine{entry: m, number: number})
	}
	return out
}

// keyedEntries collects entries whose key parses as an integer, ascending by that number.
func keyedEntries(m map[string]any) []rawLine {
	out := make([]rawLine, 0, len(m))
	for k, v := range m {
		ln, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, rawLine{entry: entry, number: ln})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].number < out[j].number })
	return out
}

// discoverBox walks LineBoxKeys, then falls back to the first 4+ element sequence
// among the remaining values (keys visited in sorted order).
func discoverBox(entry map[string]any) (any, bool) {
	if v, _, ok := firstPresent(entry, LineBoxKeys); ok {
		return v, true
	}
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if seq, ok := entry[k].([]any); ok && len(seq) >= 4 {
			return seq, true
		}
	}
	return nil, false
}

// convertBox coerces a discovered box into the 4-int tuple.
func convertBox(raw any) ([4]int, error) {
	var box [4]int
	switch b := raw.(type) {
	case []any:
		if len(b) < 4 {
			return box, fmt.Errorf("%w: sequence of %d values", common.ErrUnsupportedBoxFormat, len(b))
		}
		for i := 0; i < 4; i++ {
			v, err := toInt(b[i])
			if err != nil {
				return box, fmt.Errorf("box[%d]: %w", i, err)
			}
			box[i] = v
		}
		return box, nil
	case []int:
		if len(b) < 4 {
			return box, fmt.Errorf("%w: sequence of %d values", common.ErrUnsupportedBoxFormat, len(b))
		}
		copy(box[:], b[:4])
		return box, nil
	case []float64:
		if len(b) < 4 {
			return box, fmt.Errorf("%w: sequence of %d values", common.ErrUnsupportedBoxFormat, len(b))
		}
		for i := 0; i < 4; i++ {
			box[i] = int(b[i])
		}
		return box, nil
	case map[string]any:
		vals, err := dictBox(b)
		if err != nil {
			return box, err
		}
		for i, f := range vals {
			box[i] = int(f)
		}
		return box, nil
	}
	return box, fmt.Errorf("%w: %T", common.ErrUnsupportedBoxFormat, raw)
}

// dictBox converts a dict-shaped box. {x,y,width,height} becomes (x, y, x+width, y+height);
// {left,top,right,bottom} is taken as is; the provider's own {page,base_y,height,page_height}
// form is accepted last.
func dictBox(b map[string]any) ([4]float64, error) {
	var out [4]float64
	switch {
	case hasAll(b, xywhKeys):
		f, err := floats(b, xywhKeys)
		if err != nil {
			return out, err
		}
		return [4]float64{f[0], f[1], f[0] + f[2], f[1] + f[3]}, nil
	case hasAll(b, ltrbKeys):
		return floats(b, ltrbKeys)
	case hasAll(b, providerBoxKeys):
		return floats(b, providerBoxKeys)
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return out, fmt.Errorf("%w: keys %v", common.ErrUnsupportedBoxFormat, keys)
}

func floats(b map[string]any, keys []string) ([4]float64, error) {
	var out [4]float64
	for i, k := range keys {
		f, err := toFloat(b[k])
		if err != nil {
			return out, fmt.Errorf("%s: %w", k, err)
		}
		out[i] = f
	}
	return out, nil
}

// Normalize runs a Normalizer logging to slog.Default().
func Normalize(payload any, fullText string) []LineRecord {
	return NewNormalizer(nil).Normalize(payload, fullText)
}
