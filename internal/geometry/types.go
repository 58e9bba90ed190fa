// Package geometry turns OCR provider line metadata into canonical line records,
// derives word boxes from them, and merges selected boxes into highlight rectangles.
package geometry

// LineRecord is one OCR-detected line in canonical form.
// BBox is (page, y, height, page_height); page_height is 0 when unknown.
type LineRecord struct {
	LineIndex int    `json:"line_index"`
	Text      string `json:"text"`
	Page      int    `json:"page"`
	BBox      [4]int `json:"bbox"`
}

func (l LineRecord) Y() int          { return l.BBox[1] }
func (l LineRecord) Height() int     { return l.BBox[2] }
func (l LineRecord) PageHeight() int { return l.BBox[3] }

// HasBox reports whether the line carries usable geometry.
func (l LineRecord) HasBox() bool {
	return l.BBox != [4]int{}
}

// Rect is an absolute rectangle on a page.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// WordRecord is a synthesized word placed within its source line.
type WordRecord struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
	Line  int    `json:"line_index"`
	BBox  Rect   `json:"bbox"`
}

// PageBox is a rectangle tied to a page, the unit BoxMerger works on.
type PageBox struct {
	Page int
	Rect
}

// MergedBox is a highlight rectangle covering one or more input boxes on a page.
type MergedBox struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
