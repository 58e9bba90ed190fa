package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/geometry"
	"github.com/joseph-ayodele/docextract/internal/locate"
)

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"Invoice March 2024.pdf": "invoice_march_2024",
		"  weird--name!!.PNG":    "weird--name",
		"a   b.c.docx":           "a_b_c",
		"___.pdf":                "file",
		"":                       "file",
		"dir/sub/Report.xlsx":    "report",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeName(in), in)
	}
}

func sampleResult() *extract.Result {
	return &extract.Result{
		Keys: []string{"invoice_number", "total"},
		Fields: map[string]extract.Field{
			"invoice_number": {
				Value:       "INV-001",
				Citations:   []locate.Citation{{Page: 1, BBox: [4]int{1, 100, 20, 1000}, LineIndex: 1}},
				LineIndexes: []int{1},
			},
			"total": {Value: "", Citations: []locate.Citation{}, LineIndexes: []int{}},
		},
		State: constants.ExtractReturned,
	}
}

func TestFSSink_Layout(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(nil, NewFSSink(dir))
	ctx := t.Context()

	r.SaveInput(ctx, "My Invoice.PDF", []byte("%PDF"))
	r.SaveText(ctx, "My Invoice.PDF", "0x01: hello")
	r.SaveLines(ctx, "My Invoice.PDF", []geometry.LineRecord{
		{LineIndex: 1, Text: "hello", Page: 1, BBox: [4]int{1, 100, 20, 1000}},
		{LineIndex: 2, Text: "nobox", Page: 1},
	})
	r.SaveFields(ctx, "My Invoice.PDF", sampleResult())

	in, err := os.ReadFile(filepath.Join(dir, "input_files", "01_my_invoice.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(in))

	text, err := os.ReadFile(filepath.Join(dir, "output_files", "02_my_invoice_text.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0x01: hello", string(text))

	boxes, err := os.ReadFile(filepath.Join(dir, "output_files", "03_my_invoice_bboxes.json"))
	require.NoError(t, err)
	assert.Contains(t, string(boxes), `"line_index": 1`)
	assert.NotContains(t, string(boxes), "nobox")

	structured, err := os.ReadFile(filepath.Join(dir, "output_files", "04_my_invoice_structured.json"))
	require.NoError(t, err)
	assert.Contains(t, string(structured), "INV-001")
}

type failingSink struct{ calls int }

func (f *failingSink) Name() string { return "failing" }
func (f *failingSink) Write(context.Context, Record) error {
	f.calls++
	return errors.New("disk full")
}

func TestRecorder_SwallowsSinkErrors(t *testing.T) {
	dir := t.TempDir()
	bad := &failingSink{}
	r := NewRecorder(nil, bad, NewFSSink(dir))

	assert.NotPanics(t, func() { r.SaveText(t.Context(), "a.pdf", "text") })
	assert.Equal(t, 1, bad.calls)
	_, err := os.Stat(filepath.Join(dir, "output_files", "02_a_text.txt"))
	assert.NoError(t, err)

	var nilRecorder *Recorder
	assert.NotPanics(t, func() { nilRecorder.SaveText(t.Context(), "a.pdf", "text") })
	assert.NoError(t, nilRecorder.Close())
}

func TestXLSXSink_WritesFields(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(nil, NewXLSXSink(dir))
	r.SaveText(t.Context(), "inv.pdf", "ignored")
	r.SaveFields(t.Context(), "inv.pdf", sampleResult())

	_, err := os.Stat(filepath.Join(dir, "output_files", "02_inv_text.txt"))
	assert.True(t, os.IsNotExist(err))

	f, err := excelize.OpenFile(filepath.Join(dir, "output_files", "04_inv_fields.xlsx"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(fieldsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Field", "Value", "Line Indexes", "Pages", "Source File"}, rows[0])
	assert.Equal(t, []string{"invoice_number", "INV-001", "1", "1", "inv.pdf"}, rows[1])
	assert.Equal(t, "total", rows[2][0])
}

func TestSQLStore_SQLite(t *testing.T) {
	ctx := common.WithRequestID(t.Context(), "req-1")
	store, err := OpenSQLite(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r := NewRecorder(nil, store)
	r.SaveInput(ctx, "inv.pdf", []byte("%PDF-1.4"))
	r.SaveText(ctx, "inv.pdf", "hello")
	r.SaveFields(common.WithRequestID(t.Context(), "req-2"), "other.pdf", sampleResult())

	got, err := store.List(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	kinds := []string{got[0].Kind, got[1].Kind}
	assert.ElementsMatch(t, []string{"input", "text"}, kinds)
	for _, a := range got {
		assert.Equal(t, "inv.pdf", a.FileName)
		assert.NotEmpty(t, a.ID)
		assert.NotEmpty(t, a.CreatedAt)
		if a.Kind == "input" {
			assert.JSONEq(t, `{"bytes":8,"ext":"pdf"}`, a.Payload)
		} else {
			assert.Equal(t, "hello", a.Payload)
		}
	}

	other, err := store.List(ctx, "req-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "structured", other[0].Kind)
}

func TestOpen_SkipsUnavailableSinks(t *testing.T) {
	dir := t.TempDir()
	r := Open(t.Context(), common.ArtifactConfig{
		Dir:        dir,
		Sinks:      []string{"fs", "xlsx", "postgres", "bogus", "sqlite"},
		SQLitePath: filepath.Join(dir, "db", "artifacts.db"),
	}, nil)
	t.Cleanup(func() { _ = r.Close() })
	assert.Equal(t, []string{"fs", "xlsx", "sqlite"}, r.Sinks())
}

func TestRecorder_QueuedWrites(t *testing.T) {
	dir := t.TempDir()
	q := async.NewQueue(nil, async.WithWorkers(2))
	r := NewRecorder(nil, NewFSSink(dir)).UseQueue(q)

	ctx := common.WithRequestID(t.Context(), "req-q")
	r.SaveText(ctx, "a.pdf", "one")
	r.SaveText(ctx, "b.pdf", "two")
	q.Shutdown(t.Context())

	for name, want := range map[string]string{"02_a_text.txt": "one", "02_b_text.txt": "two"} {
		got, err := os.ReadFile(filepath.Join(dir, "output_files", name))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	// After shutdown writes fall back to running inline.
	r.SaveText(ctx, "c.pdf", "three")
	_, err := os.Stat(filepath.Join(dir, "output_files", "02_c_text.txt"))
	assert.NoError(t, err)
}
