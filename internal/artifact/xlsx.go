package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const fieldsSheet = "Fields"

// XLSXSink exports structured results as a workbook. Other kinds are ignored.
type XLSXSink struct {
	Dir string
}

func NewXLSXSink(dir string) *XLSXSink { return &XLSXSink{Dir: dir} }

func (s *XLSXSink) Name() string { return "xlsx" }

func (s *XLSXSink) Path(fileName string) string {
	return filepath.Join(s.Dir, "output_files", fmt.Sprintf("04_%s_fields.xlsx", SafeName(fileName)))
}

func (s *XLSXSink) Write(ctx context.Context, rec Record) error {
	if rec.Kind != KindStructured {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := FieldsWorkbook(rec.FileName, rec.Fields)
	if err != nil {
		return err
	}
	p := s.Path(rec.FileName)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(p), err)
	}
	return os.WriteFile(p, buf, 0o644)
}

// FieldsWorkbook renders rows as an XLSX workbook.
func FieldsWorkbook(fileName string, rows []FieldRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(fieldsSheet); index == -1 {
		if _, err := f.NewSheet(fieldsSheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(fieldsSheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"Field", "Value", "Line Indexes", "Pages", "Source File"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(fieldsSheet, cell, h)
	}

	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(fieldsSheet, cell, v)
		}
		write(1, r.Key)
		write(2, r.Value)
		write(3, joinInts(r.LineIndexes))
		write(4, joinInts(r.Pages))
		write(5, fileName)
	}

	_ = f.SetColWidth(fieldsSheet, "A", "A", 24)
	_ = f.SetColWidth(fieldsSheet, "B", "B", 48)
	_ = f.SetColWidth(fieldsSheet, "C", "D", 14)
	_ = f.SetColWidth(fieldsSheet, "E", "E", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
