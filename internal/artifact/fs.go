package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSSink writes artifacts under input_files/ and output_files/ of Dir.
type FSSink struct {
	Dir string
}

func NewFSSink(dir string) *FSSink { return &FSSink{Dir: dir} }

func (s *FSSink) Name() string { return "fs" }

// Path returns where rec is stored.
func (s *FSSink) Path(rec Record) string {
	safe := SafeName(rec.FileName)
	switch rec.Kind {
	case KindInput:
		return filepath.Join(s.Dir, "input_files", fmt.Sprintf("01_%s.%s", safe, extOf(rec.FileName)))
	case KindText:
		return filepath.Join(s.Dir, "output_files", fmt.Sprintf("02_%s_text.txt", safe))
	case KindBoxes:
		return filepath.Join(s.Dir, "output_files", fmt.Sprintf("03_%s_bboxes.json", safe))
	default:
		return filepath.Join(s.Dir, "output_files", fmt.Sprintf("04_%s_%s.json", safe, rec.Kind))
	}
}

func (s *FSSink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.Path(rec)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, rec.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}
