package template

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/common"
)

const fileExt = ".json"

// Store loads templates from a directory through a Cache.
type Store struct {
	dir    string
	cache  Cache
	logger *slog.Logger
}

func NewStore(dir string, cache Cache, logger *slog.Logger) *Store {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, cache: cache, logger: logger}
}

// Load returns the named template, reading <dir>/<name>.json on first use.
func (s *Store) Load(name string) (*Template, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), fileExt)
	if err := common.NewValidator().Field("template", name, common.Required, common.TemplateName).Err(); err != nil {
		return nil, err
	}
	if t, ok := s.cache.Get(name); ok {
		return t, nil
	}

	path := filepath.Join(s.dir, name+fileExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("template.load.not_found", "template", name, "path", path)
			return nil, common.NewAppError(common.CodeTemplateNotFound,
				fmt.Sprintf("template %q not found", name), common.ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}

	t, err := Parse(name, data)
	if err != nil {
		s.logger.Error("template.load.invalid", "template", name, "path", path, "error", err)
		return nil, err
	}
	t = s.cache.Put(name, t)
	s.logger.Info("template.load.ok", "template", name, "fields", len(t.Keys))
	return t, nil
}

// Names lists the templates available on disk.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list templates: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

// Warm loads every template on disk so the cache is complete before serving.
// Invalid templates are logged and skipped.
func (s *Store) Warm() int {
	names, err := s.Names()
	if err != nil {
		s.logger.Warn("template.warm.list_failed", "dir", s.dir, "error", err)
		return 0
	}
	loaded := 0
	for _, n := range names {
		if _, err := s.Load(n); err == nil {
			loaded++
		}
	}
	s.logger.Info("template.warm.done", "dir", s.dir, "loaded", loaded, "found", len(names))
	return loaded
}
