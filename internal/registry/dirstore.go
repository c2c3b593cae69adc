package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirStore serves WKT files from a list of directories. A file's base name
// without extension is its identifier, so 31467.prj answers EPSG:31467 and
// my_grid.wkt answers the alias "my_grid". Earlier directories win.
type DirStore struct {
	dirs []string
	defs map[Identifier]string
}

func NewDirStore(dirs ...string) *DirStore {
	return &DirStore{dirs: dirs}
}

func (s *DirStore) Name() string { return "dir:" + strings.Join(s.dirs, ",") }

func (s *DirStore) Init(ctx context.Context) error {
	s.defs = map[Identifier]string{}
	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading definition directory: %w", err)
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".wkt" && ext != ".prj") {
				continue
			}
			id, err := Normalize(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
			if err != nil {
				continue
			}
			if _, seen := s.defs[id]; seen {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return fmt.Errorf("reading %s: %w", e.Name(), err)
			}
			s.defs[id] = string(data)
		}
	}
	return nil
}

func (s *DirStore) Definition(_ context.Context, id Identifier) (Definition, error) {
	wkt, ok := s.defs[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return Definition{ID: id, WKT: wkt}, nil
}

func (s *DirStore) Codes() []string {
	codes := make([]string, 0, len(s.defs))
	for id := range s.defs {
		codes = append(codes, id.String())
	}
	sort.Strings(codes)
	return codes
}

func (s *DirStore) Close() error {
	s.defs = nil
	return nil
}
