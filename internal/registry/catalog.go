package registry

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Definitions []struct {
		Code string `yaml:"code"`
		WKT  string `yaml:"wkt"`
	} `yaml:"definitions"`
	Aliases map[string]string `yaml:"aliases"`
}

// CatalogStore serves definitions from a YAML catalog, by default the one
// compiled into the binary.
type CatalogStore struct {
	data    []byte
	defs    map[Identifier]string
	aliases map[Identifier]Identifier
}

// NewCatalogStore returns a store over the built-in catalog.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{data: catalogYAML}
}

// NewCatalogStoreFromYAML returns a store over a catalog document with the
// same layout as the built-in one.
func NewCatalogStoreFromYAML(data []byte) *CatalogStore {
	return &CatalogStore{data: data}
}

func (s *CatalogStore) Name() string { return "catalog" }

func (s *CatalogStore) Init(_ context.Context) error {
	var f catalogFile
	if err := yaml.Unmarshal(s.data, &f); err != nil {
		return fmt.Errorf("decoding catalog: %w", err)
	}
	s.defs = make(map[Identifier]string, len(f.Definitions))
	for _, d := range f.Definitions {
		id, err := Normalize(d.Code)
		if err != nil {
			return fmt.Errorf("catalog entry %q: %w", d.Code, err)
		}
		if _, dup := s.defs[id]; dup {
			return fmt.Errorf("catalog entry %s defined twice", id)
		}
		s.defs[id] = d.WKT
	}
	s.aliases = make(map[Identifier]Identifier, len(f.Aliases))
	for alias, target := range f.Aliases {
		a, err := Normalize(alias)
		if err != nil {
			return fmt.Errorf("catalog alias %q: %w", alias, err)
		}
		t, err := Normalize(target)
		if err != nil {
			return fmt.Errorf("catalog alias %q: %w", alias, err)
		}
		if _, ok := s.defs[t]; !ok {
			return fmt.Errorf("catalog alias %q points to undefined %s", alias, t)
		}
		s.aliases[a] = t
	}
	return nil
}

func (s *CatalogStore) Definition(_ context.Context, id Identifier) (Definition, error) {
	if t, ok := s.aliases[id]; ok {
		id = t
	}
	wkt, ok := s.defs[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return Definition{ID: id, WKT: wkt}, nil
}

func (s *CatalogStore) Codes() []string {
	codes := make([]string, 0, len(s.defs))
	for id := range s.defs {
		codes = append(codes, id.String())
	}
	sort.Strings(codes)
	return codes
}

func (s *CatalogStore) Close() error { return nil }
