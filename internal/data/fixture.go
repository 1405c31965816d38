package data

import (
	"fmt"
	"os"

	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"gopkg.in/yaml.v3"
)

// EntityEntry is one entity in a scene fixture.
type EntityEntry struct {
	ID   string         `yaml:"id"`
	Tags map[string]any `yaml:"tags"`
}

// LoadEntities loads a YAML scene fixture. Formula tags are written as
// strings starting with "=".
func LoadEntities(path string) ([]*tag.Entity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene fixture: %w", err)
	}
	var file struct {
		Entities []EntityEntry `yaml:"entities"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse scene fixture: %w", err)
	}
	out := make([]*tag.Entity, 0, len(file.Entities))
	seen := make(map[string]struct{}, len(file.Entities))
	for i, e := range file.Entities {
		if e.ID == "" {
			return nil, fmt.Errorf("scene fixture entry %d: missing id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("scene fixture entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = struct{}{}
		out = append(out, tag.FromMap(e.ID, e.Tags))
	}
	return out, nil
}
