// Package nav decides which console sections a grant may see and which
// capability record each rendered screen receives.
package nav

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rh-console/rh-console/internal/access"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ErrInvalidCatalog reports a catalog that does not cover the resource
// enumeration exactly once.
var ErrInvalidCatalog = errors.New("nav: invalid catalog")

// Item is one navigation entry.
type Item struct {
	Resource access.Resource `yaml:"resource" json:"resource"`
	Label    string          `yaml:"label" json:"label"`
	Path     string          `yaml:"path" json:"path"`
}

// Section groups navigation entries under a title.
type Section struct {
	Title string `yaml:"title" json:"title"`
	Items []Item `yaml:"items" json:"items"`
}

// Catalog is the static navigation tree.
type Catalog struct {
	sections []Section
}

type catalogFile struct {
	Sections []Section `yaml:"sections"`
}

// DefaultCatalog parses the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(catalogYAML)
}

// LoadCatalog parses a YAML catalog and checks that it lists every resource
// of the closed enumeration exactly once.
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("nav: parse catalog: %w", err)
	}
	seen := make(map[access.Resource]bool)
	for _, section := range file.Sections {
		for _, item := range section.Items {
			if !item.Resource.Valid() {
				return nil, fmt.Errorf("%w: unknown resource %q", ErrInvalidCatalog, item.Resource)
			}
			if seen[item.Resource] {
				return nil, fmt.Errorf("%w: duplicate resource %q", ErrInvalidCatalog, item.Resource)
			}
			seen[item.Resource] = true
		}
	}
	for _, r := range access.Resources() {
		if !seen[r] {
			return nil, fmt.Errorf("%w: missing resource %q", ErrInvalidCatalog, r)
		}
	}
	return &Catalog{sections: file.Sections}, nil
}

// Sections returns a copy of the full tree.
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.sections))
	for i, s := range c.sections {
		out[i] = Section{Title: s.Title, Items: append([]Item(nil), s.Items...)}
	}
	return out
}

// Item looks up the entry for r.
func (c *Catalog) Item(r access.Resource) (Item, bool) {
	for _, s := range c.sections {
		for _, item := range s.Items {
			if item.Resource == r {
				return item, true
			}
		}
	}
	return Item{}, false
}
