package nav

import (
	"errors"
	"log/slog"

	"github.com/rh-console/rh-console/internal/access"
)

// ErrUnknownResource is logged when a navigation target is outside the
// enumeration. It never reaches the caller.
var ErrUnknownResource = errors.New("nav: unknown resource key")

// Screen is the permission context handed to a rendered resource screen.
type Screen struct {
	Resource    access.Resource   `json:"resource"`
	Label       string            `json:"label"`
	Fallback    bool              `json:"fallback"`
	Permissions access.Capability `json:"permissions"`
}

// Gate filters navigation and gates screens through access.Resolve.
type Gate struct {
	catalog *Catalog
	logger  *slog.Logger
}

// NewGate constructs a Gate over catalog.
func NewGate(catalog *Catalog, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{catalog: catalog, logger: logger}
}

// Catalog exposes the underlying navigation tree.
func (g *Gate) Catalog() *Catalog {
	return g.catalog
}

// Navigation returns the sections and items whose resolved Ver flag is set.
// Sections left empty are dropped. A nil grant yields no navigation.
func (g *Gate) Navigation(grant *access.Grant) []Section {
	var out []Section
	for _, section := range g.catalog.sections {
		var items []Item
		for _, item := range section.Items {
			if access.Resolve(grant, item.Resource).Ver {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			out = append(out, Section{Title: section.Title, Items: items})
		}
	}
	return out
}

// Screen resolves the full capability for key. Keys outside the enumeration
// fall back to the default resource.
func (g *Gate) Screen(grant *access.Grant, key string) Screen {
	r, ok := access.ParseResource(key)
	if !ok {
		g.logger.Debug("navigation fallback", slog.String("key", key), slog.Any("error", ErrUnknownResource))
		r = access.DefaultResource
	}
	item, _ := g.catalog.Item(r)
	return Screen{
		Resource:    r,
		Label:       item.Label,
		Fallback:    !ok,
		Permissions: access.Resolve(grant, r),
	}
}
