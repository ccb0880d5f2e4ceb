package access

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

const adminKey = "admin"

// ErrMalformedGrant is returned when grant data is not a JSON object.
var ErrMalformedGrant = errors.New("access: malformed grant")

// Grant is the permission data of one principal: an optional global admin
// flag plus per-resource capability records. A Grant is immutable; a nil
// *Grant means no grant is loaded.
type Grant struct {
	admin   bool
	entries map[string]Capability
}

// NewGrant builds a Grant from explicit entries. The map is copied.
func NewGrant(admin bool, entries map[string]Capability) *Grant {
	g := &Grant{admin: admin, entries: make(map[string]Capability, len(entries))}
	for k, v := range entries {
		g.entries[k] = v
	}
	return g
}

// EmptyGrant returns the grant that allows nothing.
func EmptyGrant() *Grant {
	return &Grant{entries: map[string]Capability{}}
}

// ParseGrant decodes the wire shape {"admin": true, "<resource>": {"ver": ..}}.
// Only a literal true sets a flag. Top-level members that are not objects are
// ignored, and JSON null yields an empty grant.
func ParseGrant(data []byte) (*Grant, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return EmptyGrant(), nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGrant, err)
	}
	g := EmptyGrant()
	for key, value := range raw {
		if key == adminKey {
			g.admin = isTrue(value)
			continue
		}
		record, ok := parseRecord(value)
		if !ok {
			continue
		}
		g.entries[key] = record
	}
	return g, nil
}

type wireRecord struct {
	Ver     json.RawMessage `json:"ver"`
	Editar  json.RawMessage `json:"editar"`
	Excluir json.RawMessage `json:"excluir"`
}

func parseRecord(value json.RawMessage) (Capability, bool) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Capability{}, false
	}
	var rec wireRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Capability{}, false
	}
	return Capability{
		Ver:     isTrue(rec.Ver),
		Editar:  isTrue(rec.Editar),
		Excluir: isTrue(rec.Excluir),
	}, true
}

func isTrue(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("true"))
}

// Admin reports the global override flag.
func (g *Grant) Admin() bool {
	return g != nil && g.admin
}

// Entry returns the explicit record stored for key.
func (g *Grant) Entry(key string) (Capability, bool) {
	if g == nil {
		return Capability{}, false
	}
	c, ok := g.entries[key]
	return c, ok
}

// Keys lists the resource keys with explicit records, sorted.
func (g *Grant) Keys() []string {
	if g == nil {
		return nil
	}
	keys := make([]string, 0, len(g.entries))
	for k := range g.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len is the number of explicit records.
func (g *Grant) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Equal compares two grants by value.
func (g *Grant) Equal(other *Grant) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.admin != other.admin || len(g.entries) != len(other.entries) {
		return false
	}
	for k, v := range g.entries {
		if ov, ok := other.entries[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// MarshalJSON renders the wire shape. The admin member is only written when set.
func (g *Grant) MarshalJSON() ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(g.entries)+1)
	for k, v := range g.entries {
		out[k] = v
	}
	if g.admin {
		out[adminKey] = true
	}
	return json.Marshal(out)
}
