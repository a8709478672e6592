// Package ident maps identifier names used in filter expressions to typed
// column positions.
package ident

import (
	"strings"

	"github.com/conduit-lang/rowfilter/compiler/types"
)

// NoPosition is the default-column sentinel meaning "match if any column
// satisfies the filter".
const NoPosition = -1

// Identifier is a named, typed reference to a column of the row source
type Identifier struct {
	Name     string
	Type     types.Type
	Position int
}

// String returns the identifier name
func (i Identifier) String() string {
	return i.Name
}

// Registry resolves identifier names. It is replaced wholesale by
// SetIdentifiers and read concurrently by parses; writes need external
// synchronization.
type Registry struct {
	identifiers []Identifier
	byName      map[string]int
	byPosition  map[int]int
}

// NewRegistry creates a registry holding the given identifiers
func NewRegistry(identifiers ...Identifier) *Registry {
	r := &Registry{}
	r.SetIdentifiers(identifiers)
	return r
}

// SetIdentifiers replaces the full set of identifiers. When two identifiers
// share a name or a position the first one registered wins lookups.
func (r *Registry) SetIdentifiers(identifiers []Identifier) {
	r.identifiers = make([]Identifier, len(identifiers))
	copy(r.identifiers, identifiers)
	r.byName = make(map[string]int, len(identifiers))
	r.byPosition = make(map[int]int, len(identifiers))

	for i, id := range r.identifiers {
		if _, exists := r.byName[id.Name]; !exists {
			r.byName[id.Name] = i
		}
		if _, exists := r.byPosition[id.Position]; !exists {
			r.byPosition[id.Position] = i
		}
	}
}

// Resolve looks a name up by exact match first, then by a case-insensitive
// scan in registration order. Names differing only in case resolve to the
// first registered one; no other tie-break is defined.
func (r *Registry) Resolve(name string) (Identifier, bool) {
	if i, ok := r.byName[name]; ok {
		return r.identifiers[i], true
	}
	for _, id := range r.identifiers {
		if strings.EqualFold(id.Name, name) {
			return id, true
		}
	}
	return Identifier{}, false
}

// ResolveExact looks a name up without the case-insensitive fallback
func (r *Registry) ResolveExact(name string) (Identifier, bool) {
	if i, ok := r.byName[name]; ok {
		return r.identifiers[i], true
	}
	return Identifier{}, false
}

// ResolveByPosition returns the identifier bound to a column position.
// NoPosition never resolves.
func (r *Registry) ResolveByPosition(pos int) (Identifier, bool) {
	if pos == NoPosition {
		return Identifier{}, false
	}
	if i, ok := r.byPosition[pos]; ok {
		return r.identifiers[i], true
	}
	return Identifier{}, false
}

// All returns the identifiers in registration order
func (r *Registry) All() []Identifier {
	out := make([]Identifier, len(r.identifiers))
	copy(out, r.identifiers)
	return out
}

// Names returns the identifier names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.identifiers))
	for i, id := range r.identifiers {
		names[i] = id.Name
	}
	return names
}

// Len returns the number of registered identifiers
func (r *Registry) Len() int {
	return len(r.identifiers)
}
