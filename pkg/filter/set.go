package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Variant names for the two shipped filter sets.
const (
	VariantNoir   = "noir"
	VariantInvert = "invert"
	VariantAll    = "all"
)

// Set is the ordered subset of filters offered to the user. It is always in
// declaration order and always contains Normal.
type Set struct {
	ids []ID
}

// NewSet builds a set from ids. Duplicates and unknown ids are dropped and
// Normal is added when missing.
func NewSet(ids ...ID) Set {
	seen := map[ID]bool{Normal: true}
	out := []ID{Normal}
	for _, id := range ids {
		if !id.Valid() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Set{ids: out}
}

// Variants returns the named sets.
func Variants() map[string]Set {
	return map[string]Set{
		VariantNoir:   NewSet(Noir, Normal, Tonal),
		VariantInvert: NewSet(Normal, Tonal, Invert),
		VariantAll:    NewSet(All()...),
	}
}

// DefaultSet is the noir variant.
func DefaultSet() Set {
	return Variants()[VariantNoir]
}

// ParseSet accepts a variant name or a comma separated list of raw names.
func ParseSet(s string) (Set, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Set{}, fmt.Errorf("%w: empty", ErrUnknownSet)
	}
	if set, ok := Variants()[strings.ToLower(s)]; ok {
		return set, nil
	}

	var ids []ID
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		id, ok := ParseID(name)
		if !ok {
			return Set{}, fmt.Errorf("%w %q in set %q", ErrUnknownFilter, name, s)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return Set{}, fmt.Errorf("%w: %q", ErrUnknownSet, s)
	}
	return NewSet(ids...), nil
}

// IDs returns a copy of the members in order.
func (s Set) IDs() []ID {
	if len(s.ids) == 0 {
		return []ID{Normal}
	}
	out := make([]ID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Names returns the raw names in order, for the selection control.
func (s Set) Names() []string {
	ids := s.IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return names
}

// Contains reports whether id is offered.
func (s Set) Contains(id ID) bool {
	for _, m := range s.IDs() {
		if m == id {
			return true
		}
	}
	return false
}

// Index returns the position of id in the control, or -1.
func (s Set) Index(id ID) int {
	for i, m := range s.IDs() {
		if m == id {
			return i
		}
	}
	return -1
}
