// Package filter holds the closed set of selectable camera effects, the
// static table mapping each one to an image operation, and the current
// selection shared between the UI and the capture worker.
package filter

import (
	"errors"
	"image"
)

// Sentinel errors.
var (
	// ErrNoOutput is returned when an operation produced no image.
	ErrNoOutput = errors.New("filter: no output")

	// ErrUnknownFilter is returned when a raw name is not part of the enum.
	ErrUnknownFilter = errors.New("filter: unknown filter")

	// ErrUnknownSet is returned when a filter set description cannot be parsed.
	ErrUnknownSet = errors.New("filter: unknown filter set")
)

// ID identifies one selectable effect. The zero value is not a member of the
// enum and resolves to identity.
type ID int

// Members in declaration order. The selection control lists them in this order.
const (
	Noir ID = iota + 1
	Normal
	Tonal
	Invert
)

// All returns every member in declaration order.
func All() []ID {
	return []ID{Noir, Normal, Tonal, Invert}
}

// Operation is a parameterless single-input, single-output image transform.
// It must not modify src and must return ErrNoOutput instead of a nil image.
type Operation func(src image.Image) (image.Image, error)

// Spec is the static description of one filter.
type Spec struct {
	ID ID

	// Name is the raw name shown by the selection control.
	Name string

	// Operation names the image operation, "" for identity.
	Operation string

	// Apply is nil for identity.
	Apply Operation
}

// IsIdentity reports whether the spec passes frames through untouched.
func (s Spec) IsIdentity() bool {
	return s.Apply == nil
}

var table = map[ID]Spec{
	Noir:   {ID: Noir, Name: "effectNoir", Operation: "noir", Apply: noir},
	Normal: {ID: Normal, Name: "normal", Operation: ""},
	Tonal:  {ID: Tonal, Name: "tonalEffect", Operation: "tonal", Apply: tonal},
	Invert: {ID: Invert, Name: "colorInvert", Operation: "invert", Apply: invert},
}

// Lookup returns the spec for id. Unknown ids map to identity.
func Lookup(id ID) Spec {
	if s, ok := table[id]; ok {
		return s
	}
	return table[Normal]
}

// Valid reports whether id is a member of the enum.
func (id ID) Valid() bool {
	_, ok := table[id]
	return ok
}

// String returns the raw name.
func (id ID) String() string {
	if s, ok := table[id]; ok {
		return s.Name
	}
	return "unknown"
}

// Operation returns the operation name, "" for identity.
func (id ID) Operation() string {
	return Lookup(id).Operation
}

// ParseID maps a raw name back to its ID.
func ParseID(raw string) (ID, bool) {
	for _, id := range All() {
		if table[id].Name == raw {
			return id, true
		}
	}
	return 0, false
}
