package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultEphemeralMarkers identify runtime-generated lambda types.
// Such types are unstable rewrite targets and are never retransformed.
var DefaultEphemeralMarkers = []string{"$$Lambda$", "$$Lambda/"}

// LoadedType describes a type currently loaded in the host process.
type LoadedType struct {
	Name    string   `json:"name"`
	Loader  string   `json:"loader,omitempty"`
	Methods []string `json:"methods,omitempty"`
}

// TypeKey identifies a loaded type. The same name defined by two loaders
// is two types.
type TypeKey struct {
	Loader string
	Name   string
}

// Key returns the type's identity: its loader and canonical name.
func (t LoadedType) Key() TypeKey {
	return TypeKey{Loader: t.Loader, Name: t.CanonicalName()}
}

// CanonicalName returns the NFC normalised type name.
// Directory lookups and predicate matching use this form.
func (t LoadedType) CanonicalName() string {
	return CanonicalTypeName(t.Name)
}

// IsEphemeral reports whether the type name carries any of the markers.
func (t LoadedType) IsEphemeral(markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(t.Name, marker) {
			return true
		}
	}
	return false
}

// String returns the type name.
func (t LoadedType) String() string {
	return t.Name
}

// CanonicalTypeName NFC normalises a type name.
func CanonicalTypeName(name string) string {
	return norm.NFC.String(name)
}

// TypeNames returns the names of types in order.
func TypeNames(types []LoadedType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name
	}
	return names
}
