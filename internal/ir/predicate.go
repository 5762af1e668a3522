package ir

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v3"
)

// Predicate selects loaded types.
// Predicates are supplied by callers and evaluated only by collaborators.
type Predicate interface {
	Matches(t LoadedType) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(t LoadedType) bool

// Matches calls f(t).
func (f PredicateFunc) Matches(t LoadedType) bool {
	return f(t)
}

// AnyOf returns a predicate matching a type when any member matches.
// Nil members are skipped; AnyOf() matches nothing.
func AnyOf(predicates ...Predicate) Predicate {
	members := make(orGroup, 0, len(predicates))
	for _, p := range predicates {
		if p != nil {
			members = append(members, p)
		}
	}
	return members
}

type orGroup []Predicate

func (g orGroup) Matches(t LoadedType) bool {
	for _, p := range g {
		if p.Matches(t) {
			return true
		}
	}
	return false
}

func (g orGroup) String() string {
	parts := make([]string, len(g))
	for i, p := range g {
		parts[i] = fmt.Sprint(p)
	}
	return "any(" + strings.Join(parts, ", ") + ")"
}

// NamePattern matches type names against a dotted glob.
//
// A single "*" matches within one name segment, "**" spans segments:
//
//	com.example.*   matches com.example.Foo but not com.example.sub.Bar
//	com.example.**  matches both
type NamePattern struct {
	pattern string
	path    string
}

// NewNamePattern compiles a dotted glob.
func NewNamePattern(pattern string) (NamePattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return NamePattern{}, fmt.Errorf("name pattern is empty")
	}
	p := NamePattern{pattern: pattern, path: dotsToSlashes(CanonicalTypeName(pattern))}
	if _, err := doublestar.Match(p.path, p.path); err != nil {
		return NamePattern{}, fmt.Errorf("name pattern %q: %w", pattern, err)
	}
	return p, nil
}

// MustNamePattern is NewNamePattern that panics on error.
func MustNamePattern(pattern string) NamePattern {
	p, err := NewNamePattern(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Matches reports whether the type name matches the glob.
func (p NamePattern) Matches(t LoadedType) bool {
	matched, err := doublestar.Match(p.path, dotsToSlashes(t.CanonicalName()))
	return err == nil && matched
}

// String returns the original pattern.
func (p NamePattern) String() string {
	return p.pattern
}

// NamePrefix matches type names starting with a prefix.
// Directories can use the prefix to narrow their search.
type NamePrefix string

// Matches reports whether the type name has the prefix.
func (p NamePrefix) Matches(t LoadedType) bool {
	return strings.HasPrefix(t.CanonicalName(), CanonicalTypeName(string(p)))
}

// String returns "prefix:<prefix>".
func (p NamePrefix) String() string {
	return "prefix:" + string(p)
}

// NameEquals matches exactly one type name.
type NameEquals string

// Matches reports whether the type name equals n.
func (n NameEquals) Matches(t LoadedType) bool {
	return t.CanonicalName() == CanonicalTypeName(string(n))
}

// String returns the name.
func (n NameEquals) String() string {
	return string(n)
}

func dotsToSlashes(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}
