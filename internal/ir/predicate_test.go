package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamePattern(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"com.example.*", "com.example.Foo", true},
		{"com.example.*", "com.example.sub.Bar", false},
		{"com.example.**", "com.example.sub.Bar", true},
		{"com.example.Foo", "com.example.Foo", true},
		{"com.example.F?o", "com.example.Fao", true},
		{"com.example.*Service", "com.example.OrderService", true},
		{"com.example.*Service", "org.example.OrderService", false},
		{"**.*$Inner", "com.example.Outer$Inner", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.name, func(t *testing.T) {
			p, err := NewNamePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Matches(LoadedType{Name: tt.name}))
		})
	}
}

func TestNamePatternInvalid(t *testing.T) {
	_, err := NewNamePattern("")
	assert.Error(t, err)

	assert.Panics(t, func() { MustNamePattern("   ") })
}

func TestNamePrefixAndEquals(t *testing.T) {
	foo := LoadedType{Name: "com.example.Foo"}

	assert.True(t, NamePrefix("com.example.").Matches(foo))
	assert.False(t, NamePrefix("org.").Matches(foo))
	assert.True(t, NameEquals("com.example.Foo").Matches(foo))
	assert.False(t, NameEquals("com.example.Fo").Matches(foo))
}

func TestNameEqualsNormalizes(t *testing.T) {
	decomposed := LoadedType{Name: "cafe\u0301.Menu"}
	assert.True(t, NameEquals("caf\u00e9.Menu").Matches(decomposed))
}

func TestAnyOf(t *testing.T) {
	foo := LoadedType{Name: "a.Foo"}
	bar := LoadedType{Name: "a.Bar"}
	baz := LoadedType{Name: "a.Baz"}

	p := AnyOf(NameEquals("a.Foo"), nil, NameEquals("a.Bar"))
	assert.True(t, p.Matches(foo))
	assert.True(t, p.Matches(bar))
	assert.False(t, p.Matches(baz))
	assert.Equal(t, "any(a.Foo, a.Bar)", p.(interface{ String() string }).String())

	assert.False(t, AnyOf().Matches(foo))
}

func TestPredicateFunc(t *testing.T) {
	p := PredicateFunc(func(t LoadedType) bool { return len(t.Methods) > 1 })
	assert.True(t, p.Matches(LoadedType{Methods: []string{"a", "b"}}))
	assert.False(t, p.Matches(LoadedType{Methods: []string{"a"}}))
}
