package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/types"
)

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"missing open paren", "color=red)"},
		{"missing close paren", "(color=red"},
		{"empty attribute", "(=red)"},
		{"bare operator", "(~red)"},
		{"trailing garbage", "(color=red)x"},
		{"empty and list", "(&)"},
		{"unescaped paren in value", "(color=re(d)"},
		{"trailing escape", `(color=red\`},
		{"wildcard with ordering", "(x>=a*b)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.expr)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrFilterParse)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestMatchesEquality(t *testing.T) {
	props := types.AnyMap{
		"color":  "red",
		"count":  10,
		"active": true,
	}

	assert.True(t, MustParse("(color=red)").Matches(props))
	assert.False(t, MustParse("(color=blue)").Matches(props))
	assert.True(t, MustParse("(count=10)").Matches(props))
	assert.True(t, MustParse("(active=true)").Matches(props))
	assert.False(t, MustParse("(missing=x)").Matches(props))
}

func TestMatchesCaseInsensitiveKeys(t *testing.T) {
	props := types.AnyMap{"Color": "red"}

	assert.True(t, MustParse("(color=red)").Matches(props))
	assert.True(t, MustParse("(COLOR=red)").Matches(props))
	// Values stay case-sensitive for '='
	assert.False(t, MustParse("(color=RED)").Matches(props))
}

func TestMatchesApprox(t *testing.T) {
	props := types.AnyMap{"name": "  Hello   World "}

	assert.True(t, MustParse("(name~=hello world)").Matches(props))
	assert.True(t, MustParse("(name~=HELLO WORLD)").Matches(props))
	assert.False(t, MustParse("(name~=helloworld)").Matches(props))
}

func TestMatchesOrdering(t *testing.T) {
	props := types.AnyMap{"ranking": 5, "version": "1.2.0"}

	assert.True(t, MustParse("(ranking>=5)").Matches(props))
	assert.True(t, MustParse("(ranking>=4)").Matches(props))
	assert.False(t, MustParse("(ranking>=6)").Matches(props))
	assert.True(t, MustParse("(ranking<=5)").Matches(props))
	// Numeric comparison, not lexical: 10 >= 9
	assert.True(t, MustParse("(ranking<=10)").Matches(types.AnyMap{"ranking": 9}))
	// Non-numeric falls back to lexical ordering
	assert.True(t, MustParse("(version>=1.1.0)").Matches(props))
}

func TestMatchesPresence(t *testing.T) {
	props := types.AnyMap{"color": "red"}

	assert.True(t, MustParse("(color=*)").Matches(props))
	assert.False(t, MustParse("(size=*)").Matches(props))
}

func TestMatchesSubstring(t *testing.T) {
	props := types.AnyMap{"name": "service-registry-core"}

	assert.True(t, MustParse("(name=service*)").Matches(props))
	assert.True(t, MustParse("(name=*core)").Matches(props))
	assert.True(t, MustParse("(name=*registry*)").Matches(props))
	assert.True(t, MustParse("(name=service*core)").Matches(props))
	assert.True(t, MustParse("(name=s*r*c*)").Matches(props))
	assert.False(t, MustParse("(name=core*)").Matches(props))
	assert.False(t, MustParse("(name=*missing*)").Matches(props))
}

func TestMatchesComposite(t *testing.T) {
	props := types.AnyMap{"color": "red", "size": 3}

	assert.True(t, MustParse("(&(color=red)(size=3))").Matches(props))
	assert.False(t, MustParse("(&(color=red)(size=4))").Matches(props))
	assert.True(t, MustParse("(|(color=blue)(size=3))").Matches(props))
	assert.False(t, MustParse("(|(color=blue)(size=4))").Matches(props))
	assert.True(t, MustParse("(!(color=blue))").Matches(props))
	assert.False(t, MustParse("(!(color=red))").Matches(props))
	assert.True(t, MustParse("(&(|(color=red)(color=blue))(!(size=9)))").Matches(props))
}

func TestMatchesSliceValues(t *testing.T) {
	props := types.AnyMap{
		"objectClass": []string{"com.example.Greeter", "com.example.Closer"},
	}

	assert.True(t, MustParse("(objectClass=com.example.Greeter)").Matches(props))
	assert.True(t, MustParse("(objectClass=com.example.Closer)").Matches(props))
	assert.False(t, MustParse("(objectClass=com.example.Other)").Matches(props))
}

func TestMatchesEscapedValue(t *testing.T) {
	props := types.AnyMap{"path": "a(b)c*d"}

	assert.True(t, MustParse(`(path=a\(b\)c\*d)`).Matches(props))
}

func TestNilFilterMatchesEverything(t *testing.T) {
	var f *Filter
	assert.True(t, f.Matches(types.AnyMap{"anything": 1}))
	assert.True(t, f.Matches(nil))
}

func TestStringNormalisation(t *testing.T) {
	testCases := []struct {
		expr     string
		expected string
	}{
		{"( color=red)", "(color=red)"},
		{"(&(a=1) (b=2))", "(&(a=1)(b=2))"},
		{"(name=*)", "(name=*)"},
		{"(name=a*b)", "(name=a*b)"},
	}

	for _, tc := range testCases {
		f := MustParse(tc.expr)
		assert.Equal(t, tc.expected, f.String())
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("((") })
}
