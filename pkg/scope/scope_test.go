package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/credbroker/pkg/scope"
)

var samples = []scope.Scope{
	scope.New(),
	scope.New("a"),
	scope.New("a", "b"),
	scope.New("b", "c", "d"),
	scope.VstsDefault,
	scope.GitHubDefault,
	scope.VstsCodeWrite,
}

func TestScopeAlgebraProperties(t *testing.T) {
	t.Parallel()

	for _, a := range samples {
		for _, b := range samples {
			assert.True(t, a.Union(b).Equal(b.Union(a)), "union commutes: %q %q", a, b)
			assert.True(t, a.Union(b).Subtract(b).IsSubsetOf(a), "(a+b)-b subset of a: %q %q", a, b)
			assert.True(t, a.Intersect(a).Equal(a), "a&a == a: %q", a)
			assert.True(t, a.Intersect(b).Equal(b.Intersect(a)), "intersect commutes: %q %q", a, b)
			assert.True(t, a.SymmetricDifference(b).Equal(a.Union(b).Subtract(a.Intersect(b))), "xor: %q %q", a, b)
			assert.True(t, a.Intersect(b).IsSubsetOf(a))
			assert.True(t, a.IsSubsetOf(a.Union(b)))
		}
	}
}

func TestScopeEqualityIgnoresOrder(t *testing.T) {
	t.Parallel()

	a := scope.New("vso.code", "vso.packaging", "vso.build")
	b := scope.New("vso.build", "vso.code", "vso.packaging")
	c := scope.New("vso.build", "vso.code")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Sorted(), b.Sorted())
	assert.True(t, scope.New("x", "x", " ").Equal(scope.New("x")))
}

func TestScopeOperations(t *testing.T) {
	t.Parallel()

	a := scope.New("repo", "gist", "user")
	b := scope.New("gist", "notifications")

	tests := []struct {
		name string
		got  scope.Scope
		want scope.Scope
	}{
		{name: "union", got: a.Union(b), want: scope.New("repo", "gist", "user", "notifications")},
		{name: "subtract", got: a.Subtract(b), want: scope.New("repo", "user")},
		{name: "intersect", got: a.Intersect(b), want: scope.New("gist")},
		{name: "symmetric_difference", got: a.SymmetricDifference(b), want: scope.New("repo", "user", "notifications")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, tt.want.Equal(tt.got), "got %q want %q", tt.got, tt.want)
		})
	}

	// receivers are untouched
	assert.Equal(t, "repo gist user", a.Value())
	assert.Equal(t, "gist notifications", b.Value())
}

func TestScopeValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "vso.code_write vso.packaging", scope.VstsDefault.Value())
	assert.Equal(t, "", scope.VstsNone.Value())
	assert.True(t, scope.VstsNone.IsEmpty())
	assert.True(t, scope.Parse("  repo   gist ").Equal(scope.GitHubDefault))
	assert.Equal(t, []string{"gist", "repo"}, scope.GitHubDefault.Scopes())
	assert.Equal(t, 2, scope.GitHubDefault.Len())
}
