// Package scope models the permission grants requested when minting tokens.
//
// A Scope is an immutable set of provider-defined scope strings. Set operations return new
// values and never modify their receivers:
//
//	s := scope.VstsCodeWrite.Union(scope.VstsPackagingRead)
//	s.Value() // "vso.code_write vso.packaging"
//
// Equality is set equality; the order scopes were added in only affects Value's rendering.
package scope

import (
	"sort"
	"strings"
)

// Scope is an immutable set of scope strings.
type Scope struct {
	scopes []string
}

// New builds a scope from the given strings. Empty strings and duplicates are dropped and
// the first occurrence fixes the rendering order.
func New(scopes ...string) Scope {
	out := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return Scope{scopes: out}
}

// Parse splits a space separated scope string.
func Parse(value string) Scope {
	return New(strings.Fields(value)...)
}

// Value renders the scopes space separated, as used verbatim in provider request bodies.
func (s Scope) Value() string {
	return strings.Join(s.scopes, " ")
}

func (s Scope) String() string {
	return s.Value()
}

// Scopes returns a copy of the scope strings in rendering order.
func (s Scope) Scopes() []string {
	out := make([]string, len(s.scopes))
	copy(out, s.scopes)
	return out
}

func (s Scope) Len() int { return len(s.scopes) }

func (s Scope) IsEmpty() bool { return len(s.scopes) == 0 }

// Contains reports whether scope is a member of s.
func (s Scope) Contains(scope string) bool {
	for _, v := range s.scopes {
		if v == scope {
			return true
		}
	}
	return false
}

// Union returns every scope in s or other.
func (s Scope) Union(other Scope) Scope {
	all := make([]string, 0, len(s.scopes)+len(other.scopes))
	all = append(all, s.scopes...)
	all = append(all, other.scopes...)
	return New(all...)
}

// Subtract returns the scopes of s that are not in other.
func (s Scope) Subtract(other Scope) Scope {
	return s.filter(func(v string) bool { return !other.Contains(v) })
}

// Intersect returns the scopes present in both s and other.
func (s Scope) Intersect(other Scope) Scope {
	return s.filter(other.Contains)
}

// SymmetricDifference returns the scopes present in exactly one of s and other.
func (s Scope) SymmetricDifference(other Scope) Scope {
	return s.Subtract(other).Union(other.Subtract(s))
}

// IsSubsetOf reports whether every scope of s is in other.
func (s Scope) IsSubsetOf(other Scope) bool {
	for _, v := range s.scopes {
		if !other.Contains(v) {
			return false
		}
	}
	return true
}

// Equal is set equality.
func (s Scope) Equal(other Scope) bool {
	return len(s.scopes) == len(other.scopes) && s.IsSubsetOf(other)
}

// Sorted returns the scope strings in lexical order, useful as a canonical form.
func (s Scope) Sorted() []string {
	out := s.Scopes()
	sort.Strings(out)
	return out
}

func (s Scope) filter(keep func(string) bool) Scope {
	out := make([]string, 0, len(s.scopes))
	for _, v := range s.scopes {
		if keep(v) {
			out = append(out, v)
		}
	}
	return Scope{scopes: out}
}
