//
// Copyright 2025 The AdaGrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package domain

import (
	"sort"
	"strings"
)

// keySep separates attribute names inside a canonical clique key. It is a
// unit separator, which cannot appear in reasonable attribute names.
const keySep = "\x1f"

// Clique is a non-empty collection of attributes measured together. It
// carries the order it was constructed with, which fixes the flat cell
// ordering of its joint domain, but equality, containment and hashing use
// the underlying attribute set only.
type Clique struct {
	attrs []string
	key   string
}

// NewClique builds a clique from the given attributes, preserving their
// order. Duplicate attributes are collapsed, keeping the first occurrence.
func NewClique(attrs ...string) Clique {
	kept := make([]string, 0, len(attrs))
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if !seen[a] {
			seen[a] = true
			kept = append(kept, a)
		}
	}
	sorted := append([]string(nil), kept...)
	sort.Strings(sorted)
	return Clique{attrs: kept, key: strings.Join(sorted, keySep)}
}

// Attrs returns the clique's attributes in construction order.
func (c Clique) Attrs() []string {
	return append([]string(nil), c.attrs...)
}

// Len returns the number of attributes in the clique.
func (c Clique) Len() int {
	return len(c.attrs)
}

// Key returns the canonical set key of the clique. Two cliques over the
// same attribute set have equal keys regardless of attribute order.
func (c Clique) Key() string {
	return c.key
}

// Equal reports whether the two cliques cover the same attribute set.
func (c Clique) Equal(o Clique) bool {
	return c.key == o.key
}

// Contains reports whether the clique includes the named attribute.
func (c Clique) Contains(attr string) bool {
	for _, a := range c.attrs {
		if a == attr {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every attribute of c is also in o.
func (c Clique) SubsetOf(o Clique) bool {
	for _, a := range c.attrs {
		if !o.Contains(a) {
			return false
		}
	}
	return true
}

// Diff returns the attributes of c that are not in o, in c's order.
func (c Clique) Diff(o Clique) []string {
	var out []string
	for _, a := range c.attrs {
		if !o.Contains(a) {
			out = append(out, a)
		}
	}
	return out
}

func (c Clique) String() string {
	return "(" + strings.Join(c.attrs, ",") + ")"
}

// DownwardClosure returns every non-empty subset of every input clique,
// deduplicated by attribute set and ordered ascending by size. Ties are
// broken by canonical key so the result is deterministic.
func DownwardClosure(cliques []Clique) []Clique {
	byKey := make(map[string]Clique)
	for _, cl := range cliques {
		attrs := cl.attrs
		// Enumerate subsets by bitmask; cliques are small.
		for mask := 1; mask < 1<<len(attrs); mask++ {
			var sub []string
			for i, a := range attrs {
				if mask&(1<<i) != 0 {
					sub = append(sub, a)
				}
			}
			sc := NewClique(sub...)
			if _, ok := byKey[sc.key]; !ok {
				byKey[sc.key] = sc
			}
		}
	}
	out := make([]Clique, 0, len(byKey))
	for _, cl := range byKey {
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Len() != out[j].Len() {
			return out[i].Len() < out[j].Len()
		}
		return out[i].key < out[j].key
	})
	return out
}
