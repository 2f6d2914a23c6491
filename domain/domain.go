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

// Package domain models discrete attribute domains, cliques of attributes
// and integer-coded datasets, together with the index arithmetic needed to
// move count vectors between overlapping cliques.
package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Domain is an ordered collection of named attributes, each with a fixed
// finite cardinality. A Domain is immutable once constructed.
type Domain struct {
	attrs []string
	sizes map[string]int
}

// New constructs a Domain from parallel slices of attribute names and
// cardinalities. Attribute order is preserved and significant: it defines
// the canonical record layout of datasets over this domain.
func New(attrs []string, sizes []int) (*Domain, error) {
	if len(attrs) != len(sizes) {
		return nil, fmt.Errorf("Domain has %d attributes but %d sizes", len(attrs), len(sizes))
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("Domain must have at least one attribute")
	}
	m := make(map[string]int, len(attrs))
	for i, a := range attrs {
		if a == "" {
			return nil, fmt.Errorf("Attribute name at position %d is empty", i)
		}
		if _, ok := m[a]; ok {
			return nil, fmt.Errorf("Attribute %q appears more than once", a)
		}
		if sizes[i] < 1 {
			return nil, fmt.Errorf("Attribute %q has cardinality %d, must be at least 1", a, sizes[i])
		}
		m[a] = sizes[i]
	}
	return &Domain{attrs: append([]string(nil), attrs...), sizes: m}, nil
}

// FromJSON reads a domain from a JSON object mapping attribute names to
// cardinalities, e.g. {"age": 85, "sex": 2}. Key order in the document is
// preserved, which a plain map decode would lose.
func FromJSON(r io.Reader) (*Domain, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading domain: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("domain document must be a JSON object, got %v", tok)
	}
	var attrs []string
	var sizes []int
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading domain: %v", err)
		}
		key := keyTok.(string)
		var n int
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("reading cardinality of %q: %v", key, err)
		}
		attrs = append(attrs, key)
		sizes = append(sizes, n)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading domain: %v", err)
	}
	return New(attrs, sizes)
}

// Attrs returns the attributes in domain order.
func (d *Domain) Attrs() []string {
	return append([]string(nil), d.attrs...)
}

// Len returns the number of attributes.
func (d *Domain) Len() int {
	return len(d.attrs)
}

// Has reports whether the domain contains the named attribute.
func (d *Domain) Has(attr string) bool {
	_, ok := d.sizes[attr]
	return ok
}

// Size returns the cardinality of the named attribute.
func (d *Domain) Size(attr string) (int, error) {
	n, ok := d.sizes[attr]
	if !ok {
		return 0, fmt.Errorf("Attribute %q is not in the domain", attr)
	}
	return n, nil
}

// Project returns the cardinalities of the clique's attributes, in the
// clique's own order.
func (d *Domain) Project(cl Clique) ([]int, error) {
	out := make([]int, cl.Len())
	for i, a := range cl.attrs {
		n, ok := d.sizes[a]
		if !ok {
			return nil, fmt.Errorf("Clique attribute %q is not in the domain", a)
		}
		out[i] = n
	}
	return out, nil
}

// SizeOf returns the size of the clique's joint domain, the product of its
// attribute cardinalities.
func (d *Domain) SizeOf(cl Clique) (int, error) {
	sizes, err := d.Project(cl)
	if err != nil {
		return 0, err
	}
	n := 1
	for _, s := range sizes {
		n *= s
	}
	return n, nil
}

// Invert returns the attributes not listed in targets, in domain order.
func (d *Domain) Invert(targets []string) []string {
	excluded := make(map[string]bool, len(targets))
	for _, t := range targets {
		excluded[t] = true
	}
	var out []string
	for _, a := range d.attrs {
		if !excluded[a] {
			out = append(out, a)
		}
	}
	return out
}

func (d *Domain) String() string {
	parts := make([]string, len(d.attrs))
	for i, a := range d.attrs {
		parts[i] = fmt.Sprintf("%s:%d", a, d.sizes[a])
	}
	return "Domain(" + strings.Join(parts, ", ") + ")"
}

// strides returns the row-major strides of the clique's joint domain: the
// last attribute varies fastest, matching the flat cell ordering used by
// datavectors everywhere in this module.
func (d *Domain) strides(cl Clique) ([]int, error) {
	sizes, err := d.Project(cl)
	if err != nil {
		return nil, err
	}
	st := make([]int, len(sizes))
	acc := 1
	for i := len(sizes) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= sizes[i]
	}
	return st, nil
}

// IndexMap returns, for every cell of cl's joint domain, the flat index of
// that cell's projection onto sub, which must be a subset of cl. When sub
// contains the same attributes as cl the result is the exact permutation
// relating the two cell orderings.
func (d *Domain) IndexMap(cl, sub Clique) ([]int, error) {
	if !sub.SubsetOf(cl) {
		return nil, fmt.Errorf("Clique %v is not a subset of %v", sub, cl)
	}
	clSizes, err := d.Project(cl)
	if err != nil {
		return nil, err
	}
	subStrides, err := d.strides(sub)
	if err != nil {
		return nil, err
	}
	// Stride of each cl attribute within sub's flat ordering; zero for
	// attributes sub does not carry.
	pos := make([]int, cl.Len())
	for i, a := range cl.attrs {
		pos[i] = 0
		for j, b := range sub.attrs {
			if a == b {
				pos[i] = subStrides[j]
				break
			}
		}
	}
	n := 1
	for _, s := range clSizes {
		n *= s
	}
	out := make([]int, n)
	coords := make([]int, cl.Len())
	for j := 0; j < n; j++ {
		idx := 0
		for i := range coords {
			idx += coords[i] * pos[i]
		}
		out[j] = idx
		// Advance the row-major odometer.
		for i := cl.Len() - 1; i >= 0; i-- {
			coords[i]++
			if coords[i] < clSizes[i] {
				break
			}
			coords[i] = 0
		}
	}
	return out, nil
}
