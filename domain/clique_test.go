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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCliqueSetEquality(t *testing.T) {
	for _, tc := range []struct {
		a, b  Clique
		equal bool
	}{
		{NewClique("a", "b"), NewClique("b", "a"), true},
		{NewClique("a", "b"), NewClique("a", "b", "c"), false},
		{NewClique("a"), NewClique("a", "a"), true},
		{NewClique("a", "b", "c"), NewClique("c", "a", "b"), true},
	} {
		if got := tc.a.Equal(tc.b); got != tc.equal {
			t.Errorf("Equal(%v, %v) = %t, want %t", tc.a, tc.b, got, tc.equal)
		}
		if got := tc.a.Key() == tc.b.Key(); got != tc.equal {
			t.Errorf("Key equality of %v and %v = %t, want %t", tc.a, tc.b, got, tc.equal)
		}
	}
}

func TestCliquePreservesOrder(t *testing.T) {
	cl := NewClique("z", "a", "m")
	if diff := cmp.Diff([]string{"z", "a", "m"}, cl.Attrs()); diff != "" {
		t.Errorf("Attrs() diff (-want +got):\n%s", diff)
	}
}

func TestCliqueSubsetAndDiff(t *testing.T) {
	big := NewClique("a", "b", "c")
	small := NewClique("c", "a")
	if !small.SubsetOf(big) {
		t.Errorf("%v should be a subset of %v", small, big)
	}
	if big.SubsetOf(small) {
		t.Errorf("%v should not be a subset of %v", big, small)
	}
	if diff := cmp.Diff([]string{"b"}, big.Diff(small)); diff != "" {
		t.Errorf("Diff diff (-want +got):\n%s", diff)
	}
}

func TestDownwardClosure(t *testing.T) {
	got := DownwardClosure([]Clique{NewClique("a", "c"), NewClique("b", "c")})
	want := []string{"(a)", "(b)", "(c)", "(a,c)", "(b,c)"}
	var names []string
	for _, cl := range got {
		names = append(names, cl.String())
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("DownwardClosure diff (-want +got):\n%s", diff)
	}
	// Sizes must be ascending so smaller cliques are always built first.
	for i := 1; i < len(got); i++ {
		if got[i].Len() < got[i-1].Len() {
			t.Errorf("closure not ascending by size at position %d: %v after %v", i, got[i], got[i-1])
		}
	}
}

func TestDownwardClosureDeduplicates(t *testing.T) {
	got := DownwardClosure([]Clique{NewClique("a", "b"), NewClique("b", "a")})
	if len(got) != 3 {
		t.Errorf("DownwardClosure returned %d cliques, want 3 (a, b, ab)", len(got))
	}
	seen := map[string]bool{}
	for _, cl := range got {
		if seen[cl.Key()] {
			t.Errorf("clique %v appears twice", cl)
		}
		seen[cl.Key()] = true
	}
}

func TestDownwardClosureOfTriple(t *testing.T) {
	got := DownwardClosure([]Clique{NewClique("a", "b", "c")})
	if len(got) != 7 {
		t.Errorf("closure of a 3-clique has %d members, want 7", len(got))
	}
}
