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

package measure

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dpsynth/adagrid/domain"
)

func mustDomain(t *testing.T, attrs []string, sizes []int) *domain.Domain {
	t.Helper()
	d, err := domain.New(attrs, sizes)
	if err != nil {
		t.Fatalf("domain.New failed: %v", err)
	}
	return d
}

func TestBuildOperatorWithoutHistoryIsIdentity(t *testing.T) {
	dom := mustDomain(t, []string{"a"}, []int{3})
	w := NewWorkspace(dom)
	op, err := w.BuildOperator(domain.NewClique("a"))
	if err != nil {
		t.Fatalf("BuildOperator failed: %v", err)
	}
	rows, cols := op.Q.Dims()
	if rows != 3 || cols != 3 {
		t.Fatalf("operator shape = (%d, %d), want (3, 3)", rows, cols)
	}
	y, err := op.Q.MulVec([]float64{7, 8, 9})
	if err != nil {
		t.Fatalf("MulVec failed: %v", err)
	}
	if diff := cmp.Diff([]float64{7, 8, 9}, y); diff != "" {
		t.Errorf("identity operator diff (-want +got):\n%s", diff)
	}
}

func TestPlausibleWithoutHistoryIsAllTrue(t *testing.T) {
	dom := mustDomain(t, []string{"a", "b"}, []int{2, 3})
	w := NewWorkspace(dom)
	mask, err := w.Plausible(domain.NewClique("a", "b"))
	if err != nil {
		t.Fatalf("Plausible failed: %v", err)
	}
	for j, ok := range mask {
		if !ok {
			t.Errorf("cell %d implausible with no recorded sub-cliques", j)
		}
	}
}

// commitSingleton builds, records and commits one singleton clique with
// the given pre-noise outcome, sigma 1 and threshold 5.
func commitSingleton(t *testing.T, w *Workspace, attr string, y []float64) {
	t.Helper()
	cl := domain.NewClique(attr)
	op, err := w.BuildOperator(cl)
	if err != nil {
		t.Fatalf("BuildOperator(%s) failed: %v", attr, err)
	}
	if err := w.RecordPlausibility(cl, op, y, 1, 5); err != nil {
		t.Fatalf("RecordPlausibility(%s) failed: %v", attr, err)
	}
	if err := w.Commit(cl, op); err != nil {
		t.Fatalf("Commit(%s) failed: %v", attr, err)
	}
}

func TestPairOperatorStructure(t *testing.T) {
	dom := mustDomain(t, []string{"a", "b"}, []int{2, 3})
	w := NewWorkspace(dom)
	// Cell a=1 and cell b=2 fall below the 5-sigma threshold.
	commitSingleton(t, w, "a", []float64{10, 0.1})
	commitSingleton(t, w, "b", []float64{10, 10, 0.1})

	cl := domain.NewClique("a", "b")
	mask, err := w.Plausible(cl)
	if err != nil {
		t.Fatalf("Plausible failed: %v", err)
	}
	// Row-major over (a, b): only (0,0) and (0,1) survive both factors.
	if diff := cmp.Diff([]bool{true, true, false, false, false, false}, mask); diff != "" {
		t.Errorf("plausibility mask diff (-want +got):\n%s", diff)
	}

	op, err := w.BuildOperator(cl)
	if err != nil {
		t.Fatalf("BuildOperator failed: %v", err)
	}
	rows, cols := op.Q.Dims()
	if rows != 7 || cols != 6 {
		t.Fatalf("operator shape = (%d, %d), want (7, 6)", rows, cols)
	}
	idRows, _ := op.Identity.Dims()
	if idRows != 2 {
		t.Errorf("identity block has %d rows, want 2", idRows)
	}

	// Two plausible unit rows, then the two reused singleton operators at
	// coefficient 1/sqrt(2) with the plausible columns zeroed.
	y, err := op.Q.MulVec([]float64{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("MulVec failed: %v", err)
	}
	s := 1 / math.Sqrt2
	want := []float64{1, 2, 3 * s, 15 * s, 4 * s, 5 * s, 9 * s}
	if len(y) != len(want) {
		t.Fatalf("readout has %d rows, want %d", len(y), len(want))
	}
	for i := range want {
		if math.Abs(y[i]-want[i]) > 1e-12 {
			t.Errorf("readout row %d = %f, want %f", i, y[i], want[i])
		}
	}

	if norm := op.Q.MaxColumnNorm(); norm > 1+1e-9 {
		t.Errorf("MaxColumnNorm = %f, want at most 1", norm)
	}
}

func TestOperatorColumnNormsOverClosure(t *testing.T) {
	dom := mustDomain(t, []string{"a", "b", "c"}, []int{2, 3, 2})
	w := NewWorkspace(dom)
	closure := domain.DownwardClosure([]domain.Clique{domain.NewClique("a", "b", "c")})
	for _, cl := range closure {
		op, err := w.BuildOperator(cl)
		if err != nil {
			t.Fatalf("BuildOperator(%v) failed: %v", cl, err)
		}
		if norm := op.Q.MaxColumnNorm(); norm > 1+1e-9 {
			t.Errorf("clique %v: MaxColumnNorm = %f, want at most 1", cl, norm)
		}
		n, err := dom.SizeOf(cl)
		if err != nil {
			t.Fatalf("SizeOf failed: %v", err)
		}
		y := make([]float64, n)
		for i := range y {
			y[i] = 100 // everything far above threshold stays plausible
		}
		rows, _ := op.Q.Dims()
		full := make([]float64, rows)
		copy(full, y)
		if err := w.RecordPlausibility(cl, op, full, 1, 5); err != nil {
			t.Fatalf("RecordPlausibility(%v) failed: %v", cl, err)
		}
		if err := w.Commit(cl, op); err != nil {
			t.Fatalf("Commit(%v) failed: %v", cl, err)
		}
	}
}

func TestCommitAndRecordAreOnceOnly(t *testing.T) {
	dom := mustDomain(t, []string{"a"}, []int{2})
	w := NewWorkspace(dom)
	cl := domain.NewClique("a")
	op, err := w.BuildOperator(cl)
	if err != nil {
		t.Fatalf("BuildOperator failed: %v", err)
	}
	if err := w.Commit(cl, op); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := w.Commit(cl, op); err == nil {
		t.Errorf("second Commit should fail")
	}
	if err := w.RecordPlausibility(cl, op, []float64{10, 10}, 1, 5); err != nil {
		t.Fatalf("RecordPlausibility failed: %v", err)
	}
	if err := w.RecordPlausibility(cl, op, []float64{10, 10}, 1, 5); err == nil {
		t.Errorf("second RecordPlausibility should fail")
	}
	if err := w.RecordPlausibility(domain.NewClique("a", "x"), op, []float64{10}, 1, 5); err == nil {
		t.Errorf("RecordPlausibility should reject a short outcome")
	}
}

func TestPermutationIsExact(t *testing.T) {
	dom := mustDomain(t, []string{"a", "b"}, []int{2, 3})
	p, err := Permutation(dom, domain.NewClique("a", "b"), domain.NewClique("b", "a"))
	if err != nil {
		t.Fatalf("Permutation failed: %v", err)
	}
	for i, s := range p.RowSums() {
		if s != 1 {
			t.Errorf("row %d sums to %f, want exactly 1", i, s)
		}
	}
	for i, s := range p.ColSums() {
		if s != 1 {
			t.Errorf("column %d sums to %f, want exactly 1", i, s)
		}
	}
	// Feeding the (a,b)-ordered flat indices through P yields, at each
	// (b,a)-ordered position k = b*2+a, the value a*3+b.
	y, err := p.MulVec([]float64{0, 1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("MulVec failed: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 3, 1, 4, 2, 5}, y); diff != "" {
		t.Errorf("permutation diff (-want +got):\n%s", diff)
	}
	if _, err := Permutation(dom, domain.NewClique("a"), domain.NewClique("b")); err == nil {
		t.Errorf("Permutation should reject mismatched attribute sets")
	}
}
