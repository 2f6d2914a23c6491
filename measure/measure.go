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

// Package measure builds sparse measurement operators for marginal
// queries and tracks which joint-domain cells remain plausible after
// noisy releases.
//
// The operator for a clique stacks fine-grained identity rows over the
// cells its sub-cliques left plausible on top of reused sub-clique
// operators lifted to the clique's joint domain. Every column of the
// result has L2 norm at most 1 by construction, so a single unit of
// Gaussian noise budget covers the whole release.
package measure

import (
	"fmt"
	"math"

	"github.com/dpsynth/adagrid/domain"
	"github.com/dpsynth/adagrid/sparse"
)

// Measurement is one committed noisy release: the operator, the noisy
// outcome, the release weight and the measured clique. Measurements are
// appended to a log exactly once and never rewritten.
type Measurement struct {
	Q      *sparse.Matrix
	Y      []float64
	Weight float64
	Clique domain.Clique
}

// Operator is a built measurement operator. Q is the full stacked
// operator; Identity is its fine-grained prefix, kept separately because
// the plausibility update pulls the outcome back through its transpose.
type Operator struct {
	Q        *sparse.Matrix
	Identity *sparse.Matrix
}

// Workspace owns the per-run state the builders consult: previously built
// operators and frozen plausibility factors, keyed by clique. It replaces
// any notion of ambient module-level caches; every component receives the
// workspace explicitly.
type Workspace struct {
	dom       *domain.Domain
	operators map[string]*sparse.Matrix
	opOrder   []domain.Clique
	plausible map[string][]bool
	plOrder   []domain.Clique
}

// NewWorkspace returns an empty workspace over the given domain.
func NewWorkspace(dom *domain.Domain) *Workspace {
	return &Workspace{
		dom:       dom,
		operators: make(map[string]*sparse.Matrix),
		plausible: make(map[string][]bool),
	}
}

// children returns the cliques in order that are one attribute smaller
// than cl and subsets of it. Insertion order keeps iteration
// deterministic.
func children(cl domain.Clique, order []domain.Clique) []domain.Clique {
	var out []domain.Clique
	for _, c := range order {
		if c.Len()+1 == cl.Len() && c.SubsetOf(cl) {
			out = append(out, c)
		}
	}
	return out
}

// Permutation returns the exact permutation matrix P mapping count
// vectors in from's cell ordering to to's cell ordering: (P x)[k] equals
// x at the from-index of to's k-th cell. The two cliques must cover the
// same attribute set.
func Permutation(dom *domain.Domain, from, to domain.Clique) (*sparse.Matrix, error) {
	if !from.Equal(to) {
		return nil, fmt.Errorf("Cliques %v and %v do not cover the same attributes", from, to)
	}
	perm, err := dom.IndexMap(to, from)
	if err != nil {
		return nil, err
	}
	return sparse.Permutation(perm)
}

// Plausible returns the boolean cell mask for cl derived from the frozen
// plausibility factors of its immediate sub-cliques: a cell stays
// plausible only if every sub-clique marked its projection plausible.
// With no recorded sub-cliques every cell is plausible.
func (w *Workspace) Plausible(cl domain.Clique) ([]bool, error) {
	n, err := w.dom.SizeOf(cl)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	for _, c := range children(cl, w.plOrder) {
		factor := w.plausible[c.Key()]
		idx, err := w.dom.IndexMap(cl, c)
		if err != nil {
			return nil, err
		}
		for j := range mask {
			mask[j] = mask[j] && factor[idx[j]]
		}
	}
	return mask, nil
}

// BuildOperator assembles the measurement operator for cl from the
// workspace's plausibility state and previously committed operators. The
// construction is deterministic: identical workspace state yields an
// identical operator.
func (w *Workspace) BuildOperator(cl domain.Clique) (*Operator, error) {
	n, err := w.dom.SizeOf(cl)
	if err != nil {
		return nil, err
	}
	mask, err := w.Plausible(cl)
	if err != nil {
		return nil, err
	}
	var cells []int
	for j, ok := range mask {
		if ok {
			cells = append(cells, j)
		}
	}
	q1, err := sparse.UnitRows(n, cells)
	if err != nil {
		return nil, err
	}

	q2, err := w.aggregate(cl, n, mask)
	if err != nil {
		return nil, err
	}
	q, err := sparse.VStack(q1, q2)
	if err != nil {
		return nil, err
	}
	return &Operator{Q: q, Identity: q1}, nil
}

// aggregate builds the reused-measurement block: every immediate
// sub-clique's committed operator, lifted to cl's joint domain by a
// uniform-ones Kronecker factor over the missing attributes and an exact
// permutation realignment, scaled by 1/sqrt(children), with the columns
// already covered by the identity block zeroed out.
func (w *Workspace) aggregate(cl domain.Clique, n int, covered []bool) (*sparse.Matrix, error) {
	kids := children(cl, w.opOrder)
	empty, err := sparse.FromTriplets(0, n, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(kids) == 0 {
		return empty, nil
	}
	coef := 1.0 / math.Sqrt(float64(len(kids)))
	parts := []*sparse.Matrix{empty}
	for _, c := range kids {
		missing := cl.Diff(c)
		prefix := 1
		for _, a := range missing {
			s, err := w.dom.Size(a)
			if err != nil {
				return nil, err
			}
			prefix *= s
		}
		// cl2 carries the child's cells contiguously so the lifted
		// operator's columns follow cl2's cell ordering.
		cl2 := domain.NewClique(append(missing, c.Attrs()...)...)
		lifted, err := sparse.KronOnes(prefix, w.operators[c.Key()])
		if err != nil {
			return nil, err
		}
		perm, err := w.dom.IndexMap(cl2, cl)
		if err != nil {
			return nil, err
		}
		aligned, err := lifted.PermuteColumns(perm)
		if err != nil {
			return nil, err
		}
		parts = append(parts, aligned.Scale(coef))
	}
	stacked, err := sparse.VStack(parts...)
	if err != nil {
		return nil, err
	}
	return stacked.ZeroColumns(covered)
}

// Commit stores cl's built operator for reuse by larger cliques. An
// operator may be committed only once.
func (w *Workspace) Commit(cl domain.Clique, op *Operator) error {
	if _, ok := w.operators[cl.Key()]; ok {
		return fmt.Errorf("Operator for clique %v is already committed", cl)
	}
	w.operators[cl.Key()] = op.Q
	w.opOrder = append(w.opOrder, cl)
	return nil
}

// RecordPlausibility derives cl's plausibility factor from its noisy
// outcome and freezes it: the fine-grained block of y is pulled back
// through the identity rows' transpose to estimate per-cell counts, and a
// cell is plausible when its estimate reaches sigma times the threshold.
// A clique's factor can be recorded only once.
func (w *Workspace) RecordPlausibility(cl domain.Clique, op *Operator, y []float64, sigma, threshold float64) error {
	if _, ok := w.plausible[cl.Key()]; ok {
		return fmt.Errorf("Plausibility for clique %v is already frozen", cl)
	}
	idRows, _ := op.Identity.Dims()
	if len(y) < idRows {
		return fmt.Errorf("Outcome has %d entries, operator has %d identity rows", len(y), idRows)
	}
	est, err := op.Identity.MulVecT(y[:idRows])
	if err != nil {
		return err
	}
	factor := make([]bool, len(est))
	for i, e := range est {
		factor[i] = e >= sigma*threshold
	}
	w.plausible[cl.Key()] = factor
	w.plOrder = append(w.plOrder, cl)
	return nil
}
