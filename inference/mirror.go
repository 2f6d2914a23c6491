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

package inference

import (
	"fmt"
	"math"
	"sort"

	log "github.com/golang/glog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/dpsynth/adagrid/domain"
	"github.com/dpsynth/adagrid/measure"
)

// maxJointCells bounds the explicit joint table Mirror maintains. Domains
// beyond this need a factored backend behind the same Engine interface.
const maxJointCells = 1 << 24

// colSumTolerance decides when an operator's column sums count every
// record exactly once, making the outcome's sum an estimate of the total.
const colSumTolerance = 1e-9

// Mirror is an estimation engine that maintains the full joint
// distribution explicitly and fits it to the measurement log by mirror
// descent on the least-squares objective. It is exact enough for modest
// domains and honors warm starts.
type Mirror struct {
	// Iters is the number of descent iterations per fit.
	Iters int
}

// NewMirror returns a Mirror engine running the given number of descent
// iterations per fit.
func NewMirror(iters int) *Mirror {
	return &Mirror{Iters: iters}
}

// Fit implements Engine.
func (e *Mirror) Fit(ms []measure.Measurement, dom *domain.Domain, warm Model) (Model, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("Mirror: measurement log is empty")
	}
	full := domain.NewClique(dom.Attrs()...)
	n, err := dom.SizeOf(full)
	if err != nil {
		return nil, err
	}
	if n > maxJointCells {
		return nil, fmt.Errorf("Mirror: joint domain has %d cells, exceeds the %d-cell limit", n, maxJointCells)
	}
	for _, m := range ms {
		for _, v := range m.Y {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("Mirror: measurement of %v contains a non-finite outcome", m.Clique)
			}
		}
	}

	total := estimateTotal(ms)

	logp := make([]float64, n)
	if wm, ok := warm.(*mirrorModel); ok && sameAttrs(wm.dom, dom) {
		for i, p := range wm.prob {
			logp[i] = math.Log(p + 1e-300)
		}
	} else {
		uniform := -math.Log(float64(n))
		for i := range logp {
			logp[i] = uniform
		}
	}
	normalize(logp)

	// Per-measurement cell maps from the joint table to the measured
	// clique's datavector.
	maps := make([][]int, len(ms))
	for i, m := range ms {
		idx, err := dom.IndexMap(full, m.Clique)
		if err != nil {
			return nil, err
		}
		maps[i] = idx
	}

	iters := e.Iters
	if iters <= 0 {
		iters = 1000
	}
	step := 1.0 / (total * float64(len(ms)))
	prob := make([]float64, n)
	grad := make([]float64, n)
	for it := 0; it < iters; it++ {
		for i := range prob {
			prob[i] = math.Exp(logp[i])
			grad[i] = 0
		}
		for i, m := range ms {
			_, cells := m.Q.Dims()
			mu := make([]float64, cells)
			for j, p := range prob {
				mu[maps[i][j]] += total * p
			}
			qmu, err := m.Q.MulVec(mu)
			if err != nil {
				return nil, err
			}
			floats.Sub(qmu, m.Y)
			if m.Weight != 1.0 {
				floats.Scale(m.Weight, qmu)
			}
			g, err := m.Q.MulVecT(qmu)
			if err != nil {
				return nil, err
			}
			for j := range grad {
				grad[j] += g[maps[i][j]]
			}
		}
		for j := range logp {
			logp[j] -= step * grad[j]
		}
		normalize(logp)
	}

	for i := range prob {
		prob[i] = math.Exp(logp[i])
		if math.IsNaN(prob[i]) {
			return nil, fmt.Errorf("Mirror: fit diverged to non-finite values")
		}
	}
	return &mirrorModel{dom: dom, prob: prob, total: total}, nil
}

// estimateTotal derives the record-count estimate from the log: the first
// release whose operator counts every cell exactly once (all column sums
// equal 1) has an outcome summing to a noisy copy of the total. Nothing
// here reads the raw dataset.
func estimateTotal(ms []measure.Measurement) float64 {
	for _, m := range ms {
		sums := m.Q.ColSums()
		complete := true
		for _, s := range sums {
			if math.Abs(s-1) > colSumTolerance {
				complete = false
				break
			}
		}
		if complete {
			return math.Max(1, floats.Sum(m.Y))
		}
	}
	log.Warningf("Mirror: no complete counting release in the log, defaulting total to 1")
	return 1
}

func sameAttrs(a, b *domain.Domain) bool {
	as, bs := a.Attrs(), b.Attrs()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// normalize shifts logp so that the probabilities sum to one.
func normalize(logp []float64) {
	lse := floats.LogSumExp(logp)
	for i := range logp {
		logp[i] -= lse
	}
}

// mirrorModel is the fitted joint table.
type mirrorModel struct {
	dom   *domain.Domain
	prob  []float64
	total float64
}

// Project implements Model.
func (m *mirrorModel) Project(cl domain.Clique) ([]float64, error) {
	full := domain.NewClique(m.dom.Attrs()...)
	idx, err := m.dom.IndexMap(full, cl)
	if err != nil {
		return nil, err
	}
	cells, err := m.dom.SizeOf(cl)
	if err != nil {
		return nil, err
	}
	out := make([]float64, cells)
	for j, p := range m.prob {
		out[idx[j]] += m.total * p
	}
	return out, nil
}

// Total implements Model.
func (m *mirrorModel) Total() float64 {
	return m.total
}

// Sample implements Model. Records are drawn independently from the
// fitted joint distribution.
func (m *mirrorModel) Sample(n int, rnd *rand.Rand) (*domain.Dataset, error) {
	if n < 0 {
		return nil, fmt.Errorf("Mirror: sample size is %d, must be nonnegative", n)
	}
	if rnd == nil {
		return nil, fmt.Errorf("Mirror: random source must not be nil")
	}
	cum := make([]float64, len(m.prob))
	acc := 0.0
	for i, p := range m.prob {
		acc += p
		cum[i] = acc
	}
	attrs := m.dom.Attrs()
	sizes := make([]int, len(attrs))
	for i, a := range attrs {
		s, err := m.dom.Size(a)
		if err != nil {
			return nil, err
		}
		sizes[i] = s
	}
	rows := make([][]int, n)
	for r := 0; r < n; r++ {
		u := rnd.Float64() * acc
		cell := sort.SearchFloat64s(cum, u)
		if cell == len(cum) {
			cell--
		}
		rec := make([]int, len(attrs))
		for i := len(attrs) - 1; i >= 0; i-- {
			rec[i] = cell % sizes[i]
			cell /= sizes[i]
		}
		rows[r] = rec
	}
	return domain.NewDataset(m.dom, rows)
}
