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

// Package adaptive sequences the three-phase adaptive measurement
// mechanism: an initial pass over all target-augmented one-attribute
// marginals and their subsets, a private spanning-tree selection of
// further pairwise marginals, and a second measurement pass over the
// selected cliques. The noisy measurement log is handed to an estimation
// engine, which produces the synthetic output.
package adaptive

import (
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/dpsynth/adagrid/checks"
	"github.com/dpsynth/adagrid/domain"
	"github.com/dpsynth/adagrid/inference"
	"github.com/dpsynth/adagrid/measure"
	"github.com/dpsynth/adagrid/mechanism"
	"github.com/dpsynth/adagrid/noise"
)

// Error taxonomy. Every error returned by Run wraps one of these (or is a
// propagated engine/selection error); callers classify with errors.Is.
var (
	// ErrConfiguration covers invalid parameters: budgets, thresholds,
	// targets, missing engine. Raised before any sensitive data is read.
	ErrConfiguration = errors.New("adagrid: invalid configuration")
	// ErrData covers domain/dataset inconsistencies discovered while
	// measuring.
	ErrData = errors.New("adagrid: data does not match domain")
	// ErrNumerical covers estimation failures: a fit that does not
	// converge or returns non-finite values.
	ErrNumerical = errors.New("adagrid: numerical failure in estimation")
)

// Mechanism configures one adaptive measurement run. The zero value is
// not usable; every field except SampleRows must be set.
type Mechanism struct {
	// Epsilon and Delta form the total (ε,δ)-DP budget of the run.
	Epsilon float64
	Delta   float64
	// Threshold scales the plausibility cutoff: a cell stays plausible
	// when its estimated count reaches Threshold times the noise scale.
	Threshold float64
	// Targets are attributes joined onto every measured clique.
	Targets []string
	// Engine fits models to the measurement log.
	Engine inference.Engine
	// SampleRows is the number of synthetic records to draw. When zero,
	// the engine's estimate of the record count is used.
	SampleRows int
}

// Result carries everything a run produces: the synthetic dataset, the
// immutable measurement log, the privately selected cliques and the
// sequence of phases passed through.
type Result struct {
	Synthetic *domain.Dataset
	Log       []measure.Measurement
	Selected  []domain.Clique
	Phases    []Phase

	phase Phase
}

// Run executes the full mechanism against the dataset. All randomness,
// noise draws and selection alike, comes from rnd, so a fixed seed
// reproduces the run byte for byte.
//
// Once a noisy release has been committed its budget is spent; any error
// after that point aborts the run without output and without re-drawing.
func (m *Mechanism) Run(data *domain.Dataset, rnd *rand.Rand) (*Result, error) {
	res := &Result{phase: PhaseInit, Phases: []Phase{PhaseInit}}

	// INIT: everything here runs before any sensitive access.
	if data == nil {
		return nil, fmt.Errorf("%w: dataset must not be nil", ErrConfiguration)
	}
	if m.Engine == nil {
		return nil, fmt.Errorf("%w: estimation engine must not be nil", ErrConfiguration)
	}
	if rnd == nil {
		return nil, fmt.Errorf("%w: random source must not be nil", ErrConfiguration)
	}
	dom := data.Domain()
	if err := checks.CheckEpsilonStrict("Run", m.Epsilon); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := checks.CheckDelta("Run", m.Delta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := checks.CheckThreshold("Run", m.Threshold); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := checks.CheckTargets("Run", dom, m.Targets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	rho, err := noise.Rho(m.Epsilon, m.Delta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	rhoPhase := rho / noise.Phases

	runID := uuid.New().String()
	log.Infof("adagrid run %s: epsilon=%f delta=%e rho=%f targets=%v", runID, m.Epsilon, m.Delta, rho, m.Targets)

	// MEASURE: the downward closure of every non-target attribute joined
	// with the targets, smallest cliques first so larger cliques can
	// reuse their operators and plausibility.
	if err := res.advance(PhaseMeasure); err != nil {
		return nil, err
	}
	var outer []domain.Clique
	for _, a := range dom.Invert(m.Targets) {
		outer = append(outer, domain.NewClique(append([]string{a}, m.Targets...)...))
	}
	cliques := domain.DownwardClosure(outer)
	sigma1 := noise.Sigma(len(cliques), rhoPhase)
	log.Infof("adagrid run %s: measuring %d cliques at sigma %f", runID, len(cliques), sigma1)

	ws := measure.NewWorkspace(dom)
	for _, cl := range cliques {
		op, err := ws.BuildOperator(cl)
		if err != nil {
			return nil, fmt.Errorf("%w: building operator for %v: %v", ErrData, cl, err)
		}
		y, err := m.release(data, cl, op, sigma1, rnd)
		if err != nil {
			return nil, err
		}
		if err := ws.RecordPlausibility(cl, op, y, sigma1, m.Threshold); err != nil {
			return nil, err
		}
		if err := ws.Commit(cl, op); err != nil {
			return nil, err
		}
		res.Log = append(res.Log, measure.Measurement{Q: op.Q, Y: y, Weight: 1.0, Clique: cl})
	}

	// ESTIMATE: first external call.
	if err := res.advance(PhaseEstimate); err != nil {
		return nil, err
	}
	model, err := m.Engine.Fit(res.Log, dom, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	// SELECT: spends budget only through the exponential mechanism
	// inside the selector.
	if err := res.advance(PhaseSelect); err != nil {
		return nil, err
	}
	selected, err := mechanism.SelectTree(data, model, rhoPhase, m.Targets, rnd)
	if err != nil {
		return nil, fmt.Errorf("selecting cliques: %w", err)
	}
	res.Selected = selected
	log.Infof("adagrid run %s: selected %d cliques", runID, len(selected))

	// REMEASURE: one shared noise scale across all selected cliques,
	// regardless of their joint-domain sizes.
	if err := res.advance(PhaseRemeasure); err != nil {
		return nil, err
	}
	sigma3 := noise.Sigma(len(selected), rhoPhase)
	for _, cl := range selected {
		op, err := ws.BuildOperator(cl)
		if err != nil {
			return nil, fmt.Errorf("%w: building operator for %v: %v", ErrData, cl, err)
		}
		y, err := m.release(data, cl, op, sigma3, rnd)
		if err != nil {
			return nil, err
		}
		res.Log = append(res.Log, measure.Measurement{Q: op.Q, Y: y, Weight: 1.0, Clique: cl})
	}

	// FINAL_ESTIMATE: refit over the complete log, warm-started from the
	// first fit, then sample.
	if err := res.advance(PhaseFinal); err != nil {
		return nil, err
	}
	final, err := m.Engine.Fit(res.Log, dom, model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}
	rows := m.SampleRows
	if rows <= 0 {
		rows = int(math.Round(final.Total()))
	}
	synth, err := final.Sample(rows, rnd)
	if err != nil {
		return nil, fmt.Errorf("%w: sampling synthetic records: %v", ErrNumerical, err)
	}
	res.Synthetic = synth

	if err := res.advance(PhaseDone); err != nil {
		return nil, err
	}
	log.Infof("adagrid run %s: done, %d synthetic records", runID, synth.Len())
	return res, nil
}

// release performs one noisy measurement of cl through op. The exact
// projection exists only inside this function: noise is added to the
// operator's output before anything is stored or returned.
func (m *Mechanism) release(data *domain.Dataset, cl domain.Clique, op *measure.Operator, sigma float64, rnd *rand.Rand) ([]float64, error) {
	rows, _ := op.Q.Dims()
	log.Infof("measuring %v, %d readout rows, L2 sensitivity %.6f", cl, rows, op.Q.MaxColumnNorm())

	mu, err := data.Project(cl)
	if err != nil {
		return nil, fmt.Errorf("%w: projecting onto %v: %v", ErrData, cl, err)
	}
	y, err := op.Q.MulVec(mu)
	if err != nil {
		return nil, err
	}
	e, err := noise.GaussianVector(rows, sigma, rnd)
	if err != nil {
		return nil, err
	}
	floats.Add(y, e)
	return y, nil
}
