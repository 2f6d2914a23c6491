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

// Package noise converts (ε,δ)-DP budgets to zero-concentrated DP, splits
// them across measurement phases, and draws the calibrated Gaussian noise.
package noise

import (
	"fmt"
	"math"

	"github.com/dpsynth/adagrid/checks"
)

// rhoAccuracy bounds the width of the bisection interval when converting
// an (ε,δ) budget to ρ, relative to ε.
const rhoAccuracy = 1e-12

// Phases is the number of equal sub-budgets the total ρ is split into:
// one for the initial measurements, one for selection, one for the
// selected measurements.
const Phases = 3

// Rho returns the largest zCDP budget ρ such that any ρ-zCDP mechanism is
// (ε,δ)-differentially private. The conversion follows Canonne, Kamath and
// Steinke, "The Discrete Gaussian for Differential Privacy"
// (https://arxiv.org/abs/2004.00010), computing the tight zCDP-to-DP delta
// and inverting it by bisection.
func Rho(epsilon, delta float64) (float64, error) {
	if err := checks.CheckEpsilonStrict("Rho", epsilon); err != nil {
		return 0, err
	}
	if err := checks.CheckDelta("Rho", delta); err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, fmt.Errorf("Rho: Delta is 0, the Gaussian mechanism requires a strictly positive delta")
	}

	// deltaForRho is decreasing in ε and increasing in ρ, so bisection on
	// ρ over [0, ε+1] converges to the largest admissible budget.
	lower, upper := 0.0, epsilon+1
	for upper-lower > rhoAccuracy*epsilon {
		middle := lower*0.5 + upper*0.5
		if deltaForRho(middle, epsilon) <= delta {
			lower = middle
		} else {
			upper = middle
		}
	}
	return lower, nil
}

// deltaForRho returns the smallest δ such that a ρ-zCDP mechanism is
// (ε,δ)-DP. The optimal Rényi order α is located by bisection on the
// derivative of the Rényi-divergence bound.
func deltaForRho(rho, eps float64) float64 {
	if rho == 0 {
		return 0
	}
	aMin := 1.01
	aMax := (eps+1)/(2*rho) + 2
	var alpha float64
	for aMax-aMin > 1e-12*aMax {
		alpha = aMin*0.5 + aMax*0.5
		derivative := (2*alpha-1)*rho - eps + math.Log1p(-1.0/alpha)
		if derivative < 0 {
			aMin = alpha
		} else {
			aMax = alpha
		}
	}
	delta := math.Exp((alpha-1)*(alpha*rho-eps)+alpha*math.Log1p(-1/alpha)) / (alpha - 1.0)
	return math.Min(delta, 1.0)
}

// Sigma returns the Gaussian noise standard deviation for one of m
// releases sharing the phase budget rhoPhase equally. Under zCDP a
// sensitivity-1 Gaussian release with deviation σ costs 1/(2σ²), so each
// release's share rhoPhase/m requires σ = sqrt(m·0.5/rhoPhase).
//
// This formula is the single source of truth for noise calibration; both
// measurement phases use it verbatim.
func Sigma(m int, rhoPhase float64) float64 {
	return math.Sqrt(float64(m) * 0.5 / rhoPhase)
}

// SelectionEpsilon returns the per-selection ε for k exponential-mechanism
// releases of sensitivity 1 sharing the phase budget rhoPhase, using the
// standard ρ-to-ε conversion ε = sqrt(8·ρ/k) for composed selections.
func SelectionEpsilon(k int, rhoPhase float64) float64 {
	return math.Sqrt(8 * rhoPhase / float64(k))
}
