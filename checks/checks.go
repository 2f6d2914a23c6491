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

// Package checks contains validation for the parameters of differentially
// private operations. All checks run before any sensitive data is read.
package checks

import (
	"fmt"
	"math"

	"github.com/dpsynth/adagrid/domain"
)

// CheckEpsilonStrict returns an error if ε is nonpositive, NaN or +∞.
func CheckEpsilonStrict(label string, epsilon float64) error {
	if epsilon <= 0 || math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return fmt.Errorf("%s: Epsilon is %f, must be strictly positive and finite", label, epsilon)
	}
	return nil
}

// CheckDelta returns an error if δ is NaN, negative or at least 1.
func CheckDelta(label string, delta float64) error {
	if math.IsNaN(delta) {
		return fmt.Errorf("%s: Delta is %e, cannot be NaN", label, delta)
	}
	if delta < 0 {
		return fmt.Errorf("%s: Delta is %e, cannot be negative", label, delta)
	}
	if delta >= 1 {
		return fmt.Errorf("%s: Delta is %e, must be strictly less than 1", label, delta)
	}
	return nil
}

// CheckRho returns an error if the zCDP budget ρ is nonpositive, NaN or +∞.
func CheckRho(label string, rho float64) error {
	if rho <= 0 || math.IsInf(rho, 0) || math.IsNaN(rho) {
		return fmt.Errorf("%s: Rho is %f, must be strictly positive and finite", label, rho)
	}
	return nil
}

// CheckSensitivity returns an error if the sensitivity bound is
// nonpositive, NaN or +∞.
func CheckSensitivity(label string, sensitivity float64) error {
	if sensitivity <= 0 || math.IsInf(sensitivity, 0) || math.IsNaN(sensitivity) {
		return fmt.Errorf("%s: Sensitivity is %f, must be strictly positive and finite", label, sensitivity)
	}
	return nil
}

// CheckThreshold returns an error if the plausibility threshold is
// negative, NaN or +∞.
func CheckThreshold(label string, threshold float64) error {
	if threshold < 0 || math.IsInf(threshold, 0) || math.IsNaN(threshold) {
		return fmt.Errorf("%s: Threshold is %f, must be nonnegative and finite", label, threshold)
	}
	return nil
}

// CheckTargets validates the target attributes against the domain: every
// target must exist, targets must not repeat, and at least two non-target
// attributes must remain so that a spanning tree over them is defined.
func CheckTargets(label string, dom *domain.Domain, targets []string) error {
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if !dom.Has(t) {
			return fmt.Errorf("%s: Target attribute %q is not in the domain", label, t)
		}
		if seen[t] {
			return fmt.Errorf("%s: Target attribute %q appears more than once", label, t)
		}
		seen[t] = true
	}
	if r := len(dom.Invert(targets)); r < 2 {
		return fmt.Errorf("%s: Domain has %d non-target attributes, need at least 2", label, r)
	}
	return nil
}

// CheckClique returns an error if the clique is empty or references an
// attribute absent from the domain.
func CheckClique(label string, dom *domain.Domain, cl domain.Clique) error {
	if cl.Len() == 0 {
		return fmt.Errorf("%s: Clique is empty", label)
	}
	for _, a := range cl.Attrs() {
		if !dom.Has(a) {
			return fmt.Errorf("%s: Clique attribute %q is not in the domain", label, a)
		}
	}
	return nil
}
