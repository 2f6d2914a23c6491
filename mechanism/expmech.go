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

// Package mechanism implements the private selection primitives: the
// exponential mechanism over a utility vector and the spanning-tree
// marginal selector built on top of it.
package mechanism

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/dpsynth/adagrid/checks"
)

// Exponential draws one index from the exponential mechanism's
// distribution over the utility vector q: index i is selected with
// probability proportional to exp(coef·ε/sensitivity·q[i]), where coef is
// 1 for monotonic utilities and 0.5 otherwise.
//
// An infinite ε is substituted with the largest finite float64, which
// collapses the distribution onto the argmax. Scores are shifted by the
// maximum utility and exponentiated after subtracting their log-sum-exp,
// so the computation is stable for any utility magnitude.
func Exponential(q []float64, epsilon, sensitivity float64, monotonic bool, rnd *rand.Rand) (int, error) {
	if len(q) == 0 {
		return 0, fmt.Errorf("Exponential: utility vector is empty")
	}
	if rnd == nil {
		return 0, fmt.Errorf("Exponential: random source must not be nil")
	}
	if math.IsInf(epsilon, 1) {
		epsilon = math.MaxFloat64
	}
	if err := checks.CheckEpsilonStrict("Exponential", epsilon); err != nil {
		return 0, err
	}
	if err := checks.CheckSensitivity("Exponential", sensitivity); err != nil {
		return 0, err
	}

	coef := 0.5
	if monotonic {
		coef = 1.0
	}
	qmax := floats.Max(q)
	scores := make([]float64, len(q))
	for i, u := range q {
		if math.IsNaN(u) {
			return 0, fmt.Errorf("Exponential: utility %d is NaN", i)
		}
		scores[i] = coef * epsilon / sensitivity * (u - qmax)
	}
	lse := floats.LogSumExp(scores)

	u := rnd.Float64()
	acc := 0.0
	for i, s := range scores {
		acc += math.Exp(s - lse)
		if u < acc {
			return i, nil
		}
	}
	// Floating-point slack can leave acc marginally below 1; the draw
	// then falls to the last index with positive probability.
	for i := len(scores) - 1; i >= 0; i-- {
		if !math.IsInf(scores[i], -1) {
			return i, nil
		}
	}
	return len(scores) - 1, nil
}
