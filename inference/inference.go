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

// Package inference defines the estimation-engine seam of the mechanism
// and provides Mirror, a compliant backend that fits an explicit joint
// distribution to a measurement log by mirror descent.
//
// The mechanism only ever talks to the Engine and Model interfaces; any
// estimation backend honoring them can be substituted without touching
// the orchestrator.
package inference

import (
	"golang.org/x/exp/rand"

	"github.com/dpsynth/adagrid/domain"
	"github.com/dpsynth/adagrid/measure"
)

// Model is a fitted joint distribution over a domain. Implementations
// must return finite values from Project and non-negative integer-coded
// records from Sample.
type Model interface {
	// Project returns the model's estimated count vector over the
	// clique's joint domain.
	Project(cl domain.Clique) ([]float64, error)
	// Sample draws n synthetic records consistent with the model, using
	// the supplied source.
	Sample(n int, rnd *rand.Rand) (*domain.Dataset, error)
	// Total returns the model's estimate of the dataset's record count.
	Total() float64
}

// Engine fits a Model to a measurement log. A non-nil warm model lets the
// engine resume from a previous fit instead of starting cold; engines
// must support being called a second time with their own output as the
// warm start.
type Engine interface {
	Fit(log []measure.Measurement, dom *domain.Domain, warm Model) (Model, error)
}
