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

// Package score evaluates synthetic data against the source data by the
// total variation distance of every pairwise marginal, augmented with the
// target attributes.
package score

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/dpsynth/adagrid/domain"
)

// PairError is the total variation distance between the two datasets'
// marginals over one workload clique.
type PairError struct {
	Clique domain.Clique
	Error  float64
}

// Report computes the error of every pair of non-target attributes joined
// with the targets, sorted ascending by error. Both datasets must share
// the domain's attributes.
func Report(data, synth *domain.Dataset, targets []string) ([]PairError, error) {
	if data.Len() == 0 {
		return nil, fmt.Errorf("source dataset is empty")
	}
	attrs := data.Domain().Invert(targets)
	var out []PairError
	for i := 0; i < len(attrs); i++ {
		for j := i + 1; j < len(attrs); j++ {
			cl := domain.NewClique(append([]string{attrs[i], attrs[j]}, targets...)...)
			x, err := data.Project(cl)
			if err != nil {
				return nil, err
			}
			xhat, err := synth.Project(cl)
			if err != nil {
				return nil, fmt.Errorf("synthetic dataset: %v", err)
			}
			out = append(out, PairError{
				Clique: cl,
				Error:  0.5 * floats.Distance(x, xhat, 1) / float64(data.Len()),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Error != out[j].Error {
			return out[i].Error < out[j].Error
		}
		return out[i].Clique.Key() < out[j].Clique.Key()
	})
	return out, nil
}
