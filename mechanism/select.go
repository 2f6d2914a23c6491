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

package mechanism

import (
	"fmt"

	log "github.com/golang/glog"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/dpsynth/adagrid/checks"
	"github.com/dpsynth/adagrid/domain"
	"github.com/dpsynth/adagrid/inference"
	"github.com/dpsynth/adagrid/noise"
)

// edge is a candidate pair of non-target attributes.
type edge struct {
	a, b int // indices into the non-target attribute list
}

// SelectTree privately grows a spanning tree over the non-target
// attributes, ranking each candidate pair by the L1 distance between the
// dataset's marginal and the model's estimate on the pair joined with the
// targets. It returns exactly r-1 cliques (pair plus targets) for r
// non-target attributes, spending rhoPhase through r-1 exponential-
// mechanism selections of sensitivity 1.
//
// The pairwise weights are the only values in this component derived from
// the sensitive data; they leave it exclusively through the exponential
// mechanism.
func SelectTree(data *domain.Dataset, model inference.Model, rhoPhase float64, targets []string, rnd *rand.Rand) ([]domain.Clique, error) {
	dom := data.Domain()
	if err := checks.CheckRho("SelectTree", rhoPhase); err != nil {
		return nil, err
	}
	if err := checks.CheckTargets("SelectTree", dom, targets); err != nil {
		return nil, err
	}
	if rnd == nil {
		return nil, fmt.Errorf("SelectTree: random source must not be nil")
	}

	attrs := dom.Invert(targets)
	r := len(attrs)
	var candidates []edge
	weights := make(map[edge]float64)
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			e := edge{i, j}
			cl := domain.NewClique(append([]string{attrs[i], attrs[j]}, targets...)...)
			xhat, err := model.Project(cl)
			if err != nil {
				return nil, err
			}
			// Sensitive read; the resulting weight is only ever released
			// through the exponential mechanism below.
			x, err := data.Project(cl)
			if err != nil {
				return nil, err
			}
			if len(x) != len(xhat) {
				return nil, fmt.Errorf("SelectTree: model marginal over %v has %d cells, dataset has %d", cl, len(xhat), len(x))
			}
			weights[e] = floats.Distance(x, xhat, 1)
			candidates = append(candidates, e)
		}
	}

	epsilon := noise.SelectionEpsilon(r-1, rhoPhase)
	log.V(1).Infof("SelectTree: %d candidate pairs, per-edge epsilon %f", len(candidates), epsilon)

	ds := newDisjointSet(r)
	var out []domain.Clique
	for round := 0; round < r-1; round++ {
		var remaining []edge
		for _, e := range candidates {
			if !ds.connected(e.a, e.b) {
				remaining = append(remaining, e)
			}
		}
		candidates = remaining
		wgts := make([]float64, len(candidates))
		for i, e := range candidates {
			wgts[i] = weights[e]
		}
		idx, err := Exponential(wgts, epsilon, 1.0, false, rnd)
		if err != nil {
			return nil, err
		}
		e := candidates[idx]
		ds.union(e.a, e.b)
		out = append(out, domain.NewClique(append([]string{attrs[e.a], attrs[e.b]}, targets...)...))
	}
	return out, nil
}

// disjointSet is a union-find over attribute indices, used to keep the
// grown edge set acyclic.
type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

func (ds *disjointSet) find(x int) int {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

func (ds *disjointSet) connected(x, y int) bool {
	return ds.find(x) == ds.find(y)
}

func (ds *disjointSet) union(x, y int) {
	rx, ry := ds.find(x), ds.find(y)
	if rx == ry {
		return
	}
	if ds.rank[rx] < ds.rank[ry] {
		rx, ry = ry, rx
	}
	ds.parent[ry] = rx
	if ds.rank[rx] == ds.rank[ry] {
		ds.rank[rx]++
	}
}
