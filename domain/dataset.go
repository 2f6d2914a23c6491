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

package domain

import "fmt"

// Dataset is a fixed, read-only table of integer-coded records over a
// domain. Record i assigns rows[i][j] as the category index of the j-th
// domain attribute.
//
// A Dataset is the only sensitive object in this module. The sole way to
// read it is Project, and every caller of Project is required to add
// calibrated noise to the result before storing or returning anything
// derived from it.
type Dataset struct {
	dom  *Domain
	rows [][]int
}

// NewDataset validates the records against the domain and wraps them in a
// Dataset. The record slices are not copied; callers hand over ownership.
func NewDataset(dom *Domain, rows [][]int) (*Dataset, error) {
	if dom == nil {
		return nil, fmt.Errorf("Dataset requires a domain")
	}
	for i, rec := range rows {
		if len(rec) != dom.Len() {
			return nil, fmt.Errorf("Record %d has %d values, domain has %d attributes", i, len(rec), dom.Len())
		}
		for j, v := range rec {
			if v < 0 || v >= dom.sizes[dom.attrs[j]] {
				return nil, fmt.Errorf("Record %d value %d for attribute %q is outside [0, %d)",
					i, v, dom.attrs[j], dom.sizes[dom.attrs[j]])
			}
		}
	}
	return &Dataset{dom: dom, rows: rows}, nil
}

// Domain returns the dataset's domain.
func (ds *Dataset) Domain() *Domain {
	return ds.dom
}

// Len returns the number of records.
func (ds *Dataset) Len() int {
	return len(ds.rows)
}

// Record returns a copy of record i.
func (ds *Dataset) Record(i int) []int {
	return append([]int(nil), ds.rows[i]...)
}

// Project returns the exact count vector of the dataset over the clique's
// joint domain, in the clique's flat cell ordering.
//
// The result is an exact statistic of the sensitive data. It must be
// noised before it leaves the calling component.
func (ds *Dataset) Project(cl Clique) ([]float64, error) {
	if cl.Len() == 0 {
		return nil, fmt.Errorf("Cannot project onto an empty clique")
	}
	n, err := ds.dom.SizeOf(cl)
	if err != nil {
		return nil, err
	}
	strides, err := ds.dom.strides(cl)
	if err != nil {
		return nil, err
	}
	// Positions of the clique's attributes within a record.
	pos := make([]int, cl.Len())
	for i, a := range cl.attrs {
		pos[i] = -1
		for j, b := range ds.dom.attrs {
			if a == b {
				pos[i] = j
				break
			}
		}
	}
	counts := make([]float64, n)
	for _, rec := range ds.rows {
		idx := 0
		for i := range pos {
			idx += rec[pos[i]] * strides[i]
		}
		counts[idx]++
	}
	return counts, nil
}
