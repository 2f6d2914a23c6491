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

// Package sparse implements a compressed-sparse-row matrix with the small
// set of operations needed to assemble measurement operators: stacking,
// scaling, column permutation, Kronecker lifting by a ones vector, column
// masking and matrix-vector products.
package sparse

import (
	"fmt"
	"math"
	"sort"
)

// Matrix is an immutable sparse matrix in CSR layout. All constructors and
// transforms return fresh matrices; a Matrix is never mutated after it is
// built.
type Matrix struct {
	rows, cols int
	rowPtr     []int
	colIdx     []int
	vals       []float64
}

// FromTriplets builds a matrix from coordinate triplets. Duplicate
// coordinates are summed. Triplets outside the given shape are rejected.
func FromTriplets(rows, cols int, ri, ci []int, v []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("Shape (%d, %d) is invalid", rows, cols)
	}
	if len(ri) != len(ci) || len(ri) != len(v) {
		return nil, fmt.Errorf("Triplet slices have mismatched lengths %d, %d, %d", len(ri), len(ci), len(v))
	}
	type trip struct {
		r, c int
		v    float64
	}
	ts := make([]trip, len(ri))
	for k := range ri {
		if ri[k] < 0 || ri[k] >= rows || ci[k] < 0 || ci[k] >= cols {
			return nil, fmt.Errorf("Triplet (%d, %d) is outside shape (%d, %d)", ri[k], ci[k], rows, cols)
		}
		ts[k] = trip{ri[k], ci[k], v[k]}
	}
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].r != ts[j].r {
			return ts[i].r < ts[j].r
		}
		return ts[i].c < ts[j].c
	})
	m := &Matrix{rows: rows, cols: cols, rowPtr: make([]int, rows+1)}
	for k := 0; k < len(ts); {
		j := k
		sum := 0.0
		for ; j < len(ts) && ts[j].r == ts[k].r && ts[j].c == ts[k].c; j++ {
			sum += ts[j].v
		}
		if sum != 0 {
			m.colIdx = append(m.colIdx, ts[k].c)
			m.vals = append(m.vals, sum)
			m.rowPtr[ts[k].r+1]++
		}
		k = j
	}
	for r := 0; r < rows; r++ {
		m.rowPtr[r+1] += m.rowPtr[r]
	}
	return m, nil
}

// Identity returns the n-by-n identity matrix.
func Identity(n int) *Matrix {
	m := &Matrix{rows: n, cols: n, rowPtr: make([]int, n+1), colIdx: make([]int, n), vals: make([]float64, n)}
	for i := 0; i < n; i++ {
		m.rowPtr[i+1] = i + 1
		m.colIdx[i] = i
		m.vals[i] = 1
	}
	return m
}

// UnitRows returns a matrix with one unit row per entry of cells: row k has
// a single 1 in column cells[k]. This is an identity selection restricted
// to the listed cells.
func UnitRows(cols int, cells []int) (*Matrix, error) {
	m := &Matrix{rows: len(cells), cols: cols, rowPtr: make([]int, len(cells)+1)}
	for k, c := range cells {
		if c < 0 || c >= cols {
			return nil, fmt.Errorf("Cell %d is outside [0, %d)", c, cols)
		}
		m.rowPtr[k+1] = k + 1
		m.colIdx = append(m.colIdx, c)
		m.vals = append(m.vals, 1)
	}
	return m, nil
}

// Permutation returns the permutation matrix P with P[k, perm[k]] = 1, so
// that (P x)[k] = x[perm[k]]. perm must be a bijection on [0, len(perm)).
func Permutation(perm []int) (*Matrix, error) {
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, fmt.Errorf("Index map is not a permutation of [0, %d)", len(perm))
		}
		seen[p] = true
	}
	return UnitRows(len(perm), perm)
}

// Dims returns the matrix shape.
func (m *Matrix) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.vals)
}

// Equal reports whether the two matrices have identical shape and stored
// entries. Used by cmp in tests.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.rows != o.rows || m.cols != o.cols || len(m.vals) != len(o.vals) {
		return false
	}
	for i := range m.rowPtr {
		if m.rowPtr[i] != o.rowPtr[i] {
			return false
		}
	}
	for i := range m.vals {
		if m.colIdx[i] != o.colIdx[i] || m.vals[i] != o.vals[i] {
			return false
		}
	}
	return true
}

// MulVec returns m times x.
func (m *Matrix) MulVec(x []float64) ([]float64, error) {
	if len(x) != m.cols {
		return nil, fmt.Errorf("Vector has length %d, matrix has %d columns", len(x), m.cols)
	}
	y := make([]float64, m.rows)
	for r := 0; r < m.rows; r++ {
		var sum float64
		for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
			sum += m.vals[k] * x[m.colIdx[k]]
		}
		y[r] = sum
	}
	return y, nil
}

// MulVecT returns the transpose of m times y.
func (m *Matrix) MulVecT(y []float64) ([]float64, error) {
	if len(y) != m.rows {
		return nil, fmt.Errorf("Vector has length %d, matrix has %d rows", len(y), m.rows)
	}
	x := make([]float64, m.cols)
	for r := 0; r < m.rows; r++ {
		for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
			x[m.colIdx[k]] += m.vals[k] * y[r]
		}
	}
	return x, nil
}

// Scale returns m multiplied by the scalar a.
func (m *Matrix) Scale(a float64) *Matrix {
	out := &Matrix{rows: m.rows, cols: m.cols, rowPtr: m.rowPtr, colIdx: m.colIdx, vals: make([]float64, len(m.vals))}
	for i, v := range m.vals {
		out.vals[i] = a * v
	}
	return out
}

// PermuteColumns relabels column c as perm[c]. perm must be a bijection on
// the column index range; the result has the same shape and entries.
func (m *Matrix) PermuteColumns(perm []int) (*Matrix, error) {
	if len(perm) != m.cols {
		return nil, fmt.Errorf("Permutation has length %d, matrix has %d columns", len(perm), m.cols)
	}
	seen := make([]bool, m.cols)
	for _, p := range perm {
		if p < 0 || p >= m.cols || seen[p] {
			return nil, fmt.Errorf("Index map is not a permutation of [0, %d)", m.cols)
		}
		seen[p] = true
	}
	out := &Matrix{rows: m.rows, cols: m.cols, rowPtr: m.rowPtr, colIdx: make([]int, len(m.colIdx)), vals: m.vals}
	for i, c := range m.colIdx {
		out.colIdx[i] = perm[c]
	}
	// Column indices within each row are no longer sorted after
	// relabeling; restore the CSR invariant.
	out = out.sortRows()
	return out, nil
}

func (m *Matrix) sortRows() *Matrix {
	out := &Matrix{rows: m.rows, cols: m.cols, rowPtr: m.rowPtr,
		colIdx: append([]int(nil), m.colIdx...), vals: append([]float64(nil), m.vals...)}
	for r := 0; r < out.rows; r++ {
		lo, hi := out.rowPtr[r], out.rowPtr[r+1]
		sort.Sort(&rowSorter{out.colIdx[lo:hi], out.vals[lo:hi]})
	}
	return out
}

type rowSorter struct {
	idx []int
	val []float64
}

func (s *rowSorter) Len() int           { return len(s.idx) }
func (s *rowSorter) Less(i, j int) bool { return s.idx[i] < s.idx[j] }
func (s *rowSorter) Swap(i, j int) {
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	s.val[i], s.val[j] = s.val[j], s.val[i]
}

// KronOnes returns the Kronecker product of a row vector of `prefix` ones
// with m: each row of m is repeated across prefix column blocks, so entry
// (r, a*cols+c) of the result equals m[r, c] for every a in [0, prefix).
func KronOnes(prefix int, m *Matrix) (*Matrix, error) {
	if prefix < 1 {
		return nil, fmt.Errorf("Kronecker prefix is %d, must be at least 1", prefix)
	}
	out := &Matrix{rows: m.rows, cols: prefix * m.cols, rowPtr: make([]int, m.rows+1)}
	for r := 0; r < m.rows; r++ {
		for a := 0; a < prefix; a++ {
			for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
				out.colIdx = append(out.colIdx, a*m.cols+m.colIdx[k])
				out.vals = append(out.vals, m.vals[k])
			}
		}
		out.rowPtr[r+1] = len(out.vals)
	}
	return out, nil
}

// ZeroColumns drops every stored entry whose column is marked in mask.
// This is composition with the diagonal projector I - diag(mask).
func (m *Matrix) ZeroColumns(mask []bool) (*Matrix, error) {
	if len(mask) != m.cols {
		return nil, fmt.Errorf("Mask has length %d, matrix has %d columns", len(mask), m.cols)
	}
	out := &Matrix{rows: m.rows, cols: m.cols, rowPtr: make([]int, m.rows+1)}
	for r := 0; r < m.rows; r++ {
		for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
			if !mask[m.colIdx[k]] {
				out.colIdx = append(out.colIdx, m.colIdx[k])
				out.vals = append(out.vals, m.vals[k])
			}
		}
		out.rowPtr[r+1] = len(out.vals)
	}
	return out, nil
}

// DropZeroRows removes rows with no stored entries.
func (m *Matrix) DropZeroRows() *Matrix {
	out := &Matrix{cols: m.cols, colIdx: m.colIdx, vals: m.vals, rowPtr: []int{0}}
	for r := 0; r < m.rows; r++ {
		if m.rowPtr[r+1] > m.rowPtr[r] {
			out.rowPtr = append(out.rowPtr, m.rowPtr[r+1])
			out.rows++
		}
	}
	return out
}

// VStack stacks the given matrices vertically. All inputs must have the
// same number of columns.
func VStack(ms ...*Matrix) (*Matrix, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("VStack needs at least one matrix")
	}
	cols := ms[0].cols
	out := &Matrix{cols: cols, rowPtr: []int{0}}
	for _, m := range ms {
		if m.cols != cols {
			return nil, fmt.Errorf("Cannot stack matrices with %d and %d columns", cols, m.cols)
		}
		for r := 0; r < m.rows; r++ {
			out.colIdx = append(out.colIdx, m.colIdx[m.rowPtr[r]:m.rowPtr[r+1]]...)
			out.vals = append(out.vals, m.vals[m.rowPtr[r]:m.rowPtr[r+1]]...)
			out.rowPtr = append(out.rowPtr, len(out.vals))
		}
		out.rows += m.rows
	}
	return out, nil
}

// MaxColumnNorm returns the largest L2 norm over the matrix's columns. For
// measurement operators this is the L2 sensitivity.
func (m *Matrix) MaxColumnNorm() float64 {
	sq := make([]float64, m.cols)
	for k, c := range m.colIdx {
		sq[c] += m.vals[k] * m.vals[k]
	}
	max := 0.0
	for _, s := range sq {
		if s > max {
			max = s
		}
	}
	return math.Sqrt(max)
}

// RowSums returns the sum of each row's entries.
func (m *Matrix) RowSums() []float64 {
	out := make([]float64, m.rows)
	for r := 0; r < m.rows; r++ {
		for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
			out[r] += m.vals[k]
		}
	}
	return out
}

// ColSums returns the sum of each column's entries.
func (m *Matrix) ColSums() []float64 {
	out := make([]float64, m.cols)
	for k, c := range m.colIdx {
		out[c] += m.vals[k]
	}
	return out
}
