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

package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpsynth/adagrid/domain"
)

const testSchema = `{
	"age": {"dtype": "int64", "min": 18, "max": 90},
	"income": {"dtype": "float64", "bins": 4, "min": 0, "max": 100},
	"state": {"dtype": "object", "values": ["CA", "NY", "TX"]}
}`

func loadTestSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := LoadSchema(strings.NewReader(testSchema))
	require.NoError(t, err)
	return s
}

func TestLoadSchemaPreservesOrder(t *testing.T) {
	s := loadTestSchema(t)
	assert.Equal(t, []string{"age", "income", "state"}, s.Columns())

	dom, err := s.Domain()
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income", "state"}, dom.Attrs())
	for _, tc := range []struct {
		attr string
		size int
	}{
		{"age", 73},
		{"income", 4},
		{"state", 3},
	} {
		n, err := dom.Size(tc.attr)
		require.NoError(t, err)
		assert.Equal(t, tc.size, n, "cardinality of %s", tc.attr)
	}
}

func TestLoadSchemaErrors(t *testing.T) {
	for _, tc := range []struct {
		desc string
		doc  string
	}{
		{"not an object", `[1, 2]`},
		{"no columns", `{}`},
		{"bins without bounds", `{"x": {"dtype": "float64", "bins": 3}}`},
		{"inverted bounds", `{"x": {"dtype": "float64", "bins": 3, "min": 5, "max": 1}}`},
		{"empty description", `{"x": {"dtype": "float64"}}`},
	} {
		_, err := LoadSchema(strings.NewReader(tc.doc))
		assert.Error(t, err, tc.desc)
	}
}

func TestBinnedEncodeDecode(t *testing.T) {
	s := loadTestSchema(t)
	col := s.cols["income"]
	// Bin edges at 0, 25, 50, 75, 100; the last bin is closed on 100.
	for _, tc := range []struct {
		raw  string
		code int
	}{
		{"0", 0},
		{"10", 0},
		{"25", 1},
		{"49.9", 1},
		{"75", 3},
		{"100", 3},
	} {
		code, err := col.encode("income", tc.raw)
		require.NoError(t, err, "encode %s", tc.raw)
		assert.Equal(t, tc.code, code, "encode %s", tc.raw)
	}
	// Interior bins decode to their midpoint; end bins are widened past
	// the adjacent boundary.
	assert.Equal(t, "37.5", col.decode(1))
	assert.Equal(t, "24", col.decode(0))
	assert.Equal(t, "76", col.decode(3))

	_, err := col.encode("income", "101")
	assert.Error(t, err, "out of range")
	_, err = col.encode("income", "abc")
	assert.Error(t, err, "non-numeric")
}

func TestIntBinnedEdgesTruncate(t *testing.T) {
	minV, maxV := 0.0, 10.0
	col := Column{Dtype: "int64", Bins: 3, Min: &minV, Max: &maxV}
	assert.Equal(t, []float64{0, 3, 6, 10}, col.edges())
	code, err := col.encode("x", "7")
	require.NoError(t, err)
	assert.Equal(t, 2, code)
	assert.Equal(t, "7", col.decode(2))
}

func TestCategoricalAndRangeRoundTrip(t *testing.T) {
	s := loadTestSchema(t)
	state := s.cols["state"]
	for i, v := range []string{"CA", "NY", "TX"} {
		code, err := state.encode("state", v)
		require.NoError(t, err)
		assert.Equal(t, i, code)
		assert.Equal(t, v, state.decode(code))
	}
	_, err := state.encode("state", "WA")
	assert.Error(t, err)

	age := s.cols["age"]
	code, err := age.encode("age", "30")
	require.NoError(t, err)
	assert.Equal(t, 12, code)
	assert.Equal(t, "30", age.decode(12))
}

func TestDiscretizeAndUndo(t *testing.T) {
	s := loadTestSchema(t)
	// Header order differs from the schema and carries an extra column.
	header := []string{"state", "junk", "age", "income"}
	rows := [][]string{
		{"NY", "x", "30", "49.9"},
		{"CA", "y", "18", "100"},
	}
	ds, err := s.Discretize(header, rows)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, []int{12, 1, 1}, ds.Record(0))
	assert.Equal(t, []int{0, 3, 0}, ds.Record(1))

	outHeader, outRows, err := s.Undo(ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "income", "state"}, outHeader)
	// Exact columns survive; binned values come back as bin midpoints.
	assert.Equal(t, []string{"30", "37.5", "NY"}, outRows[0])
	assert.Equal(t, []string{"18", "76", "CA"}, outRows[1])
}

func TestDiscretizeErrors(t *testing.T) {
	s := loadTestSchema(t)
	_, err := s.Discretize([]string{"age", "income"}, nil)
	assert.Error(t, err, "missing schema column")

	_, err = s.Discretize([]string{"state", "age", "income"}, [][]string{{"CA", "17", "5"}})
	assert.Error(t, err, "age below minimum")

	_, err = s.Discretize([]string{"state", "age", "income"}, [][]string{{"CA", "20"}})
	assert.Error(t, err, "short row")
}

func TestUndoRejectsForeignDomain(t *testing.T) {
	s := loadTestSchema(t)
	other, err := domain.New([]string{"a", "b"}, []int{2, 2})
	require.NoError(t, err)
	ds, err := domain.NewDataset(other, nil)
	require.NoError(t, err)
	_, _, err = s.Undo(ds)
	assert.Error(t, err)
}
