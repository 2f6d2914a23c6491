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

// Package transform converts raw tabular data to and from the
// integer-coded form the mechanism consumes, driven by a per-column
// schema: binned numeric columns, categorical value lists and plain
// integer ranges.
package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/dpsynth/adagrid/domain"
)

// Column describes how one raw column is coded.
//
// Exactly one of three shapes applies: Bins > 0 with Min/Max set (numeric
// values cut into equal-width bins), Values non-empty (categorical codes
// by list position), or Min/Max alone (integers shifted to start at 0).
type Column struct {
	Dtype  string   `json:"dtype"`
	Bins   int      `json:"bins,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Schema is an ordered set of column descriptions. Column order defines
// the attribute order of the coded domain.
type Schema struct {
	names []string
	cols  map[string]Column
}

// LoadSchema reads a schema from a JSON object mapping column names to
// descriptions, preserving key order.
func LoadSchema(r io.Reader) (*Schema, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading schema: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("schema document must be a JSON object, got %v", tok)
	}
	s := &Schema{cols: make(map[string]Column)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading schema: %v", err)
		}
		name := keyTok.(string)
		var col Column
		if err := dec.Decode(&col); err != nil {
			return nil, fmt.Errorf("reading schema column %q: %v", name, err)
		}
		if err := col.validate(name); err != nil {
			return nil, err
		}
		s.names = append(s.names, name)
		s.cols[name] = col
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading schema: %v", err)
	}
	if len(s.names) == 0 {
		return nil, fmt.Errorf("schema has no columns")
	}
	return s, nil
}

func (c Column) validate(name string) error {
	switch {
	case c.Bins > 0:
		if c.Min == nil || c.Max == nil {
			return fmt.Errorf("column %q: binned columns need min and max", name)
		}
		if *c.Min >= *c.Max {
			return fmt.Errorf("column %q: min %f must be below max %f", name, *c.Min, *c.Max)
		}
	case len(c.Values) > 0:
	case c.Min != nil && c.Max != nil:
		if *c.Min > *c.Max {
			return fmt.Errorf("column %q: min %f must not exceed max %f", name, *c.Min, *c.Max)
		}
	default:
		return fmt.Errorf("column %q: need bins+min+max, values, or min+max", name)
	}
	return nil
}

// Columns returns the schema's column names in order.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.names...)
}

// cardinality returns the coded domain size of the column.
func (c Column) cardinality() int {
	switch {
	case c.Bins > 0:
		return c.Bins
	case len(c.Values) > 0:
		return len(c.Values)
	default:
		return int(*c.Max-*c.Min) + 1
	}
}

// Domain returns the integer-coded domain the schema induces.
func (s *Schema) Domain() (*domain.Domain, error) {
	sizes := make([]int, len(s.names))
	for i, name := range s.names {
		sizes[i] = s.cols[name].cardinality()
	}
	return domain.New(s.names, sizes)
}

// edges returns the bin boundaries of a binned column: Bins equal-width
// left-closed intervals, with the final interval closed on Max so the
// maximum itself is representable. Integer dtypes truncate boundaries.
func (c Column) edges() []float64 {
	out := make([]float64, c.Bins+1)
	width := (*c.Max - *c.Min) / float64(c.Bins)
	for i := 0; i < c.Bins; i++ {
		e := *c.Min + width*float64(i)
		if strings.HasPrefix(c.Dtype, "int") {
			e = math.Trunc(e)
		}
		out[i] = e
	}
	out[c.Bins] = *c.Max
	return out
}

func (c Column) encode(name, raw string) (int, error) {
	switch {
	case c.Bins > 0:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: value %q is not numeric", name, raw)
		}
		if v < *c.Min || v > *c.Max {
			return 0, fmt.Errorf("column %q: value %f is outside [%f, %f]", name, v, *c.Min, *c.Max)
		}
		e := c.edges()
		for i := c.Bins - 1; i >= 0; i-- {
			if v >= e[i] {
				return i, nil
			}
		}
		return 0, nil
	case len(c.Values) > 0:
		for i, val := range c.Values {
			if raw == val {
				return i, nil
			}
		}
		return 0, fmt.Errorf("column %q: value %q is not in the schema's value list", name, raw)
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: value %q is not numeric", name, raw)
		}
		if v < *c.Min || v > *c.Max {
			return 0, fmt.Errorf("column %q: value %f is outside [%f, %f]", name, v, *c.Min, *c.Max)
		}
		return int(v - *c.Min), nil
	}
}

func (c Column) decode(code int) string {
	isInt := strings.HasPrefix(c.Dtype, "int")
	switch {
	case c.Bins > 0:
		e := c.edges()
		low, high := e[code], e[code+1]
		// Widen the end bins so their midpoints sit outside the
		// neighboring boundary, mirroring how the bins were cut.
		if code == 0 {
			low = e[1] - 2
		}
		if code == c.Bins-1 {
			high = e[c.Bins-1] + 2
		}
		mid := (low + high) / 2
		if isInt {
			return strconv.FormatInt(int64(math.Round(mid)), 10)
		}
		return strconv.FormatFloat(mid, 'g', -1, 64)
	case len(c.Values) > 0:
		return c.Values[code]
	default:
		v := float64(code) + *c.Min
		if isInt {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

// Discretize codes a raw table into a Dataset over the schema's domain.
// The header names the raw columns; columns absent from the schema are
// dropped, and every schema column must be present.
func (s *Schema) Discretize(header []string, rows [][]string) (*domain.Dataset, error) {
	dom, err := s.Domain()
	if err != nil {
		return nil, err
	}
	pos := make([]int, len(s.names))
	for i, name := range s.names {
		pos[i] = -1
		for j, h := range header {
			if h == name {
				pos[i] = j
				break
			}
		}
		if pos[i] == -1 {
			return nil, fmt.Errorf("schema column %q is missing from the data header", name)
		}
	}
	coded := make([][]int, len(rows))
	for r, row := range rows {
		rec := make([]int, len(s.names))
		for i, name := range s.names {
			if pos[i] >= len(row) {
				return nil, fmt.Errorf("row %d has %d cells, header has %d", r, len(row), len(header))
			}
			code, err := s.cols[name].encode(name, row[pos[i]])
			if err != nil {
				return nil, fmt.Errorf("row %d: %v", r, err)
			}
			rec[i] = code
		}
		coded[r] = rec
	}
	return domain.NewDataset(dom, coded)
}

// Undo maps a coded dataset back to raw values: bin codes become bin
// midpoints, categorical codes their values, range codes their integers.
func (s *Schema) Undo(ds *domain.Dataset) ([]string, [][]string, error) {
	attrs := ds.Domain().Attrs()
	if len(attrs) != len(s.names) {
		return nil, nil, fmt.Errorf("dataset has %d attributes, schema has %d columns", len(attrs), len(s.names))
	}
	for i := range attrs {
		if attrs[i] != s.names[i] {
			return nil, nil, fmt.Errorf("dataset attribute %q does not match schema column %q", attrs[i], s.names[i])
		}
	}
	rows := make([][]string, ds.Len())
	for r := 0; r < ds.Len(); r++ {
		rec := ds.Record(r)
		row := make([]string, len(s.names))
		for i, name := range s.names {
			row[i] = s.cols[name].decode(rec[i])
		}
		rows[r] = row
	}
	return s.Columns(), rows, nil
}
