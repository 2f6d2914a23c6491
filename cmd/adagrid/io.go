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

package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/dpsynth/adagrid/domain"
)

func readCSV(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %v", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s has no header row", path)
	}
	return all[0], all[1:], nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// parseCoded builds a dataset from a coded CSV table. The header must
// cover every domain attribute; extra columns are rejected to catch
// domain/data mismatches early.
func parseCoded(header []string, rows [][]string, dom *domain.Domain) (*domain.Dataset, error) {
	attrs := dom.Attrs()
	if len(header) != len(attrs) {
		return nil, fmt.Errorf("data has %d columns, domain has %d attributes", len(header), len(attrs))
	}
	pos := make([]int, len(attrs))
	for i, a := range attrs {
		pos[i] = -1
		for j, h := range header {
			if h == a {
				pos[i] = j
				break
			}
		}
		if pos[i] == -1 {
			return nil, fmt.Errorf("domain attribute %q is missing from the data header", a)
		}
	}
	coded := make([][]int, len(rows))
	for r, row := range rows {
		rec := make([]int, len(attrs))
		for i := range attrs {
			v, err := strconv.Atoi(row[pos[i]])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %q is not an integer code", r, attrs[i], row[pos[i]])
			}
			rec[i] = v
		}
		coded[r] = rec
	}
	return domain.NewDataset(dom, coded)
}

func loadCoded(path string, dom *domain.Domain) (*domain.Dataset, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	return parseCoded(header, rows, dom)
}

func writeCoded(path string, ds *domain.Dataset) error {
	attrs := ds.Domain().Attrs()
	rows := make([][]string, ds.Len())
	for r := 0; r < ds.Len(); r++ {
		rec := ds.Record(r)
		row := make([]string, len(rec))
		for i, v := range rec {
			row[i] = strconv.Itoa(v)
		}
		rows[r] = row
	}
	return writeCSV(path, attrs, rows)
}

func writeDomain(path string, dom *domain.Domain) error {
	// Emit keys in domain order by hand; a map marshal would sort them.
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	attrs := dom.Attrs()
	if _, err := f.WriteString("{"); err != nil {
		return err
	}
	for i, a := range attrs {
		n, err := dom.Size(a)
		if err != nil {
			return err
		}
		key, err := json.Marshal(a)
		if err != nil {
			return err
		}
		sep := ""
		if i > 0 {
			sep = ", "
		}
		if _, err := fmt.Fprintf(f, "%s%s: %d", sep, key, n); err != nil {
			return err
		}
	}
	_, err = f.WriteString("}\n")
	return err
}
