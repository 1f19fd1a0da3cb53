// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package covariant

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// MatrixOpts configures NewMatrix.
type MatrixOpts struct {
	// MinMutations drops patterns with fewer mutations.
	MinMutations int
	// NucleotideLabels names columns by the full mutation label instead of
	// its amino-acid part.
	NucleotideLabels bool
}

// Cell values of a Matrix.
const (
	Absent  = 0.0
	Covered = 0.5
	Present = 1.0
)

// MatrixRow is one pattern of a Matrix.
type MatrixRow struct {
	// Name is "CP<i>(<count>)", where i is the index of the pattern in the
	// input table.
	Name   string
	Values []float64
}

// Matrix is the pattern-by-mutation presence matrix of a covariants table.
// A cell is Present if the pattern carries the mutation, Covered if the
// mutation's site lies within the pattern's coverage span, and Absent
// otherwise.
type Matrix struct {
	Columns []string
	Rows    []MatrixRow
}

// ColumnName returns the name of label's column: the amino-acid part of the
// label, or the label itself if it has none or nt is set.
func ColumnName(label string, nt bool) string {
	if nt {
		return label
	}
	var aa string
	if strings.HasPrefix(label, "(") {
		i := strings.Index(label, ")(")
		if i < 0 {
			return label
		}
		aa = label[i+2:]
	} else {
		i := strings.IndexByte(label, '(')
		if i < 0 {
			return label
		}
		aa = label[i+1:]
	}
	if !strings.HasSuffix(aa, ")") {
		return label
	}
	return aa[:len(aa)-1]
}

type matrixColumn struct {
	name  string
	locus int
	// site is the 0-based position compared against coverage spans.
	site int
}

// NewMatrix builds the presence matrix of rows.  Columns are the distinct
// column names of the kept patterns' mutations, ordered by nucleotide
// position, so every column has at least one Present cell.
func NewMatrix(rows []Pattern, opts MatrixOpts) (*Matrix, error) {
	type kept struct {
		index int
		row   *Pattern
		names map[string]bool
	}
	var (
		patterns []kept
		cols     []matrixColumn
		seen     = map[string]bool{}
	)
	for i := range rows {
		row := &rows[i]
		if len(row.Mutations) < opts.MinMutations {
			continue
		}
		k := kept{index: i, row: row, names: map[string]bool{}}
		for _, m := range row.Mutations {
			locus, err := Locus(m)
			if err != nil {
				return nil, err
			}
			pos, err := site(m)
			if err != nil {
				return nil, err
			}
			name := ColumnName(m, opts.NucleotideLabels)
			k.names[name] = true
			if !seen[m] {
				seen[m] = true
				cols = append(cols, matrixColumn{name: name, locus: locus, site: pos})
			}
		}
		patterns = append(patterns, k)
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].locus < cols[j].locus })
	var (
		uniq  []matrixColumn
		names = map[string]bool{}
	)
	for _, c := range cols {
		if !names[c.name] {
			names[c.name] = true
			uniq = append(uniq, c)
		}
	}

	m := &Matrix{}
	for _, c := range uniq {
		m.Columns = append(m.Columns, c.name)
	}
	for _, k := range patterns {
		r := MatrixRow{
			Name:   fmt.Sprintf("CP%d(%d)", k.index, k.row.Count),
			Values: make([]float64, len(uniq)),
		}
		for j, c := range uniq {
			switch {
			case k.names[c.name]:
				r.Values[j] = Present
			case c.site >= k.row.CoverageStart && c.site < k.row.CoverageEnd:
				r.Values[j] = Covered
			}
		}
		m.Rows = append(m.Rows, r)
	}
	return m, nil
}

// WriteTSV writes m with one line per row.  The first column holds the row
// names.
func (m *Matrix) WriteTSV(w io.Writer) (err error) {
	tsvw := tsv.NewWriter(w)
	tsvw.WriteString("Pattern")
	for _, c := range m.Columns {
		tsvw.WriteString(c)
	}
	if err = tsvw.EndLine(); err != nil {
		return
	}
	for _, r := range m.Rows {
		tsvw.WriteString(r.Name)
		for _, v := range r.Values {
			tsvw.WriteString(formatCell(v))
		}
		if err = tsvw.EndLine(); err != nil {
			return
		}
	}
	return tsvw.Flush()
}

func formatCell(v float64) string {
	switch v {
	case Present:
		return "1"
	case Covered:
		return "0.5"
	}
	return "0"
}

// WriteFile writes m to path; see WriteTSV.  Paths ending in ".gz" are
// gzip-compressed.
func (m *Matrix) WriteFile(ctx context.Context, path string) error {
	if err := createOutput(ctx, path, m.WriteTSV); err != nil {
		return errors.E(err, "writing", path)
	}
	return nil
}
