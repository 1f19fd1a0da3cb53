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

package covariant_test

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/covar/covariant"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testRows() []covariant.Pattern {
	return []covariant.Pattern{
		{
			Key:           single,
			Mutations:     []string{"A15G(G:D2G)"},
			Count:         5,
			CoverageStart: 5,
			CoverageEnd:   25,
			FirstLocus:    15,
		},
		{
			Key:           double,
			Mutations:     []string{"A15G(G:D2G)", "T19G(G:S3S)"},
			Count:         3,
			CoverageStart: 8,
			CoverageEnd:   28,
			FirstLocus:    15,
		},
		{
			Key:           "(30,'AAA')",
			Mutations:     []string{"(30,'AAA')"},
			Count:         2,
			CoverageStart: 20,
			CoverageEnd:   34,
			FirstLocus:    30,
		},
		{
			Key:           "C5T",
			Mutations:     []string{"C5T"},
			Count:         1,
			CoverageStart: 0,
			CoverageEnd:   20,
			FirstLocus:    5,
		},
	}
}

func TestWriteTSV(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, covariant.WriteTSV(&buf, testRows()[:2]))
	expect.EQ(t, buf.String(), `Covariants	Count	Coverage_start	Coverage_end
A15G(G:D2G)	5	5	25
A15G(G:D2G) T19G(G:S3S)	3	8	28
`)
	rows, err := covariant.ReadTSV(&buf)
	assert.NoError(t, err)
	expect.EQ(t, rows, testRows()[:2])
}

func TestReadTSVErrors(t *testing.T) {
	for _, bad := range []string{
		"Covariants\tCount\tCoverage_start\tCoverage_end\nT5A\tx\t1\t2\n",
		"\t1\t1\t2\n",
		"ZZ\t1\t1\t2\n",
	} {
		_, err := covariant.ReadTSV(strings.NewReader(bad))
		expect.NotNil(t, err, bad)
	}
	rows, err := covariant.ReadTSV(strings.NewReader("Covariants\tCount\tCoverage_start\tCoverage_end\n"))
	assert.NoError(t, err)
	expect.EQ(t, len(rows), 0)
}

func TestWriteFile(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	for _, name := range []string{"covariants.tsv", "covariants.tsv.gz"} {
		path := filepath.Join(dir, name)
		assert.NoError(t, covariant.WriteFile(ctx, path, testRows()))
		data, err := ioutil.ReadFile(path)
		assert.NoError(t, err)
		expect.EQ(t, strings.HasPrefix(string(data), "Covariants\t"), !strings.HasSuffix(name, ".gz"), name)
		rows, err := covariant.ReadFile(ctx, path)
		assert.NoError(t, err)
		expect.EQ(t, rows, testRows(), name)
	}
}

func TestColumnName(t *testing.T) {
	expect.EQ(t, covariant.ColumnName("T150A(S:L50F)", false), "S:L50F")
	expect.EQ(t, covariant.ColumnName("T150A(S:L50F)", true), "T150A(S:L50F)")
	expect.EQ(t, covariant.ColumnName("(150,'AAA')(S:INS50K)", false), "S:INS50K")
	expect.EQ(t, covariant.ColumnName("(150,6)(S:DEL50/51)", false), "S:DEL50/51")
	expect.EQ(t, covariant.ColumnName("(150,6)", false), "(150,6)")
	expect.EQ(t, covariant.ColumnName("T150A", false), "T150A")
}

func TestMatrix(t *testing.T) {
	m, err := covariant.NewMatrix(testRows(), covariant.MatrixOpts{MinMutations: 1})
	assert.NoError(t, err)
	expect.EQ(t, m.Columns, []string{"C5T", "G:D2G", "G:S3S", "(30,'AAA')"})
	expect.EQ(t, m.Rows, []covariant.MatrixRow{
		{Name: "CP0(5)", Values: []float64{0, 1, 0.5, 0}},
		{Name: "CP1(3)", Values: []float64{0, 1, 1, 0}},
		{Name: "CP2(2)", Values: []float64{0, 0, 0, 1}},
		{Name: "CP3(1)", Values: []float64{1, 0.5, 0.5, 0}},
	})

	var buf bytes.Buffer
	assert.NoError(t, m.WriteTSV(&buf))
	expect.EQ(t, buf.String(), `Pattern	C5T	G:D2G	G:S3S	(30,'AAA')
CP0(5)	0	1	0.5	0
CP1(3)	0	1	1	0
CP2(2)	0	0	0	1
CP3(1)	1	0.5	0.5	0
`)

	m, err = covariant.NewMatrix(testRows(), covariant.MatrixOpts{MinMutations: 2, NucleotideLabels: true})
	assert.NoError(t, err)
	expect.EQ(t, m.Columns, []string{"A15G(G:D2G)", "T19G(G:S3S)"})
	expect.EQ(t, m.Rows, []covariant.MatrixRow{{Name: "CP1(3)", Values: []float64{1, 1}}})
}

func TestMatrixCoverageEdges(t *testing.T) {
	rows := []covariant.Pattern{
		{Key: "T10A", Mutations: []string{"T10A"}, Count: 1, CoverageStart: 0, CoverageEnd: 10},
		{Key: "G20C", Mutations: []string{"G20C"}, Count: 1, CoverageStart: 9, CoverageEnd: 19},
		{Key: "(19,2)", Mutations: []string{"(19,2)"}, Count: 1, CoverageStart: 0, CoverageEnd: 20},
	}
	m, err := covariant.NewMatrix(rows, covariant.MatrixOpts{})
	assert.NoError(t, err)
	expect.EQ(t, m.Columns, []string{"T10A", "(19,2)", "G20C"})
	expect.EQ(t, m.Rows, []covariant.MatrixRow{
		{Name: "CP0(1)", Values: []float64{1, 0, 0}},
		// T10A sits on the first covered base; the deletion starts at the
		// exclusive end.
		{Name: "CP1(1)", Values: []float64{0.5, 0, 1}},
		// G20C sits on the last covered base.
		{Name: "CP2(1)", Values: []float64{0.5, 1, 0.5}},
	})
}
