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
	"testing"

	"github.com/grailbio/covar/align"
	"github.com/grailbio/covar/covariant"
	"github.com/grailbio/covar/encoding/bamprovider"
	"github.com/grailbio/covar/gene"
	"github.com/grailbio/covar/internal/bamtest"
	"github.com/grailbio/covar/interval"
	"github.com/grailbio/covar/translate"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// The gene spans 1-based [11,34]: ATG GAT TCT AAA TGG CCC GGG TAA.
const testRef = "CCCCCCCCCC" + "ATGGATTCTAAATGGCCCGGGTAA"

const (
	single = "A15G(G:D2G)"
	double = "A15G(G:D2G) T19G(G:S3S)"
)

func newTranslator(t *testing.T) *translate.Translator {
	genes, err := gene.NewIndex([]gene.Position{{Name: "G", Start: 11, End: 34}})
	assert.NoError(t, err)
	return &translate.Translator{Ref: testRef, Genes: genes}
}

// readSeq returns the reference bases [start,end) with the given 0-based
// positions changed to G.
func readSeq(start, end int, alts ...int) string {
	buf := []byte(testRef[start:end])
	for _, pos := range alts {
		buf[pos-start] = 'G'
	}
	return string(buf)
}

func newProvider() bamprovider.Provider {
	header, ref := bamtest.NewHeader("chr1", len(testRef))
	recs := []*sam.Record{
		bamtest.NewRecord("f1", ref, 5, 0, "20M", readSeq(5, 25, 14), 30),
		bamtest.NewRecord("f2", ref, 5, 0, "20M", readSeq(5, 25, 14), 30),
		bamtest.NewRecord("f3", ref, 5, 0, "20M", readSeq(5, 25, 14), 30),
		// Each mate carries part of the pattern.
		bamtest.NewRecord("f7/1", ref, 5, sam.Paired|sam.Read1, "20M", readSeq(5, 25, 14), 30),
		bamtest.NewRecord("f7/2", ref, 6, sam.Paired|sam.Read2, "20M", readSeq(6, 26, 14, 18), 30),
		bamtest.NewRecord("f4", ref, 8, 0, "20M", readSeq(8, 28, 14, 18), 30),
		bamtest.NewRecord("f5", ref, 8, 0, "20M", readSeq(8, 28), 30),
		bamtest.NewRecord("f6", ref, 8, 0, "20M", readSeq(8, 28, 14, 18), 10),
	}
	return bamprovider.NewFakeProvider(header, recs)
}

var wholeRef = interval.Entry{RefName: "chr1", Start0: 0, End: len(testRef)}

func keys(rows []covariant.Pattern) []string {
	var k []string
	for _, r := range rows {
		k = append(k, r.Key)
	}
	return k
}

func TestLocus(t *testing.T) {
	for _, tt := range []struct {
		label string
		want  int
	}{
		{"T150A", 150},
		{"T150A(S:L50F)", 150},
		{"(150,'AAA')", 150},
		{"(150,'AAA')(S:INS50K)", 150},
		{"(150,6)(S:DEL50/51)", 150},
	} {
		got, err := covariant.Locus(tt.label)
		assert.NoError(t, err)
		expect.EQ(t, got, tt.want, tt.label)
	}
	for _, bad := range []string{"", "(150", "TA", "(x,3)"} {
		_, err := covariant.Locus(bad)
		expect.NotNil(t, err, bad)
	}
}

func TestParseOpts(t *testing.T) {
	k, err := covariant.ParseSortKey("site")
	assert.NoError(t, err)
	expect.EQ(t, k, covariant.SortBySite)
	_, err = covariant.ParseSortKey("name")
	expect.NotNil(t, err)
	m, err := covariant.ParseCoverageMode("envelope")
	assert.NoError(t, err)
	expect.EQ(t, m, covariant.CoverageEnvelope)
	_, err = covariant.ParseCoverageMode("union")
	expect.NotNil(t, err)
}

func TestRun(t *testing.T) {
	tr := newTranslator(t)
	opts := covariant.DefaultOpts
	opts.MinCount = 1
	rows, err := covariant.Run(newProvider(), tr, wholeRef, opts)
	assert.NoError(t, err)
	// f5 has no mutations, and f6's bases fall below the quality threshold.
	assert.EQ(t, keys(rows), []string{single, double})
	expect.EQ(t, rows[0].Count, 3)
	expect.EQ(t, rows[0].Mutations, []string{"A15G(G:D2G)"})
	expect.EQ(t, rows[0].FirstLocus, 15)
	expect.EQ(t, rows[0].CoverageStart, 5)
	expect.EQ(t, rows[0].CoverageEnd, 25)
	expect.EQ(t, rows[1].Count, 2)
	expect.EQ(t, rows[1].Mutations, []string{"A15G(G:D2G)", "T19G(G:S3S)"})
	// f4 is the last fragment with the pattern.
	expect.EQ(t, rows[1].CoverageStart, 8)
	expect.EQ(t, rows[1].CoverageEnd, 28)

	opts.Coverage = covariant.CoverageEnvelope
	rows, err = covariant.Run(newProvider(), tr, wholeRef, opts)
	assert.NoError(t, err)
	assert.EQ(t, keys(rows), []string{single, double})
	expect.EQ(t, rows[1].CoverageStart, 5)
	expect.EQ(t, rows[1].CoverageEnd, 28)

	opts.MinQual = 5
	rows, err = covariant.Run(newProvider(), tr, wholeRef, opts)
	assert.NoError(t, err)
	assert.EQ(t, keys(rows), []string{single, double})
	expect.EQ(t, rows[1].Count, 3)
}

func TestRunMinCount(t *testing.T) {
	rows, err := covariant.Run(newProvider(), newTranslator(t), wholeRef, covariant.DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, len(rows), 0)

	opts := covariant.DefaultOpts
	opts.MinCount = 3
	rows, err = covariant.Run(newProvider(), newTranslator(t), wholeRef, opts)
	assert.NoError(t, err)
	expect.EQ(t, keys(rows), []string{single})
}

func TestRunSpansRegion(t *testing.T) {
	opts := covariant.DefaultOpts
	opts.MinCount = 1
	opts.SpansRegion = true
	region := interval.Entry{RefName: "chr1", Start0: 10, End: 27}
	rows, err := covariant.Run(newProvider(), newTranslator(t), region, opts)
	assert.NoError(t, err)
	// Only f4 covers [10,27).
	assert.EQ(t, keys(rows), []string{double})
	expect.EQ(t, rows[0].Count, 1)
}

func TestSortPatterns(t *testing.T) {
	rows := []covariant.Pattern{
		{Key: "a", Count: 1, FirstLocus: 30},
		{Key: "b", Count: 5, FirstLocus: 20},
		{Key: "c", Count: 5, FirstLocus: 10},
		{Key: "d", Count: 2, FirstLocus: 20},
	}
	covariant.SortPatterns(rows, covariant.SortByCount)
	expect.EQ(t, keys(rows), []string{"b", "c", "d", "a"})
	covariant.SortPatterns(rows, covariant.SortBySite)
	expect.EQ(t, keys(rows), []string{"c", "b", "d", "a"})
}

func walkRead(t *testing.T, name string, pos int, cigar, seq string) *align.Evidence {
	_, ref := bamtest.NewHeader("chr1", len(testRef))
	rec := bamtest.NewRecord(name, ref, pos, 0, cigar, seq, 30)
	ev, err := align.Walk(bamprovider.NewRead(rec), testRef, align.DefaultWalkOpts)
	assert.NoError(t, err)
	return ev
}

func TestAddOrderIndependent(t *testing.T) {
	tr := newTranslator(t)
	a := walkRead(t, "x/1", 5, "20M", readSeq(5, 25, 18))
	b := walkRead(t, "x/2", 8, "20M", readSeq(8, 28, 14))

	opts := covariant.DefaultOpts
	opts.MinCount = 1
	agg1 := covariant.NewAggregator(tr, wholeRef, opts)
	agg1.Add([]*align.Evidence{a, b})
	agg2 := covariant.NewAggregator(tr, wholeRef, opts)
	agg2.Add([]*align.Evidence{b, a})
	t1, t2 := agg1.Table(), agg2.Table()
	expect.EQ(t, t1, t2)
	assert.EQ(t, keys(t1), []string{double})
	expect.EQ(t, t1[0].CoverageStart, 5)
	expect.EQ(t, t1[0].CoverageEnd, 28)

	agg1.Add(nil)
	expect.EQ(t, agg1.Table(), t1)
}

func TestAddPrefersTranslatedLabel(t *testing.T) {
	tr := newTranslator(t)
	// The second mate starts inside the codon of A15G, so only the first
	// one can translate it.
	full := walkRead(t, "y/1", 5, "20M", readSeq(5, 25, 14))
	clipped := walkRead(t, "y/2", 14, "10M", readSeq(14, 24, 14))
	expect.EQ(t, tr.Annotate(clipped)[0].Label, "A15G")

	opts := covariant.DefaultOpts
	opts.MinCount = 1
	for _, evs := range [][]*align.Evidence{{full, clipped}, {clipped, full}} {
		agg := covariant.NewAggregator(tr, wholeRef, opts)
		agg.Add(evs)
		rows := agg.Table()
		assert.EQ(t, keys(rows), []string{single})
		expect.EQ(t, rows[0].Mutations, []string{"A15G(G:D2G)"})
	}
}

func TestRunDeterministic(t *testing.T) {
	opts := covariant.DefaultOpts
	opts.MinCount = 1
	var want bytes.Buffer
	rows, err := covariant.Run(newProvider(), newTranslator(t), wholeRef, opts)
	assert.NoError(t, err)
	assert.NoError(t, covariant.WriteTSV(&want, rows))
	for i := 0; i < 5; i++ {
		var got bytes.Buffer
		rows, err := covariant.Run(newProvider(), newTranslator(t), wholeRef, opts)
		assert.NoError(t, err)
		assert.NoError(t, covariant.WriteTSV(&got, rows))
		expect.EQ(t, got.String(), want.String())
	}
}
