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

package translate

import (
	"strings"
	"testing"

	"github.com/grailbio/covar/align"
	"github.com/grailbio/covar/gene"
	"github.com/grailbio/covar/mutation"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// The gene spans 1-based [11,34]: ATG GAT TCT AAA TGG CCC GGG TAA.
const testRef = "CCCCCCCCCC" + "ATGGATTCTAAATGGCCCGGGTAA" + "CCCCCCCCCC"

func newTranslator(t *testing.T) *Translator {
	genes, err := gene.NewIndex([]gene.Position{{Name: "G", Start: 11, End: 34}})
	assert.NoError(t, err)
	return &Translator{Ref: testRef, Genes: genes}
}

func withBase(s string, i int, b byte) string {
	buf := []byte(s)
	buf[i] = b
	return string(buf)
}

func TestSeq(t *testing.T) {
	expect.EQ(t, Seq("ATGGATTCTAAATGGCCCGGGTAA"), "MDSKWPG*")
	expect.EQ(t, Seq("ATGGA"), "M")
	expect.EQ(t, Seq(""), "")
	expect.EQ(t, Codon("ANG"), byte(Unknown))
}

func TestSNP(t *testing.T) {
	tr := newTranslator(t)
	snp := mutation.SNP{Pos: 14, Ref: 'A', Alt: 'G'}
	ev := &align.Evidence{Start: 5, End: 25, Seq: withBase(testRef[5:25], 9, 'G')}
	aa, err := tr.SNP(snp, ev)
	assert.NoError(t, err)
	expect.EQ(t, aa, "G:D2G")

	// Each codon phase.
	for _, tt := range []struct {
		pos  int
		alt  byte
		want string
	}{
		{10, 'C', "G:M1L"}, // ATG -> CTG
		{12, 'A', "G:M1I"}, // ATG -> ATA
		{18, 'G', "G:S3S"}, // TCT -> TCG
		{31, 'G', "G:*8E"}, // TAA -> GAA
	} {
		ev := &align.Evidence{Start: 5, End: 35, Seq: withBase(testRef[5:35], tt.pos-5, tt.alt)}
		aa, err := tr.SNP(mutation.SNP{Pos: tt.pos, Ref: testRef[tt.pos], Alt: tt.alt}, ev)
		assert.NoError(t, err)
		expect.EQ(t, aa, tt.want)
	}
}

func TestSNPAfterInsertion(t *testing.T) {
	tr := newTranslator(t)
	seq := testRef[5:10] + "AAA" + withBase(testRef[10:25], 4, 'G')
	ev := &align.Evidence{
		Start: 5,
		End:   25,
		Seq:   seq,
		Offsets: align.OffsetMap{
			Ranges: []align.OffsetRange{{Start: 5, End: 10, Offset: 0}, {Start: 10, End: 25, Offset: 3}},
			Final:  3,
		},
	}
	aa, err := tr.SNP(mutation.SNP{Pos: 14, Ref: 'A', Alt: 'G'}, ev)
	assert.NoError(t, err)
	expect.EQ(t, aa, "G:D2G")
}

func TestSNPCodonBoundary(t *testing.T) {
	tr := newTranslator(t)
	snp := mutation.SNP{Pos: 14, Ref: 'A', Alt: 'G'}

	// The codon starts before the read.
	ev := &align.Evidence{Start: 14, End: 24, Seq: withBase(testRef[14:24], 0, 'G')}
	_, err := tr.SNP(snp, ev)
	expect.EQ(t, err, ErrCodonBoundary)

	// The codon ends after the read.
	ev = &align.Evidence{Start: 5, End: 15, Seq: withBase(testRef[5:15], 9, 'G')}
	_, err = tr.SNP(snp, ev)
	expect.EQ(t, err, ErrCodonBoundary)

	// A masked base makes the codon ambiguous.
	seq := withBase(withBase(testRef[5:25], 9, 'G'), 10, align.Masked)
	ev = &align.Evidence{Start: 5, End: 25, Seq: seq}
	_, err = tr.SNP(snp, ev)
	expect.EQ(t, err, ErrCodonBoundary)
}

func TestInsertion(t *testing.T) {
	tr := newTranslator(t)
	aa, err := tr.Insertion(mutation.Insertion{Pos: 16, Seq: "GGG"})
	assert.NoError(t, err)
	expect.EQ(t, aa, "G:INS4G")

	aa, err = tr.Insertion(mutation.Insertion{Pos: 16, Seq: "ATGGAT"})
	assert.NoError(t, err)
	expect.EQ(t, aa, "G:INS4MD")

	aa, err = tr.Insertion(mutation.Insertion{Pos: 16, Seq: "GG"})
	assert.NoError(t, err)
	expect.EQ(t, aa, "G:INS4")

	_, err = tr.Insertion(mutation.Insertion{Pos: 2, Seq: "GGG"})
	expect.NotNil(t, err)
}

func TestDeletion(t *testing.T) {
	tr := newTranslator(t)
	for _, tt := range []struct {
		d    mutation.Deletion
		want string
	}{
		{mutation.Deletion{Pos: 16, Len: 1}, "G:DEL3"},
		{mutation.Deletion{Pos: 16, Len: 3}, "G:DEL3"},
		{mutation.Deletion{Pos: 16, Len: 5}, "G:DEL3"},
		{mutation.Deletion{Pos: 16, Len: 6}, "G:DEL3/4"},
		{mutation.Deletion{Pos: 16, Len: 9}, "G:DEL3/5"},
	} {
		aa, err := tr.Deletion(tt.d)
		assert.NoError(t, err)
		expect.EQ(t, aa, tt.want, tt.d)
		// Deleted length and amino-acid range agree.
		if n := tt.d.Len / 3; n > 1 {
			expect.True(t, strings.Contains(aa, "/"))
		} else {
			expect.False(t, strings.Contains(aa, "/"))
		}
	}
}

func TestAnnotate(t *testing.T) {
	tr := newTranslator(t)
	ev := &align.Evidence{
		Name:       "r",
		Start:      0,
		End:        40,
		Seq:        withBase(testRef[0:40], 14, 'G'),
		SNPs:       []mutation.SNP{{Pos: 14, Ref: 'A', Alt: 'G'}, {Pos: 2, Ref: 'C', Alt: 'T'}},
		Insertions: []mutation.Insertion{{Pos: 16, Seq: "GGG"}},
		Deletions:  []mutation.Deletion{{Pos: 37, Len: 2}},
	}
	expect.EQ(t, tr.Annotate(ev), []Annotated{
		{Label: "(17,'GGG')(G:INS4G)", Locus: 17, Nucleotide: "(17,'GGG')"},
		{Label: "(37,2)", Locus: 37, Nucleotide: "(37,2)"},
		{Label: "A15G(G:D2G)", Locus: 15, Nucleotide: "A15G"},
		{Label: "C3T", Locus: 3, Nucleotide: "C3T"},
	})
	expect.True(t, tr.Annotate(ev)[0].Translated())
	expect.False(t, tr.Annotate(ev)[1].Translated())

	// Without genes only nucleotide labels are produced.
	bare := &Translator{Ref: testRef}
	got := bare.Annotate(ev)
	expect.EQ(t, got[2], Annotated{Label: "A15G", Locus: 15, Nucleotide: "A15G"})
}
