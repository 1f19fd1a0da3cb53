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

// Package translate annotates nucleotide mutations with their amino-acid
// consequences, e.g. "A23403G(S:D614G)".
package translate

import (
	"errors"
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/covar/align"
	"github.com/grailbio/covar/gene"
	"github.com/grailbio/covar/mutation"
)

// ErrCodonBoundary is returned when the alternate codon of a SNP is not a
// full, unambiguous triplet within the read.
var ErrCodonBoundary = errors.New("translate: alternate codon not contained in read")

// errNoGene is returned for mutations outside every gene.
var errNoGene = errors.New("translate: no gene contains the mutation")

// Annotated is a mutation label together with the 1-based position printed in
// its nucleotide part.  Labels sort by Locus.
type Annotated struct {
	Label string
	Locus int
	// Nucleotide is the nucleotide part of Label.  It equals Label when the
	// mutation could not be translated.
	Nucleotide string
}

// Translated returns true iff the label carries an amino-acid part.
func (a Annotated) Translated() bool { return a.Label != a.Nucleotide }

// Translator annotates the evidence of reads aligned to Ref.
type Translator struct {
	// Ref is the upper-case reference sequence.
	Ref string
	// Genes may be nil, in which case nothing is annotated.
	Genes *gene.Index
}

// SNP returns the amino-acid change caused by snp, as
// "<gene>:<refAA><aaLocus><altAA>".  The alternate codon is read from ev.
func (t *Translator) SNP(snp mutation.SNP, ev *align.Evidence) (string, error) {
	locus := snp.Pos + 1
	g, ok := t.Genes.GeneFor(locus)
	if !ok {
		return "", errNoGene
	}
	codonPos := (locus - g.Start) % 3
	aaLocus := (locus-codonPos-g.Start)/3 + 1

	refStart := locus - codonPos - 1
	if refStart < 0 || refStart+3 > len(t.Ref) {
		return "", ErrCodonBoundary
	}
	refAA := Codon(t.Ref[refStart : refStart+3])

	altStart := ev.SeqIndex(snp.Pos) - codonPos
	if altStart < 0 || altStart+3 > len(ev.Seq) {
		return "", ErrCodonBoundary
	}
	altAA := Codon(ev.Seq[altStart : altStart+3])
	if altAA == Unknown {
		return "", ErrCodonBoundary
	}
	return fmt.Sprintf("%s:%c%d%c", g.Name, refAA, aaLocus, altAA), nil
}

// Insertion returns "<gene>:INS<aaLocus><aa>".  The amino-acid sequence is
// empty unless the insertion length is a multiple of three.
func (t *Translator) Insertion(ins mutation.Insertion) (string, error) {
	locus := ins.Pos + 1
	g, ok := t.Genes.GeneFor(locus)
	if !ok {
		return "", errNoGene
	}
	aaLocus := (locus-g.Start)/3 + 2
	var aa string
	if len(ins.Seq)%3 == 0 {
		aa = Seq(ins.Seq)
	}
	return fmt.Sprintf("%s:INS%d%s", g.Name, aaLocus, aa), nil
}

// Deletion returns "<gene>:DEL<aaLocus>", or "<gene>:DEL<first>/<last>" when
// more than one codon is deleted.
func (t *Translator) Deletion(d mutation.Deletion) (string, error) {
	locus := d.Pos
	g, ok := t.Genes.GeneFor(locus)
	if !ok {
		return "", errNoGene
	}
	aaLocus := (locus-g.Start)/3 + 2
	if n := d.Len / 3; n > 1 {
		return fmt.Sprintf("%s:DEL%d/%d", g.Name, aaLocus, aaLocus+n-1), nil
	}
	return fmt.Sprintf("%s:DEL%d", g.Name, aaLocus), nil
}

func annotated(nt fmt.Stringer, locus int, aa string, err error) Annotated {
	a := Annotated{Label: nt.String(), Locus: locus, Nucleotide: nt.String()}
	if err == nil {
		a.Label += "(" + aa + ")"
	}
	return a
}

// Annotate labels every mutation in ev.  A mutation that cannot be
// translated keeps its nucleotide label.  The result lists insertions, then
// deletions, then SNPs.
func (t *Translator) Annotate(ev *align.Evidence) []Annotated {
	out := make([]Annotated, 0, len(ev.Insertions)+len(ev.Deletions)+len(ev.SNPs))
	for _, ins := range ev.Insertions {
		aa, err := t.Insertion(ins)
		out = append(out, annotated(ins, ins.Pos+1, aa, err))
	}
	for _, d := range ev.Deletions {
		aa, err := t.Deletion(d)
		out = append(out, annotated(d, d.Pos, aa, err))
	}
	for _, snp := range ev.SNPs {
		aa, err := t.SNP(snp, ev)
		if err == ErrCodonBoundary {
			log.Debug.Printf("%s: %v: %v", ev.Name, snp, err)
		}
		out = append(out, annotated(snp, snp.Pos+1, aa, err))
	}
	return out
}
