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

package align

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/covar/mutation"
)

// ErrNoCigar is returned for reads without alignment operations.  Callers
// skip such reads.
var ErrNoCigar = errors.New("align: read has no CIGAR")

// Masked replaces aligned bases whose quality is below WalkOpts.MinQual.
const Masked = 'N'

// WalkOpts configures Walk.
type WalkOpts struct {
	// MinQual is the minimum phred quality of a base used as evidence.
	// Lower-quality bases neither match nor mismatch anything.
	MinQual int
}

// DefaultWalkOpts is the default value of WalkOpts.
var DefaultWalkOpts = WalkOpts{MinQual: 20}

// Block is a run of matched bases.
type Block struct {
	// RefStart is the 0-based reference position of the first base.
	RefStart int
	// SeqStart is the index of the first base in Evidence.Seq.
	SeqStart int
	Len      int
}

// Evidence is everything one read says about the reference region it
// covers.
type Evidence struct {
	Name string
	// Start and End delimit the reference span of the alignment, 0-based
	// half-open.
	Start, End int
	// Seq is the aligned sequence with low-quality bases replaced by Masked.
	Seq    string
	Blocks []Block

	SNPs       []mutation.SNP
	Insertions []mutation.Insertion
	Deletions  []mutation.Deletion

	Offsets OffsetMap

	// HasIndel is true iff the cigar contains an insertion, a deletion or
	// a skip.
	HasIndel bool
}

// maskSeq returns seq with low-quality bases replaced by Masked.  Missing
// qualities leave seq unchanged.
func maskSeq(seq string, qual []byte, minQual int) string {
	if len(qual) != len(seq) {
		return strings.ToUpper(seq)
	}
	b := []byte(strings.ToUpper(seq))
	for i := range b {
		if int(qual[i]) < minQual {
			b[i] = Masked
		}
	}
	return string(b)
}

// Walk collects the evidence carried by read against the reference
// sequence ref.  ref is indexed by 0-based position and must be upper case.
func Walk(read Read, ref string, opts WalkOpts) (*Evidence, error) {
	cigar := read.Cigar()
	if len(cigar) == 0 {
		return nil, ErrNoCigar
	}
	ev := &Evidence{
		Name:  read.Name(),
		Start: read.Start(),
		Seq:   maskSeq(read.Seq(), read.Qual(), opts.MinQual),
	}
	var (
		i       int // index into ev.Seq
		refPos  = ev.Start
		offsets = newOffsetBuilder(ev.Start)
	)
	for _, op := range cigar {
		if op.Type.consumesQuery() && i+op.Len > len(ev.Seq) {
			return nil, fmt.Errorf("align.Walk %s: cigar %v longer than sequence (%d bases)",
				read.Name(), cigar, len(ev.Seq))
		}
		switch op.Type {
		case OpMatch:
			ev.Blocks = append(ev.Blocks, Block{RefStart: refPos, SeqStart: i, Len: op.Len})
			i += op.Len
			refPos += op.Len
		case OpInsertion:
			ev.HasIndel = true
			// The first reference position after the insertion.  Without
			// skips this is start + i + (deleted bases) - (inserted bases).
			boundary := refPos
			offsets.event(boundary, op.Len)
			if seq := ev.Seq[i : i+op.Len]; strings.IndexByte(seq, Masked) < 0 {
				ev.Insertions = append(ev.Insertions, mutation.Insertion{Pos: boundary - 1, Seq: seq})
			}
			i += op.Len
		case OpDeletion:
			ev.HasIndel = true
			ev.Deletions = append(ev.Deletions, mutation.Deletion{Pos: refPos, Len: op.Len})
			offsets.event(refPos, -op.Len)
			refPos += op.Len
		case OpSkip:
			ev.HasIndel = true
			offsets.event(refPos, -op.Len)
			refPos += op.Len
		}
	}
	if i != len(ev.Seq) {
		return nil, fmt.Errorf("align.Walk %s: cigar %v covers %d of %d bases",
			read.Name(), cigar, i, len(ev.Seq))
	}
	ev.End = refPos
	ev.Offsets = offsets.finish(refPos)
	switch {
	case !read.SoftClipped():
		ev.SNPs = blockSNPs(ev, ref)
	case !ev.HasIndel:
		ev.SNPs = sliceSNPs(ev, ref)
	}
	return ev, nil
}

func snpAt(ref string, pos int, base byte) (mutation.SNP, bool) {
	if base == Masked || pos < 0 || pos >= len(ref) || ref[pos] == base {
		return mutation.SNP{}, false
	}
	return mutation.SNP{Pos: pos, Ref: ref[pos], Alt: base}, true
}

// blockSNPs compares each matched (read, reference) base pair.
func blockSNPs(ev *Evidence, ref string) []mutation.SNP {
	var snps []mutation.SNP
	for _, b := range ev.Blocks {
		for k := 0; k < b.Len; k++ {
			if snp, ok := snpAt(ref, b.RefStart+k, ev.Seq[b.SeqStart+k]); ok {
				snps = append(snps, snp)
			}
		}
	}
	return snps
}

// sliceSNPs compares the aligned sequence with the reference starting at the
// alignment start.  Used for soft-clipped reads without indels.
func sliceSNPs(ev *Evidence, ref string) []mutation.SNP {
	var snps []mutation.SNP
	for k := 0; k < len(ev.Seq); k++ {
		if snp, ok := snpAt(ref, ev.Start+k, ev.Seq[k]); ok {
			snps = append(snps, snp)
		}
	}
	return snps
}

// SeqIndex returns the index in Seq corresponding to reference position pos,
// using the offset map.  The result may be out of range.
func (ev *Evidence) SeqIndex(pos int) int {
	return pos - ev.Start + ev.Offsets.At(pos)
}

// BaseAt returns the aligned base at 0-based reference position pos.  It
// returns false if pos is not in a matched block or the base is masked.
func (ev *Evidence) BaseAt(pos int) (byte, bool) {
	n := len(ev.Blocks)
	i := sort.Search(n, func(i int) bool { return ev.Blocks[i].RefStart+ev.Blocks[i].Len > pos })
	if i == n || ev.Blocks[i].RefStart > pos {
		return 0, false
	}
	b := ev.Seq[ev.Blocks[i].SeqStart+pos-ev.Blocks[i].RefStart]
	if b == Masked {
		return 0, false
	}
	return b, true
}

// HasInsertion returns true iff the read carries exactly ins.
func (ev *Evidence) HasInsertion(ins mutation.Insertion) bool {
	for _, x := range ev.Insertions {
		if x == ins {
			return true
		}
	}
	return false
}

// HasDeletion returns true iff the read carries exactly d.
func (ev *Evidence) HasDeletion(d mutation.Deletion) bool {
	for _, x := range ev.Deletions {
		if x == d {
			return true
		}
	}
	return false
}
