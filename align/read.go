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

// Package align walks the CIGAR of one aligned read and collects the
// nucleotide evidence it carries: matched blocks, SNPs, insertions and
// deletions, with an offset map that converts reference positions into
// positions in the read's aligned sequence.
package align

import (
	"strconv"
	"strings"
)

// OpType is a CIGAR operation.
type OpType byte

const (
	// OpMatch is M, = or X: consumes both query and reference.
	OpMatch OpType = iota
	// OpInsertion is I: consumes query only.
	OpInsertion
	// OpDeletion is D: consumes reference only.
	OpDeletion
	// OpSkip is N: consumes reference only, not a deletion.
	OpSkip
	// OpSoftClip is S.  Soft-clipped bases are not part of Read.Seq.
	OpSoftClip
	// OpHardClip is H.
	OpHardClip
	// OpPad is P.
	OpPad
)

var opChars = [...]byte{'M', 'I', 'D', 'N', 'S', 'H', 'P'}

func (t OpType) String() string {
	if int(t) < len(opChars) {
		return string(opChars[t])
	}
	return "?"
}

// consumesQuery returns true iff the op advances the aligned sequence.
func (t OpType) consumesQuery() bool {
	return t == OpMatch || t == OpInsertion
}

// Op is one CIGAR element.
type Op struct {
	Type OpType
	Len  int
}

// Cigar is a list of CIGAR operations.
type Cigar []Op

// String renders the cigar in SAM notation.
func (c Cigar) String() string {
	if len(c) == 0 {
		return "*"
	}
	var b strings.Builder
	for _, op := range c {
		b.WriteString(strconv.Itoa(op.Len))
		b.WriteString(op.Type.String())
	}
	return b.String()
}

// Read is the view of an aligned read that the walker needs.
type Read interface {
	// Name is the query name, including any /1 or /2 mate suffix.
	Name() string
	// Start is the 0-based reference position of the first aligned base.
	Start() int
	// End is the 0-based exclusive reference end of the alignment.
	End() int
	// Cigar returns the alignment operations, or nil if there are none.
	Cigar() Cigar
	// Seq is the aligned query sequence: soft-clipped bases are removed,
	// inserted bases are kept.
	Seq() string
	// Qual holds the phred qualities of Seq, or nil if unavailable.
	Qual() []byte
	// SoftClipped returns true iff the cigar contains a soft clip.
	SoftClipped() bool
}
