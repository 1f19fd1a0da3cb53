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

package bamprovider

import (
	"strings"

	"github.com/grailbio/covar/align"
	"github.com/grailbio/hts/sam"
)

// Read adapts a sam.Record to align.Read.
type Read struct {
	rec         *sam.Record
	cigar       align.Cigar
	seq         string
	qual        []byte
	softClipped bool
}

// NewRead creates a Read for rec.  The record must not be modified while
// the Read is in use.
func NewRead(rec *sam.Record) *Read {
	r := &Read{rec: rec}
	var lead, trail int
	seenAligned := false
	for _, op := range rec.Cigar {
		n := op.Len()
		var t align.OpType
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			t = align.OpMatch
		case sam.CigarInsertion:
			t = align.OpInsertion
		case sam.CigarDeletion:
			t = align.OpDeletion
		case sam.CigarSkipped:
			t = align.OpSkip
		case sam.CigarSoftClipped:
			t = align.OpSoftClip
			r.softClipped = true
			if seenAligned {
				trail += n
			} else {
				lead += n
			}
		case sam.CigarHardClipped:
			t = align.OpHardClip
		case sam.CigarPadded:
			t = align.OpPad
		default:
			continue
		}
		if t == align.OpMatch || t == align.OpInsertion {
			seenAligned = true
		}
		r.cigar = append(r.cigar, align.Op{Type: t, Len: n})
	}
	full := rec.Seq.Expand()
	if lead+trail <= len(full) {
		r.seq = strings.ToUpper(string(full[lead : len(full)-trail]))
		if len(rec.Qual) == len(full) && (len(rec.Qual) == 0 || rec.Qual[0] != 0xff) {
			r.qual = rec.Qual[lead : len(full)-trail]
		}
	}
	return r
}

// Record returns the underlying record.
func (r *Read) Record() *sam.Record { return r.rec }

// Name implements align.Read.
func (r *Read) Name() string { return r.rec.Name }

// Start implements align.Read.
func (r *Read) Start() int { return r.rec.Pos }

// End implements align.Read.
func (r *Read) End() int { return r.rec.End() }

// Cigar implements align.Read.
func (r *Read) Cigar() align.Cigar { return r.cigar }

// Seq implements align.Read.
func (r *Read) Seq() string { return r.seq }

// Qual implements align.Read.
func (r *Read) Qual() []byte { return r.qual }

// SoftClipped implements align.Read.
func (r *Read) SoftClipped() bool { return r.softClipped }
