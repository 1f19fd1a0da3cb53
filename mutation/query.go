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

package mutation

import (
	"fmt"
	"sort"
)

// SNP is a single-base substitution.  Pos is 0-based.
type SNP struct {
	Pos int
	Ref byte
	Alt byte
}

// String renders the SNP as <ref><1-based pos><alt>, e.g. "T150A".
func (s SNP) String() string {
	return fmt.Sprintf("%c%d%c", s.Ref, s.Pos+1, s.Alt)
}

// Insertion is a run of bases inserted into the read after the reference
// base at 0-based Pos.
type Insertion struct {
	Pos int
	Seq string
}

// String renders the insertion as (<1-based anchor pos>,'<seq>').
func (ins Insertion) String() string {
	return fmt.Sprintf("(%d,'%s')", ins.Pos+1, ins.Seq)
}

// Deletion removes Len reference bases starting at 0-based Pos.
type Deletion struct {
	Pos int
	Len int
}

// String renders the deletion as (<1-based anchor pos>,<len>).  The anchor
// is the base preceding the deletion, so the number equals the 0-based Pos.
func (d Deletion) String() string {
	return fmt.Sprintf("(%d,%d)", d.Pos, d.Len)
}

// Query is an immutable set of mutations to look for.
type Query struct {
	SNPs       []SNP
	Insertions []Insertion
	Deletions  []Deletion

	snpAlt map[int]byte
	ins    map[Insertion]struct{}
	dels   map[Deletion]struct{}
}

// NewQuery builds a query from the given mutations.  Duplicates are dropped;
// if two SNPs share a position, the later one wins the alternate lookup.
func NewQuery(snps []SNP, insertions []Insertion, deletions []Deletion) *Query {
	q := &Query{
		snpAlt: make(map[int]byte, len(snps)),
		ins:    make(map[Insertion]struct{}, len(insertions)),
		dels:   make(map[Deletion]struct{}, len(deletions)),
	}
	for _, s := range snps {
		if _, ok := q.snpAlt[s.Pos]; !ok {
			q.SNPs = append(q.SNPs, s)
		}
		q.snpAlt[s.Pos] = s.Alt
	}
	for _, ins := range insertions {
		if _, ok := q.ins[ins]; ok {
			continue
		}
		q.ins[ins] = struct{}{}
		q.Insertions = append(q.Insertions, ins)
	}
	for _, d := range deletions {
		if _, ok := q.dels[d]; ok {
			continue
		}
		q.dels[d] = struct{}{}
		q.Deletions = append(q.Deletions, d)
	}
	return q
}

// Empty returns true iff the query names no mutation.
func (q *Query) Empty() bool {
	return len(q.SNPs) == 0 && len(q.Insertions) == 0 && len(q.Deletions) == 0
}

// SNPAlt returns the queried alternate base at 0-based pos.
func (q *Query) SNPAlt(pos int) (byte, bool) {
	b, ok := q.snpAlt[pos]
	return b, ok
}

// HasInsertion returns true iff ins is one of the queried insertions.
func (q *Query) HasInsertion(ins Insertion) bool {
	_, ok := q.ins[ins]
	return ok
}

// HasDeletion returns true iff d is one of the queried deletions.
func (q *Query) HasDeletion(d Deletion) bool {
	_, ok := q.dels[d]
	return ok
}

// Sites returns the sorted, deduplicated 0-based reference positions that a
// read must overlap to carry any queried mutation.  An insertion contributes
// its anchor base, a deletion its first deleted base.
func (q *Query) Sites() []int {
	seen := map[int]bool{}
	var sites []int
	add := func(pos int) {
		if !seen[pos] {
			seen[pos] = true
			sites = append(sites, pos)
		}
	}
	for _, s := range q.SNPs {
		add(s.Pos)
	}
	for _, ins := range q.Insertions {
		add(ins.Pos)
	}
	for _, d := range q.Deletions {
		add(d.Pos)
	}
	sort.Ints(sites)
	return sites
}
