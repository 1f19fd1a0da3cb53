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

import "sort"

// OffsetRange maps the reference positions [Start, End) to a net indel
// offset.
type OffsetRange struct {
	Start  int
	End    int
	Offset int
}

// OffsetMap translates a 0-based reference position inside a read into an
// index of the read's aligned sequence:
//
//   seqIndex = (pos - readStart) + At(pos)
//
// The offset is the total length of insertions minus the total length of
// deletions and skips that precede pos in the read.  Ranges are sorted,
// disjoint and non-empty.
type OffsetMap struct {
	Ranges []OffsetRange
	// Final is the offset of positions at or past the end of the last range.
	Final int
}

// offsetBuilder accumulates indel events in reference order.
type offsetBuilder struct {
	m   OffsetMap
	cur int
	net int
}

func newOffsetBuilder(start int) *offsetBuilder {
	return &offsetBuilder{cur: start}
}

// event records that positions at or past boundary are shifted by delta on
// top of all earlier events.
func (b *offsetBuilder) event(boundary, delta int) {
	b.flush(boundary)
	b.net += delta
}

func (b *offsetBuilder) flush(boundary int) {
	if boundary > b.cur {
		b.m.Ranges = append(b.m.Ranges, OffsetRange{Start: b.cur, End: boundary, Offset: b.net})
		b.cur = boundary
	}
}

func (b *offsetBuilder) finish(end int) OffsetMap {
	b.flush(end)
	b.m.Final = b.net
	return b.m
}

// At returns the net offset at reference position pos.
func (m OffsetMap) At(pos int) int {
	n := len(m.Ranges)
	if n == 0 {
		return m.Final
	}
	if pos < m.Ranges[0].Start {
		return 0
	}
	i := sort.Search(n, func(i int) bool { return m.Ranges[i].End > pos })
	if i == n {
		return m.Final
	}
	return m.Ranges[i].Offset
}
