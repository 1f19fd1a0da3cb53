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

// Package bamtest builds small BAM fixtures for tests.
package bamtest

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/covar/encoding/bamprovider"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
)

// NewHeader returns a header with a single reference.
func NewHeader(refName string, length int) (*sam.Header, *sam.Reference) {
	header, refs := NewHeaderRefs(length, refName)
	return header, refs[0]
}

// NewHeaderRefs returns a header with one reference of the given length per
// name, in order.
func NewHeaderRefs(length int, names ...string) (*sam.Header, []*sam.Reference) {
	refs := make([]*sam.Reference, len(names))
	for i, name := range names {
		ref, err := sam.NewReference(name, "", "", length, nil, nil)
		if err != nil {
			panic(err)
		}
		refs[i] = ref
	}
	header, err := sam.NewHeader(nil, refs)
	if err != nil {
		panic(err)
	}
	return header, refs
}

// NewRecord creates a mapped record.  seq is the full query sequence
// including soft-clipped bases, and every base gets quality qual.
func NewRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, cigar, seq string, qual byte) *sam.Record {
	c, err := sam.ParseCigar([]byte(cigar))
	if err != nil {
		panic(fmt.Sprintf("bad cigar %q: %v", cigar, err))
	}
	r := &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    60,
		Cigar:   c,
		Flags:   flags,
		MateRef: nil,
		MatePos: -1,
		Seq:     sam.NewSeq([]byte(seq)),
		Qual:    bytes.Repeat([]byte{qual}, len(seq)),
	}
	return r
}

// WriteBAM sorts recs by reference and position and writes them with header to a BAM file
// at path, along with its index at path + ".bai".
func WriteBAM(t testing.TB, path string, header *sam.Header, recs []*sam.Record) {
	sorted := append([]*sam.Record(nil), recs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if ri, rj := sorted[i].Ref.ID(), sorted[j].Ref.ID(); ri != rj {
			return ri < rj
		}
		return sorted[i].Pos < sorted[j].Pos
	})
	f, err := os.Create(path)
	assert.NoError(t, err)
	w, err := bam.NewWriter(f, header, 1)
	assert.NoError(t, err)
	for _, r := range sorted {
		assert.NoError(t, w.Write(r))
	}
	assert.NoError(t, w.Close())
	assert.NoError(t, f.Close())
	_, err = bamprovider.WriteIndex(vcontext.Background(), path, "")
	assert.NoError(t, err)
}

// ReadNames returns the names of all records in the BAM file at path, in
// file order, and its header.
func ReadNames(t testing.TB, path string) ([]string, *sam.Header) {
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	r, err := bam.NewReader(f, 1)
	assert.NoError(t, err)
	defer r.Close()
	var names []string
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		names = append(names, rec.Name)
	}
	return names, r.Header()
}
