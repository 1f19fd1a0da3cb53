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

// Package selector finds the fragments of a BAM file that carry queried
// mutations, and writes them (extract) or everything else (filter) to a new
// BAM file.
//
// Selection runs in two phases.  The first phase scans the queried sites and
// records the stems of the matching fragments.  The second phase re-scans
// the output region and writes every record whose stem passes, so a mate
// that misses every site still follows its fragment.
package selector

import (
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/covar/align"
	"github.com/grailbio/covar/encoding/bamprovider"
	"github.com/grailbio/covar/fragment"
	"github.com/grailbio/covar/interval"
	"github.com/grailbio/covar/mutation"
	"github.com/grailbio/hts/sam"
)

// Opts configures selection.
type Opts struct {
	// MinQual is the minimum base quality for a SNP base to count.
	MinQual int
	// SameFragment requires a fragment to carry every queried mutation
	// across its reads.  Otherwise any single queried mutation on any read
	// selects the fragment.
	SameFragment bool
	// RefName is the reference the queried sites refer to in Extract and
	// Filter.  If "", the first reference of the BAM header is used.
	RefName string
	// Index is the BAM index path used by Extract and Filter.  If "", the
	// index is looked up next to the BAM file.
	Index string
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{MinQual: 20}

// Selection is the set of fragment stems chosen by Select.
type Selection map[string]struct{}

// Contains returns true iff stem was selected.
func (s Selection) Contains(stem string) bool {
	_, ok := s[stem]
	return ok
}

// Stems returns the selected stems in sorted order.
func (s Selection) Stems() []string {
	stems := make([]string, 0, len(s))
	for stem := range s {
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems
}

// SiteRange returns the smallest region on refName covering every site of
// q.  It returns false if q is empty.
func SiteRange(refName string, q *mutation.Query) (interval.Entry, bool) {
	sites := q.Sites()
	if len(sites) == 0 {
		return interval.Entry{}, false
	}
	return interval.Entry{RefName: refName, Start0: sites[0], End: sites[len(sites)-1] + 1}, true
}

// carriesAny returns true iff ev carries at least one mutation of q.
func carriesAny(ev *align.Evidence, q *mutation.Query) bool {
	for _, s := range q.SNPs {
		if b, ok := ev.BaseAt(s.Pos); ok && b == s.Alt {
			return true
		}
	}
	for _, ins := range ev.Insertions {
		if q.HasInsertion(ins) {
			return true
		}
	}
	for _, d := range ev.Deletions {
		if q.HasDeletion(d) {
			return true
		}
	}
	return false
}

// carriesAll returns true iff the reads in evs jointly carry every mutation
// of q.
func carriesAll(evs []*align.Evidence, q *mutation.Query) bool {
	if len(evs) == 0 {
		return false
	}
	for _, s := range q.SNPs {
		found := false
		for _, ev := range evs {
			if b, ok := ev.BaseAt(s.Pos); ok && b == s.Alt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, ins := range q.Insertions {
		found := false
		for _, ev := range evs {
			if ev.HasInsertion(ins) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, d := range q.Deletions {
		found := false
		for _, ev := range evs {
			if ev.HasDeletion(d) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Select returns the stems of the fragments on refName that carry the
// mutations of q.
//
// In the default mode each site is fetched separately, and a fragment is
// selected if any of its reads carries any queried mutation.  With
// SameFragment, the fragments overlapping the whole site range are
// reconciled once and a fragment is selected only if its reads jointly carry
// every queried mutation.
func Select(p bamprovider.Provider, refName string, q *mutation.Query, opts Opts) (Selection, error) {
	sel := Selection{}
	walkOpts := align.WalkOpts{MinQual: opts.MinQual}
	if opts.SameFragment {
		region, ok := SiteRange(refName, q)
		if !ok {
			return sel, nil
		}
		err := fragment.Scan(p, region, fragment.DefaultOpts, func(f fragment.Fragment) error {
			if carriesAll(f.Evidence("", walkOpts), q) {
				sel[f.Stem] = struct{}{}
			}
			return nil
		})
		return sel, err
	}
	for _, site := range q.Sites() {
		region := interval.Entry{RefName: refName, Start0: site, End: site + 1}
		err := fragment.Scan(p, region, fragment.DefaultOpts, func(f fragment.Fragment) error {
			if sel.Contains(f.Stem) {
				return nil
			}
			for _, ev := range f.Evidence("", walkOpts) {
				if carriesAny(ev, q) {
					sel[f.Stem] = struct{}{}
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		log.Debug.Printf("%s:%d: %d fragments selected so far", refName, site+1, len(sel))
	}
	return sel, nil
}

// RecordWriter consumes records.  *bam.Writer implements it.
type RecordWriter interface {
	Write(r *sam.Record) error
}

// Emit writes every record overlapping region whose stem passes keep.  Flags
// are not consulted, so secondary and supplementary alignments follow their
// fragment.  It returns the number of records written.
func Emit(p bamprovider.Provider, region interval.Entry, keep func(stem string) bool, w RecordWriter) (n int, err error) {
	iter := p.NewIterator(region.RefName, region.Start0, region.End)
	for iter.Scan() {
		rec := iter.Record()
		if !keep(fragment.Stem(rec.Name)) {
			continue
		}
		if err = w.Write(rec); err != nil {
			iter.Close() // nolint: errcheck
			return n, err
		}
		n++
	}
	return n, iter.Close()
}
