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

// Package fragment groups the reads of a region into fragments: the one or
// two mates sequenced from the same molecule.
package fragment

import (
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/covar/align"
	"github.com/grailbio/covar/encoding/bamprovider"
	"github.com/grailbio/covar/interval"
	"github.com/grailbio/hts/sam"
)

// Opts controls Scan.
type Opts struct {
	// SkipFlags lists flags whose reads are ignored.
	SkipFlags sam.Flags
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{SkipFlags: sam.Unmapped | sam.Secondary | sam.Supplementary}

// Fragment is a singleton read or a pair of mates.  R2 is nil for
// singletons.  R1 is the mate that appears first in coordinate order.
type Fragment struct {
	Stem string
	R1   *sam.Record
	R2   *sam.Record
}

// Reads returns the one or two reads of the fragment.
func (f Fragment) Reads() []*sam.Record {
	if f.R2 == nil {
		return []*sam.Record{f.R1}
	}
	return []*sam.Record{f.R1, f.R2}
}

// Evidence walks each read of the fragment.  Reads that cannot be walked are
// logged and left out.
func (f Fragment) Evidence(ref string, opts align.WalkOpts) []*align.Evidence {
	var evs []*align.Evidence
	for _, rec := range f.Reads() {
		ev, err := align.Walk(bamprovider.NewRead(rec), ref, opts)
		if err != nil {
			log.Debug.Printf("%s: skipping read: %v", rec.Name, err)
			continue
		}
		evs = append(evs, ev)
	}
	return evs
}

// Stem returns the query name without its /1 or /2 mate suffix.
func Stem(name string) string {
	if strings.HasSuffix(name, "/1") || strings.HasSuffix(name, "/2") {
		return name[:len(name)-2]
	}
	return name
}

// Scan calls fn once for every fragment with a read overlapping region.  The
// region is read twice: the first pass counts the reads of each stem, the
// second emits singletons as they are seen and pairs when the second mate
// arrives.  Stems seen more than twice are emitted in pairs, and a leftover
// read is emitted alone at the end.
func Scan(p bamprovider.Provider, region interval.Entry, opts Opts, fn func(Fragment) error) error {
	counts := map[string]int{}
	if err := scanRecords(p, region, opts, func(rec *sam.Record) error {
		counts[Stem(rec.Name)]++
		return nil
	}); err != nil {
		return err
	}
	pending := map[string]*sam.Record{}
	var order []string
	if err := scanRecords(p, region, opts, func(rec *sam.Record) error {
		stem := Stem(rec.Name)
		if counts[stem] == 1 {
			return fn(Fragment{Stem: stem, R1: rec})
		}
		mate, ok := pending[stem]
		if !ok {
			pending[stem] = rec
			order = append(order, stem)
			return nil
		}
		delete(pending, stem)
		return fn(Fragment{Stem: stem, R1: mate, R2: rec})
	}); err != nil {
		return err
	}
	for _, stem := range order {
		if rec, ok := pending[stem]; ok {
			delete(pending, stem)
			if err := fn(Fragment{Stem: stem, R1: rec}); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanRecords calls fn for every usable record overlapping region.
func scanRecords(p bamprovider.Provider, region interval.Entry, opts Opts, fn func(*sam.Record) error) error {
	iter := p.NewIterator(region.RefName, region.Start0, region.End)
	for iter.Scan() {
		rec := iter.Record()
		if rec.Flags&opts.SkipFlags != 0 {
			continue
		}
		if err := fn(rec); err != nil {
			iter.Close() // nolint: errcheck
			return err
		}
	}
	return iter.Close()
}
