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

// Package covariant counts the patterns of mutations that co-occur on the
// fragments of a region.
//
// Each fragment contributes one pattern: the nucleotide and amino-acid labels
// of all mutations on its reads, deduplicated and sorted by position.  The
// resulting table lists each distinct pattern with its count and the
// coverage span of the fragments that carried it.
package covariant

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/covar/align"
	"github.com/grailbio/covar/encoding/bamprovider"
	"github.com/grailbio/covar/fragment"
	"github.com/grailbio/covar/interval"
	"github.com/grailbio/covar/translate"
)

// SortKey orders the rows of the covariants table.
type SortKey int

const (
	// SortByCount orders patterns by decreasing count.
	SortByCount SortKey = iota
	// SortBySite orders patterns by the position of their first mutation.
	SortBySite
)

// ParseSortKey parses "count" or "site".
func ParseSortKey(s string) (SortKey, error) {
	switch s {
	case "count":
		return SortByCount, nil
	case "site":
		return SortBySite, nil
	}
	return 0, fmt.Errorf("covariant: unknown sort key %q, want count or site", s)
}

// CoverageMode defines how the coverage span of a recurring pattern is
// computed.
type CoverageMode int

const (
	// CoverageOverwrite keeps the span of the most recent fragment.
	CoverageOverwrite CoverageMode = iota
	// CoverageEnvelope keeps the smallest span containing every fragment.
	CoverageEnvelope
)

// ParseCoverageMode parses "overwrite" or "envelope".
func ParseCoverageMode(s string) (CoverageMode, error) {
	switch s {
	case "overwrite":
		return CoverageOverwrite, nil
	case "envelope":
		return CoverageEnvelope, nil
	}
	return 0, fmt.Errorf("covariant: unknown coverage mode %q, want overwrite or envelope", s)
}

// Opts configures the aggregation.
type Opts struct {
	// MinQual is the minimum base quality; see align.WalkOpts.
	MinQual int
	// MinCount drops patterns seen on fewer fragments.
	MinCount int
	// SpansRegion drops fragments that do not cover the whole region.
	SpansRegion bool
	SortBy      SortKey
	Coverage    CoverageMode
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{
	MinQual:  20,
	MinCount: 10,
	SortBy:   SortByCount,
	Coverage: CoverageOverwrite,
}

// Pattern is one row of the covariants table.
type Pattern struct {
	// Key is the space-joined list of Mutations.
	Key       string
	Mutations []string
	Count     int
	// CoverageStart and CoverageEnd delimit the 0-based half-open reference
	// span of the fragments carrying the pattern.
	CoverageStart int
	CoverageEnd   int
	// FirstLocus is the position printed in the first mutation label.
	FirstLocus int
}

// Locus returns the position printed in the nucleotide part of a mutation
// label: 150 for "T150A(S:...)", "(150,'AAA')" or "(150,6)(...)".
func Locus(label string) (int, error) {
	var digits string
	if strings.HasPrefix(label, "(") {
		end := strings.IndexByte(label, ',')
		if end < 0 {
			return 0, fmt.Errorf("covariant: malformed indel label %q", label)
		}
		digits = label[1:end]
	} else {
		end := 1
		for end < len(label) && label[end] >= '0' && label[end] <= '9' {
			end++
		}
		digits = label[1:end]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("covariant: malformed label %q", label)
	}
	return n, nil
}

// site returns the 0-based reference position of the mutation in label: the
// SNP base, the base preceding an insertion, or the first deleted base.
func site(label string) (int, error) {
	locus, err := Locus(label)
	if err != nil {
		return 0, err
	}
	if i := strings.IndexByte(label, ','); strings.HasPrefix(label, "(") && i+1 < len(label) && label[i+1] != '\'' {
		// Deletions print their 0-based first deleted base.
		return locus, nil
	}
	return locus - 1, nil
}

// Aggregator accumulates the patterns of one region scan.  Thread
// compatible.
type Aggregator struct {
	tr       *translate.Translator
	region   interval.Entry
	opts     Opts
	patterns map[string]*Pattern
	order    []*Pattern
}

// NewAggregator creates an aggregator for fragments overlapping region.
func NewAggregator(tr *translate.Translator, region interval.Entry, opts Opts) *Aggregator {
	return &Aggregator{
		tr:       tr,
		region:   region,
		opts:     opts,
		patterns: map[string]*Pattern{},
	}
}

// AddFragment walks the reads of f and adds the resulting pattern.
func (a *Aggregator) AddFragment(f fragment.Fragment) {
	a.Add(f.Evidence(a.tr.Ref, align.WalkOpts{MinQual: a.opts.MinQual}))
}

// Add adds the pattern formed by the evidence of one fragment's reads.
// Fragments without mutations, or without usable reads, contribute nothing.
func (a *Aggregator) Add(evs []*align.Evidence) {
	if len(evs) == 0 {
		return
	}
	covStart, covEnd := evs[0].Start, evs[0].End
	// Mutations are keyed by their nucleotide part, so that mates disagreeing
	// only on translation contribute one label, the translated one.
	seen := map[string]int{}
	var muts []translate.Annotated
	for _, ev := range evs {
		if ev.Start < covStart {
			covStart = ev.Start
		}
		if ev.End > covEnd {
			covEnd = ev.End
		}
		for _, m := range a.tr.Annotate(ev) {
			i, ok := seen[m.Nucleotide]
			switch {
			case !ok:
				seen[m.Nucleotide] = len(muts)
				muts = append(muts, m)
			case m.Translated() && !muts[i].Translated():
				muts[i] = m
			}
		}
	}
	if a.opts.SpansRegion && !a.region.ContainedIn(covStart, covEnd) {
		return
	}
	if len(muts) == 0 {
		return
	}
	sort.Slice(muts, func(i, j int) bool {
		if muts[i].Locus != muts[j].Locus {
			return muts[i].Locus < muts[j].Locus
		}
		return muts[i].Label < muts[j].Label
	})
	labels := make([]string, len(muts))
	for i, m := range muts {
		labels[i] = m.Label
	}
	key := strings.Join(labels, " ")
	p, ok := a.patterns[key]
	if !ok {
		p = &Pattern{
			Key:           key,
			Mutations:     labels,
			CoverageStart: covStart,
			CoverageEnd:   covEnd,
			FirstLocus:    muts[0].Locus,
		}
		a.patterns[key] = p
		a.order = append(a.order, p)
	}
	p.Count++
	switch a.opts.Coverage {
	case CoverageEnvelope:
		if covStart < p.CoverageStart {
			p.CoverageStart = covStart
		}
		if covEnd > p.CoverageEnd {
			p.CoverageEnd = covEnd
		}
	default:
		p.CoverageStart, p.CoverageEnd = covStart, covEnd
	}
}

// Table returns the patterns seen at least MinCount times, sorted per
// Opts.SortBy.  Ties keep the order in which patterns were first seen.
func (a *Aggregator) Table() []Pattern {
	var rows []Pattern
	for _, p := range a.order {
		if p.Count >= a.opts.MinCount {
			rows = append(rows, *p)
		}
	}
	SortPatterns(rows, a.opts.SortBy)
	return rows
}

// SortPatterns sorts rows in place.  The sort is stable.
func SortPatterns(rows []Pattern, key SortKey) {
	switch key {
	case SortBySite:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].FirstLocus < rows[j].FirstLocus })
	default:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	}
}

// Run scans the fragments overlapping region and returns the covariants
// table.
func Run(p bamprovider.Provider, tr *translate.Translator, region interval.Entry, opts Opts) ([]Pattern, error) {
	agg := NewAggregator(tr, region, opts)
	if err := fragment.Scan(p, region, fragment.DefaultOpts, func(f fragment.Fragment) error {
		agg.AddFragment(f)
		return nil
	}); err != nil {
		return nil, err
	}
	return agg.Table(), nil
}
