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

// Package gene maps reference positions to the genes that contain them.
package gene

import (
	"fmt"

	"github.com/biogo/store/interval"
)

// Position is the extent of one gene.  Start and End are 1-based and
// inclusive.
type Position struct {
	Name  string
	Start int
	End   int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:(%d,%d)", p.Name, p.Start, p.End)
}

// geneInterval adapts a Position to interval.IntInterface.  The tree stores
// the half-open range [Start, End+1).
type geneInterval struct {
	pos     Position
	ordinal int
}

func (g *geneInterval) Range() interval.IntRange {
	return interval.IntRange{Start: g.pos.Start, End: g.pos.End + 1}
}

func (g *geneInterval) ID() uintptr { return uintptr(g.ordinal) }

func (g *geneInterval) Overlap(r interval.IntRange) bool {
	return g.pos.Start < r.End && r.Start < g.pos.End+1
}

// locusQuery is a one-base query against the tree.
type locusQuery int

func (q locusQuery) Overlap(r interval.IntRange) bool {
	return r.Start <= int(q) && int(q) < r.End
}

// Index answers containment queries over a fixed set of genes.  Immutable
// after construction, and safe for concurrent use.
type Index struct {
	genes  []Position
	byName map[string]int
	tree   interval.IntTree
}

// NewIndex builds an index over genes.  When several genes contain a locus,
// the one listed first wins.
func NewIndex(genes []Position) (*Index, error) {
	x := &Index{
		genes:  append([]Position(nil), genes...),
		byName: make(map[string]int, len(genes)),
	}
	for i, g := range x.genes {
		if g.Start <= 0 || g.End < g.Start {
			return nil, fmt.Errorf("gene.NewIndex: invalid extent for %v", g)
		}
		if _, ok := x.byName[g.Name]; ok {
			return nil, fmt.Errorf("gene.NewIndex: duplicate gene %s", g.Name)
		}
		x.byName[g.Name] = i
		if err := x.tree.Insert(&geneInterval{pos: g, ordinal: i}, true); err != nil {
			return nil, fmt.Errorf("gene.NewIndex: %v: %v", g, err)
		}
	}
	x.tree.AdjustRanges()
	return x, nil
}

// GeneFor returns the gene containing the 1-based locus.
func (x *Index) GeneFor(locus int) (Position, bool) {
	if x == nil || len(x.genes) == 0 {
		return Position{}, false
	}
	hits := x.tree.Get(locusQuery(locus))
	if len(hits) == 0 {
		return Position{}, false
	}
	best := hits[0].(*geneInterval)
	for _, h := range hits[1:] {
		if g := h.(*geneInterval); g.ordinal < best.ordinal {
			best = g
		}
	}
	return best.pos, true
}

// Lookup returns the gene with the given name.
func (x *Index) Lookup(name string) (Position, bool) {
	i, ok := x.byName[name]
	if !ok {
		return Position{}, false
	}
	return x.genes[i], true
}

// Genes returns the genes in definition order.  The caller must not modify
// the result.
func (x *Index) Genes() []Position { return x.genes }
