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

package gene

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// gffRecord is one line of a GFF3 file.
type gffRecord struct {
	SeqID      string
	Source     string
	Type       string
	Start      int
	End        int
	Score      string
	Strand     string
	Phase      string
	Attributes string
}

// orfSplit describes a polyprotein gene that is replaced by its two
// translated frames on a known reference.
type orfSplit struct {
	whole string
	parts []Position
}

// orfSplits is keyed by reference name.  ORF1ab of SARS-CoV-2 is translated
// as ORF1a, or as ORF1b after the ribosomal frameshift at 13468.
var orfSplits = map[string]orfSplit{
	"NC_045512.2": {
		whole: "ORF1ab",
		parts: []Position{{"ORF1a", 266, 13468}, {"ORF1b", 13468, 21555}},
	},
	"MN908947.3": {
		whole: "orf1ab",
		parts: []Position{{"orf1a", 266, 13468}, {"orf1b", 13468, 21555}},
	},
}

// geneName returns the value of the gene= attribute.
func geneName(attrs string) (string, bool) {
	for _, attr := range strings.Split(attrs, ";") {
		attr = strings.TrimSpace(attr)
		if strings.HasPrefix(attr, "gene=") {
			return strings.TrimPrefix(attr, "gene="), true
		}
	}
	return "", false
}

// Parse reads a GFF3 stream and indexes its gene records.  Every row of type
// "gene" with a gene= attribute contributes; a later row for the same name
// replaces the extent of an earlier one but keeps its place in the
// definition order.  For refName NC_045512.2 (or MN908947.3) the ORF1ab
// (orf1ab) gene is replaced by its two frames.
func Parse(r io.Reader, refName string) (*Index, error) {
	var (
		genes  []Position
		byName = map[string]int{}
	)
	scanner := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	scanner.Comment = '#'
	scanner.LazyQuotes = true
	var rec gffRecord
	for {
		if err := scanner.Read(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, "gene.Parse", err)
		}
		if rec.Type != "gene" {
			continue
		}
		name, ok := geneName(rec.Attributes)
		if !ok {
			continue
		}
		pos := Position{Name: name, Start: rec.Start, End: rec.End}
		if i, ok := byName[name]; ok {
			genes[i] = pos
			continue
		}
		byName[name] = len(genes)
		genes = append(genes, pos)
	}
	if split, ok := orfSplits[refName]; ok {
		if i, ok := byName[split.whole]; ok {
			genes = append(genes[:i:i], genes[i+1:]...)
			genes = append(genes, split.parts...)
		}
	}
	return NewIndex(genes)
}

// ReadGFF reads the GFF3 file at path; see Parse.
func ReadGFF(ctx context.Context, path, refName string) (x *Index, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	if x, err = Parse(inr, refName); err != nil {
		return nil, errors.E(err, path)
	}
	return x, nil
}
