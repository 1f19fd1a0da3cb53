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

package main

import (
	"fmt"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/covar/covariant"
	"github.com/grailbio/covar/encoding/bamprovider"
	"github.com/grailbio/covar/encoding/fasta"
	"github.com/grailbio/covar/gene"
	"github.com/grailbio/covar/interval"
	"github.com/grailbio/covar/translate"
	"v.io/x/lib/cmdline"
)

type covariantsFlags struct {
	ref, gff, region, index, out string
	sortBy, coverage             string
	opts                         covariant.Opts
}

func newCmdCovariants() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "covariants",
		Short:    "Count the patterns of mutations that co-occur on fragments",
		ArgsName: "in.bam",
		Long: `
Covariants walks every fragment overlapping the region, labels its mutations
with their amino-acid effect, and writes one line per distinct pattern:

  Covariants  Count  Coverage_start  Coverage_end

Coverage_start and Coverage_end delimit the 0-based, half-open reference span
of the fragments carrying the pattern.`,
	}
	flags := covariantsFlags{opts: covariant.DefaultOpts}
	cmd.Flags.StringVar(&flags.ref, "ref", "", "Reference FASTA path")
	cmd.Flags.StringVar(&flags.gff, "gff", "", "Gene annotation GFF3 path")
	cmd.Flags.StringVar(&flags.region, "region", "", `Region to scan, as 'chr:start-end' (1-based, closed), 'chr:pos' or 'chr'.
By default, the whole reference.`)
	cmd.Flags.StringVar(&flags.index, "index", "", indexFlagHelp)
	cmd.Flags.StringVar(&flags.out, "out", "", "Output TSV path. A .gz suffix compresses the output")
	cmd.Flags.IntVar(&flags.opts.MinQual, "min-quality", covariant.DefaultOpts.MinQual, "Minimum base quality")
	cmd.Flags.IntVar(&flags.opts.MinCount, "min-count", covariant.DefaultOpts.MinCount,
		"Minimum number of fragments carrying a pattern")
	cmd.Flags.BoolVar(&flags.opts.SpansRegion, "spans-region", false,
		"Only count fragments that cover the whole region")
	cmd.Flags.StringVar(&flags.sortBy, "sort-by", "count", "Row order: count or site")
	cmd.Flags.StringVar(&flags.coverage, "coverage", "overwrite", `How to combine the coverage of fragments sharing a pattern:
overwrite keeps the last fragment's span, envelope keeps the smallest span containing all of them`)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("covariants takes one BAM file, but got %v", argv)
		}
		return runCovariants(flags, argv[0])
	})
	return cmd
}

func runCovariants(flags covariantsFlags, bamPath string) (err error) {
	if flags.ref == "" || flags.gff == "" || flags.out == "" {
		return fmt.Errorf("covariants: -ref, -gff and -out must be set")
	}
	opts := flags.opts
	if opts.SortBy, err = covariant.ParseSortKey(flags.sortBy); err != nil {
		return err
	}
	if opts.Coverage, err = covariant.ParseCoverageMode(flags.coverage); err != nil {
		return err
	}
	ctx := vcontext.Background()
	refName, refSeq, err := fasta.LoadReference(ctx, flags.ref)
	if err != nil {
		return err
	}
	genes, err := gene.ReadGFF(ctx, flags.gff, refName)
	if err != nil {
		return err
	}
	if len(genes.Genes()) == 0 {
		log.Error.Printf("%s: no genes for reference %s; mutations keep nucleotide labels", flags.gff, refName)
	}
	region, err := scanRegion(flags.region, refName, len(refSeq))
	if err != nil {
		return err
	}

	p := bamprovider.NewProvider(bamPath, bamprovider.ProviderOpts{Index: flags.index})
	defer func() {
		if e := p.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if err = p.CheckIndex(); err != nil {
		return err
	}
	tr := &translate.Translator{Ref: refSeq, Genes: genes}
	rows, err := covariant.Run(p, tr, region, opts)
	if err != nil {
		return err
	}
	if err = covariant.WriteFile(ctx, flags.out, rows); err != nil {
		return err
	}
	log.Printf("covariants: wrote %d patterns for %v to %s", len(rows), region, flags.out)
	return nil
}

// scanRegion parses the -region flag.  The region must lie on the reference
// sequence refName; an empty flag means all of it.
func scanRegion(flag, refName string, refLen int) (interval.Entry, error) {
	if flag == "" {
		return interval.Entry{RefName: refName, Start0: 0, End: refLen}, nil
	}
	region, err := interval.ParseRegionString(flag)
	if err != nil {
		return interval.Entry{}, err
	}
	if region.RefName != refName {
		return interval.Entry{}, errors.E(errors.Invalid,
			fmt.Sprintf("region %v is not on reference %s", region, refName))
	}
	return region, nil
}

func newCmdMatrix() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "covariant-matrix",
		Short:    "Convert a covariants table into a pattern-by-mutation matrix",
		ArgsName: "covariants.tsv",
		Long: `
Covariant-matrix writes one row per pattern and one column per mutation.  A
cell is 1 if the pattern carries the mutation, 0.5 if the mutation's site lies
within the pattern's coverage, and 0 otherwise.`,
	}
	opts := covariant.MatrixOpts{}
	cmd.Flags.IntVar(&opts.MinMutations, "min-mutations", 1, "Minimum number of mutations in a pattern")
	cmd.Flags.BoolVar(&opts.NucleotideLabels, "nt-muts", false, "Name columns by nucleotide and amino-acid label")
	out := cmd.Flags.String("out", "", "Output TSV path")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("covariant-matrix takes one covariants file, but got %v", argv)
		}
		if *out == "" {
			return fmt.Errorf("covariant-matrix: -out must be set")
		}
		ctx := vcontext.Background()
		rows, err := covariant.ReadFile(ctx, argv[0])
		if err != nil {
			return err
		}
		m, err := covariant.NewMatrix(rows, opts)
		if err != nil {
			return err
		}
		if err := m.WriteFile(ctx, *out); err != nil {
			return err
		}
		log.Printf("covariant-matrix: wrote %d rows and %d columns to %s", len(m.Rows), len(m.Columns), *out)
		return nil
	})
	return cmd
}

func newCmdIndex() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "index",
		Short:    "Write the BAI index of a coordinate-sorted BAM file",
		ArgsName: "in.bam",
	}
	out := cmd.Flags.String("out", "", "Output index path. By default set to input bampath + .bai")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("index takes one BAM file, but got %v", argv)
		}
		n, err := bamprovider.WriteIndex(vcontext.Background(), argv[0], *out)
		if err != nil {
			return err
		}
		log.Printf("index: indexed %d records of %s", n, argv[0])
		return nil
	})
	return cmd
}
