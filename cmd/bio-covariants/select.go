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
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/covar/interval"
	"github.com/grailbio/covar/mutation"
	"github.com/grailbio/covar/selector"
	"v.io/x/lib/cmdline"
)

const indexFlagHelp = "Input BAM index filename. By default set to input bampath + .bai"

func selectorFlags(cmd *cmdline.Command, opts *selector.Opts) {
	cmd.Flags.IntVar(&opts.MinQual, "min-quality", selector.DefaultOpts.MinQual,
		"Minimum base quality for a SNP base to count")
	cmd.Flags.StringVar(&opts.Index, "index", "", indexFlagHelp)
	cmd.Flags.StringVar(&opts.RefName, "refname", "",
		"Reference the queried positions refer to. By default, the first reference in the BAM header")
}

func newCmdExtract() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "extract",
		Short:    "Write the fragments carrying queried mutations to a new BAM file",
		ArgsName: "query in.bam",
		Long: `
Extract writes every read of the fragments that carry the mutations listed in
the query file.  Only reads overlapping the range between the first and the
last queried site are written.`,
	}
	opts := selector.DefaultOpts
	selectorFlags(cmd, &opts)
	cmd.Flags.BoolVar(&opts.SameFragment, "same-fragment", false,
		"Require a fragment to carry every queried mutation, rather than any one of them")
	out := cmd.Flags.String("out", "", "Output BAM path")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("extract takes a query file and a BAM file, but got %v", argv)
		}
		if *out == "" {
			return fmt.Errorf("extract: -out must be set")
		}
		ctx := vcontext.Background()
		q, err := mutation.ReadFile(ctx, argv[0])
		if err != nil {
			return err
		}
		n, err := selector.Extract(ctx, argv[1], *out, q, opts)
		if err != nil {
			return err
		}
		log.Printf("extract: wrote %d records to %s", n, *out)
		return nil
	})
	return cmd
}

func newCmdFilter() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "filter",
		Short:    "Write the reads of fragments without queried mutations to a new BAM file",
		ArgsName: "query in.bam",
	}
	opts := selector.DefaultOpts
	selectorFlags(cmd, &opts)
	region := cmd.Flags.String("region", "", `Region to write, as 'chr:start-end' (1-based, closed), 'chr:pos' or 'chr'.
By default, the whole first reference.`)
	out := cmd.Flags.String("out", "", "Output BAM path")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("filter takes a query file and a BAM file, but got %v", argv)
		}
		if *out == "" {
			return fmt.Errorf("filter: -out must be set")
		}
		var r interval.Entry
		if *region != "" {
			var err error
			if r, err = interval.ParseRegionString(*region); err != nil {
				return err
			}
		}
		ctx := vcontext.Background()
		q, err := mutation.ReadFile(ctx, argv[0])
		if err != nil {
			return err
		}
		n, err := selector.Filter(ctx, argv[1], *out, q, r, opts)
		if err != nil {
			return err
		}
		log.Printf("filter: wrote %d records to %s", n, *out)
		return nil
	})
	return cmd
}
