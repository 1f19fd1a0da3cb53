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

// bio-covariants finds and counts co-occurring mutations in the reads of a
// coordinate-sorted, indexed BAM file aligned to a single reference.
//
//   bio-covariants extract -out out.bam query.txt in.bam
//   bio-covariants filter -region chr:1-29903 -out out.bam query.txt in.bam
//   bio-covariants covariants -ref ref.fa -gff genes.gff -region chr:21563-25384 -out covariants.tsv in.bam
//   bio-covariants covariant-matrix -out matrix.tsv covariants.tsv
//   bio-covariants index in.bam
//
// A query file lists up to three lines: SNPs such as "C241T, A23403G",
// insertions such as "(22204:'GAGCCAGAA')" and deletions such as
// "(21765:6), (28248:6)".  Positions are 1-based; insertion and deletion
// positions name the base preceding the event.
package main

import (
	"os"

	"github.com/grailbio/base/grail"
	"v.io/x/lib/cmdline"
)

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-covariants",
		Short:    "Find and count co-occurring mutations in BAM reads",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdExtract(),
			newCmdFilter(),
			newCmdCovariants(),
			newCmdMatrix(),
			newCmdIndex(),
		},
	}
}

func main() {
	shutdown := grail.Init()
	cmdline.HideGlobalFlagsExcept()
	err := cmdline.ParseAndRun(newCmdRoot(), cmdline.EnvFromOS(), os.Args[1:])
	shutdown()
	os.Exit(cmdline.ExitCode(err, os.Stderr))
}
