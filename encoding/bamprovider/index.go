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

package bamprovider

import (
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
)

// WriteIndex builds a BAI index for the coordinate-sorted BAM file at
// bamPath and writes it to indexPath.  If indexPath is "", it defaults to
// bamPath + ".bai".  It returns the number of records indexed.
func WriteIndex(ctx context.Context, bamPath, indexPath string) (n int, err error) {
	if indexPath == "" {
		indexPath = bamPath + ".bai"
	}
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return 0, errors.E(err, bamPath)
	}
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	var idx bam.Index
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.E(err, bamPath)
		}
		if err := idx.Add(rec, reader.LastChunk()); err != nil {
			return n, errors.E(errors.Precondition, err, bamPath, "is the file coordinate-sorted?")
		}
		n++
	}
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return n, err
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err := bam.WriteIndex(out.Writer(ctx), &idx); err != nil {
		return n, errors.E(err, indexPath)
	}
	return n, nil
}
