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

package selector

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/covar/encoding/bamprovider"
	"github.com/grailbio/covar/interval"
	"github.com/grailbio/covar/mutation"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// openProvider opens bamPath and verifies that it has an index.
func openProvider(bamPath string, opts Opts) (*bamprovider.BAMProvider, *sam.Header, error) {
	p := bamprovider.NewProvider(bamPath, bamprovider.ProviderOpts{Index: opts.Index})
	if err := p.CheckIndex(); err != nil {
		p.Close() // nolint: errcheck
		return nil, nil, err
	}
	header, err := p.GetHeader()
	if err != nil {
		p.Close() // nolint: errcheck
		return nil, nil, err
	}
	return p, header, nil
}

// writeBAM creates outPath with header and calls fn with its writer.
func writeBAM(ctx context.Context, outPath string, header *sam.Header, fn func(w *bam.Writer) (int, error)) (n int, err error) {
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return 0, err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		return 0, errors.E(err, outPath)
	}
	n, err = fn(w)
	if e := w.Close(); e != nil && err == nil {
		err = errors.E(e, outPath)
	}
	return n, err
}

// reference returns the reference named name in header, or the first one if
// name is "".
func reference(header *sam.Header, bamPath, name string) (*sam.Reference, error) {
	if name == "" {
		refs := header.Refs()
		if len(refs) == 0 {
			return nil, errors.E(errors.Invalid, bamPath, "has no reference sequences")
		}
		return refs[0], nil
	}
	ref := bamprovider.RefByName(header, name)
	if ref == nil {
		return nil, errors.E(errors.Invalid, bamPath, "has no reference", name)
	}
	return ref, nil
}

// Extract writes the fragments of bamPath that carry the mutations of q to
// outPath, and returns the number of records written.  Queried sites refer
// to opts.RefName, or the first reference of the BAM header if it is
// empty.  The output covers the range
// from the first to the last queried site.
func Extract(ctx context.Context, bamPath, outPath string, q *mutation.Query, opts Opts) (n int, err error) {
	p, header, err := openProvider(bamPath, opts)
	if err != nil {
		return 0, err
	}
	defer func() {
		if e := p.Close(); e != nil && err == nil {
			err = e
		}
	}()
	ref, err := reference(header, bamPath, opts.RefName)
	if err != nil {
		return 0, err
	}
	sel, err := Select(p, ref.Name(), q, opts)
	if err != nil {
		return 0, err
	}
	log.Printf("%s: %d fragments carry the queried mutations", bamPath, len(sel))
	return writeBAM(ctx, outPath, header, func(w *bam.Writer) (int, error) {
		region, ok := SiteRange(ref.Name(), q)
		if !ok {
			return 0, nil
		}
		return Emit(p, region, sel.Contains, w)
	})
}

// Filter writes the records of bamPath overlapping region, except those of
// fragments carrying the mutations of q, to outPath.  It returns the number
// of records written.  An empty region.RefName means the whole of
// opts.RefName, or of the first reference if that is empty too.
func Filter(ctx context.Context, bamPath, outPath string, q *mutation.Query, region interval.Entry, opts Opts) (n int, err error) {
	p, header, err := openProvider(bamPath, opts)
	if err != nil {
		return 0, err
	}
	defer func() {
		if e := p.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if region.RefName == "" {
		ref, err := reference(header, bamPath, opts.RefName)
		if err != nil {
			return 0, err
		}
		region = interval.Entry{RefName: ref.Name(), Start0: 0, End: ref.Len()}
	} else if _, err := reference(header, bamPath, region.RefName); err != nil {
		return 0, err
	}
	sel, err := Select(p, region.RefName, q, opts)
	if err != nil {
		return 0, err
	}
	log.Printf("%s: excluding %d fragments", bamPath, len(sel))
	return writeBAM(ctx, outPath, header, func(w *bam.Writer) (int, error) {
		return Emit(p, region, func(stem string) bool { return !sel.Contains(stem) }, w)
	})
}
