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

package covariant

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

var tableHeader = []string{"Covariants", "Count", "Coverage_start", "Coverage_end"}

// WriteTSV writes rows as a tab-separated table with a header line.
func WriteTSV(w io.Writer, rows []Pattern) (err error) {
	tsvw := tsv.NewWriter(w)
	for _, col := range tableHeader {
		tsvw.WriteString(col)
	}
	if err = tsvw.EndLine(); err != nil {
		return
	}
	for _, row := range rows {
		tsvw.WriteString(row.Key)
		tsvw.WriteInt64(int64(row.Count))
		tsvw.WriteInt64(int64(row.CoverageStart))
		tsvw.WriteInt64(int64(row.CoverageEnd))
		if err = tsvw.EndLine(); err != nil {
			return
		}
	}
	return tsvw.Flush()
}

// createOutput creates path and calls fn with a writer for it.  Paths ending
// in ".gz" are gzip-compressed.
func createOutput(ctx context.Context, path string, fn func(w io.Writer) error) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, dst, &err)
	var w io.Writer = dst.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		defer func() {
			if e := gz.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = gz
	}
	bw := bufio.NewWriterSize(w, 64<<10)
	if err = fn(bw); err != nil {
		return
	}
	return bw.Flush()
}

// WriteFile writes rows to path; see WriteTSV.  Paths ending in ".gz" are
// gzip-compressed.
func WriteFile(ctx context.Context, path string, rows []Pattern) error {
	if err := createOutput(ctx, path, func(w io.Writer) error { return WriteTSV(w, rows) }); err != nil {
		return errors.E(err, "writing", path)
	}
	return nil
}

// tableRecord is one line of a covariants table.  Numeric columns are read as
// text so that the header line parses.
type tableRecord struct {
	Covariants    string
	Count         string
	CoverageStart string
	CoverageEnd   string
}

// ReadTSV reads a table written by WriteTSV.
func ReadTSV(r io.Reader) ([]Pattern, error) {
	scanner := tsv.NewReader(bufio.NewReaderSize(r, 64<<10))
	scanner.LazyQuotes = true
	var (
		rec  tableRecord
		rows []Pattern
		line int
	)
	for {
		if err := scanner.Read(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, err)
		}
		line++
		if line == 1 && rec.Covariants == tableHeader[0] {
			continue
		}
		p := Pattern{Key: rec.Covariants, Mutations: strings.Fields(rec.Covariants)}
		if len(p.Mutations) == 0 {
			return nil, errors.E(errors.Invalid, "line", strconv.Itoa(line), "has no mutations")
		}
		var err error
		if p.Count, err = strconv.Atoi(rec.Count); err != nil {
			return nil, errors.E(errors.Invalid, err, "line", strconv.Itoa(line))
		}
		if p.CoverageStart, err = strconv.Atoi(rec.CoverageStart); err != nil {
			return nil, errors.E(errors.Invalid, err, "line", strconv.Itoa(line))
		}
		if p.CoverageEnd, err = strconv.Atoi(rec.CoverageEnd); err != nil {
			return nil, errors.E(errors.Invalid, err, "line", strconv.Itoa(line))
		}
		if p.FirstLocus, err = Locus(p.Mutations[0]); err != nil {
			return nil, errors.E(errors.Invalid, err, "line", strconv.Itoa(line))
		}
		rows = append(rows, p)
	}
	return rows, nil
}

// ReadFile reads a covariants table from path.  Compressed files are
// decompressed transparently.
func ReadFile(ctx context.Context, path string) (rows []Pattern, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	if rows, err = ReadTSV(inr); err != nil {
		return nil, errors.E(err, path)
	}
	return rows, nil
}
