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
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// MissingIndexError is reported when the BAM index cannot be read.
type MissingIndexError struct {
	// Path is the BAM file.
	Path string
	// Index lists the index paths that were tried.
	Index []string
	Err   error
}

// Error implements the error interface.
func (e *MissingIndexError) Error() string {
	return fmt.Sprintf("%s: missing index (tried %s: %v); try running 'samtools index %s' or 'bio-covariants index %s'",
		e.Path, strings.Join(e.Index, ", "), e.Err, e.Path, e.Path)
}

// Unwrap returns the underlying error.
func (e *MissingIndexError) Unwrap() error { return e.Err }

// BAMProvider implements Provider for BAM files.  Both BAM and the index
// filenames are allowed to be S3 URLs, in which case the data will be read from
// S3. Otherwise the data will be read from the local filesystem.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of *.bam.bai file. If "", see ProviderOpts.Index.
	Index string
	err   errors.Once

	mu        sync.Mutex
	nActive   int
	freeIters []*bamIterator
	header    *sam.Header
	index     *bam.Index
	indexErr  error
}

type bamIterator struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader
	// Reference and half-open position range to read.
	ref          *sam.Reference
	start, limit int

	active bool
	err    error
	next   *sam.Record
}

// NewProvider creates a Provider for the BAM file at path.
func NewProvider(path string, optList ...ProviderOpts) *BAMProvider {
	opts := mergeOpts(optList)
	return &BAMProvider{Path: path, Index: opts.Index}
}

func (b *BAMProvider) indexPaths() []string {
	if b.Index != "" {
		return []string{b.Index}
	}
	paths := []string{b.Path + ".bai"}
	if strings.HasSuffix(b.Path, ".bam") {
		paths = append(paths, strings.TrimSuffix(b.Path, ".bam")+".bai")
	}
	return paths
}

// loadIndex reads the index once.  REQUIRES: b.mu is held.
func (b *BAMProvider) loadIndex(ctx context.Context) (*bam.Index, error) {
	if b.index != nil || b.indexErr != nil {
		return b.index, b.indexErr
	}
	paths := b.indexPaths()
	var lastErr error
	for _, path := range paths {
		in, err := file.Open(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}
		idx, err := bam.ReadIndex(in.Reader(ctx))
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
		if err != nil {
			lastErr = err
			continue
		}
		vlog.VI(1).Infof("%v: using index %v", b.Path, path)
		b.index = idx
		return idx, nil
	}
	b.indexErr = &MissingIndexError{Path: b.Path, Index: paths, Err: lastErr}
	return nil, b.indexErr
}

// CheckIndex returns a *MissingIndexError if the BAM index cannot be read.
func (b *BAMProvider) CheckIndex() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.loadIndex(vcontext.Background())
	return err
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}

	ctx := vcontext.Background()
	reader, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer reader.Close(ctx)
	bamReader, err := bam.NewReader(reader.Reader(ctx), 1)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer bamReader.Close()
	b.header = bamReader.Header()
	return b.header, nil
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	if b.nActive > 0 {
		vlog.Fatalf("%d iterators still active for %+v", b.nActive, b)
	}
	for _, iter := range b.freeIters {
		iter.internalClose()
	}
	b.freeIters = nil
	return b.err.Err()
}

func (b *BAMProvider) freeIterator(i *bamIterator) {
	if !i.active {
		vlog.Fatal(i)
	}
	i.active = false
	if i.Err() != nil || i.reader == nil {
		// The iter may be invalid. Don't reuse it.
		i.internalClose() // Will set b.err
		i = nil
	}
	b.mu.Lock()
	if i != nil {
		b.freeIters = append(b.freeIters, i)
	}
	b.nActive--
	if b.nActive < 0 {
		vlog.Fatalf("Negative active count for %+v", b)
	}
	b.mu.Unlock()
}

// Return an unused iterator. If b.freeIters is nonempty, this function returns
// one from freeIters. Else, it opens the BAM file, creates a BAM reader and
// returns an iterator containing them. On error, returns an iterator with
// non-nil err field.
func (b *BAMProvider) allocateIterator() *bamIterator {
	b.mu.Lock()
	b.nActive++
	if len(b.freeIters) > 0 {
		iter := b.freeIters[len(b.freeIters)-1]
		iter.active = true
		iter.err = nil
		iter.next = nil
		b.freeIters = b.freeIters[:len(b.freeIters)-1]
		b.mu.Unlock()
		return iter
	}
	ctx := vcontext.Background()
	_, indexErr := b.loadIndex(ctx)
	b.mu.Unlock()

	iter := bamIterator{
		provider: b,
		active:   true,
	}
	if iter.err = indexErr; iter.err != nil {
		return &iter
	}
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		return &iter
	}
	iter.reader, iter.err = bam.NewReader(iter.in.Reader(ctx), 1)
	return &iter
}

// NewIterator implements the Provider interface.
func (b *BAMProvider) NewIterator(refName string, start, limit int) Iterator {
	iter := b.allocateIterator()
	if iter.err != nil {
		return iter
	}
	iter.reset(refName, start, limit)
	return iter
}

// Reset the iterator to read records of refName overlapping [start, limit).
func (i *bamIterator) reset(refName string, start, limit int) {
	header := i.reader.Header()
	if i.ref = RefByName(header, refName); i.ref == nil {
		i.err = fmt.Errorf("bamprovider: reference '%s' not found in %s", refName, i.provider.Path)
		return
	}
	if limit > i.ref.Len() {
		limit = i.ref.Len()
	}
	if start < 0 {
		start = 0
	}
	i.start, i.limit = start, limit
	if start >= limit {
		i.err = io.EOF
		return
	}
	i.provider.mu.Lock()
	idx := i.provider.index
	i.provider.mu.Unlock()
	chunks, err := idx.Chunks(i.ref, start, limit)
	if err == index.ErrInvalid || (err == nil && len(chunks) == 0) {
		// No reads for this interval.
		i.err = io.EOF
		return
	}
	if err != nil {
		i.err = err
		return
	}
	i.err = i.reader.Seek(chunks[0].Begin)
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	err := i.Err()
	i.provider.freeIterator(i)
	return err
}

// Scan implements the Iterator interface.
func (i *bamIterator) Scan() bool {
	if !i.active {
		vlog.Fatal("Reusing iterator")
	}
	if i.err != nil {
		return false
	}
	for {
		i.next, i.err = i.reader.Read()
		if i.err != nil {
			return false
		}
		if i.next.Ref == nil || i.next.Ref.ID() != i.ref.ID() || i.next.Pos >= i.limit {
			i.err = io.EOF
			return false
		}
		if overlaps(i.next, i.start, i.limit) {
			return true
		}
	}
}

// Record implements the Iterator interface.
func (i *bamIterator) Record() *sam.Record {
	return i.next
}

func (i *bamIterator) internalClose() {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	i.provider.err.Set(i.Err())
}
