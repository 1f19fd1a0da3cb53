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

package mutation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
)

// QueryParseError reports a malformed query file.
type QueryParseError struct {
	// Path is the file that was being parsed, or "" for an anonymous reader.
	Path string
	// Line is the 1-based line number of the offending token.
	Line int
	// Token is the text near which parsing failed.
	Token  string
	Reason string
}

// Error implements the error interface.
func (e *QueryParseError) Error() string {
	path := e.Path
	if path == "" {
		path = "<input>"
	}
	msg := fmt.Sprintf("mutation: parse %s:%d: %s", path, e.Line, e.Reason)
	if e.Token != "" {
		msg += fmt.Sprintf(" near %q", e.Token)
	}
	return msg + "; expected SNPs like T150A, insertions like (150:'AAA'), deletions like (150:6)"
}

type lineKind int

const (
	noLine lineKind = iota
	snpLine
	insertionLine
	deletionLine
)

func (k lineKind) String() string {
	switch k {
	case snpLine:
		return "SNP"
	case insertionLine:
		return "insertion"
	case deletionLine:
		return "deletion"
	}
	return "empty"
}

// lineParser parses the items of one tokenized line.
type lineParser struct {
	toks []token
	pos  int

	kind       lineKind
	snps       []SNP
	insertions []Insertion
	deletions  []Deletion
}

func (p *lineParser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *lineParser) advance() token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *lineParser) errorf(t token, format string, args ...interface{}) error {
	return &QueryParseError{Token: t.text, Reason: fmt.Sprintf(format, args...)}
}

func (p *lineParser) expect(kind tokenKind) (token, error) {
	t := p.advance()
	if t.kind != kind {
		return t, p.errorf(t, "expected %v, found %v", kind, t.kind)
	}
	return t, nil
}

func (p *lineParser) setKind(k lineKind, t token) error {
	if p.kind != noLine && p.kind != k {
		return p.errorf(t, "%v mixed into a %v line", k, p.kind)
	}
	p.kind = k
	return nil
}

func parsePos(t token) (int, error) {
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, &QueryParseError{Token: t.text, Reason: "bad position"}
	}
	if n <= 0 {
		return 0, &QueryParseError{Token: t.text, Reason: "positions are 1-based"}
	}
	return n, nil
}

func isBase(s string) bool {
	return len(s) == 1 && strings.ContainsAny(s, "ACGT")
}

func isSequence(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune("ACGTN", rune(s[i])) {
			return false
		}
	}
	return true
}

// parseSNP parses <REF><pos><ALT>.
func (p *lineParser) parseSNP() error {
	ref := p.advance()
	if !isBase(strings.ToUpper(ref.text)) {
		return p.errorf(ref, "bad reference base")
	}
	num, err := p.expect(tokNumber)
	if err != nil {
		return err
	}
	pos, err := parsePos(num)
	if err != nil {
		return err
	}
	alt, err := p.expect(tokWord)
	if err != nil {
		return err
	}
	if !isBase(strings.ToUpper(alt.text)) {
		return p.errorf(alt, "bad alternate base")
	}
	if err := p.setKind(snpLine, ref); err != nil {
		return err
	}
	p.snps = append(p.snps, SNP{
		Pos: pos - 1,
		Ref: strings.ToUpper(ref.text)[0],
		Alt: strings.ToUpper(alt.text)[0],
	})
	return nil
}

// parsePair parses (<pos>:'<seq>') or (<pos>:<len>).  A comma may stand in
// for the colon, which is how the covariants table prints indels.
func (p *lineParser) parsePair() error {
	open := p.advance()
	num, err := p.expect(tokNumber)
	if err != nil {
		return err
	}
	pos, err := parsePos(num)
	if err != nil {
		return err
	}
	if sep := p.advance(); sep.kind != tokColon && sep.kind != tokComma {
		return p.errorf(sep, "expected ':' after position, found %v", sep.kind)
	}
	val := p.advance()
	switch val.kind {
	case tokQuoted, tokWord:
		seq := strings.ToUpper(val.text)
		if !isSequence(seq) {
			return p.errorf(val, "bad inserted sequence")
		}
		if err := p.setKind(insertionLine, open); err != nil {
			return err
		}
		p.insertions = append(p.insertions, Insertion{Pos: pos - 1, Seq: seq})
	case tokNumber:
		n, err := strconv.Atoi(val.text)
		if err != nil || n <= 0 {
			return p.errorf(val, "bad deletion length")
		}
		if err := p.setKind(deletionLine, open); err != nil {
			return err
		}
		p.deletions = append(p.deletions, Deletion{Pos: pos, Len: n})
	default:
		return p.errorf(val, "expected sequence or length, found %v", val.kind)
	}
	if t, err := p.expect(tokRParen); err != nil {
		return p.errorf(t, "unbalanced parenthesis")
	}
	return nil
}

func (p *lineParser) parse() error {
	for {
		t := p.peek()
		switch t.kind {
		case tokEOF:
			return nil
		case tokComma:
			// Empty items, as in a trailing comma, are ignored.
			p.advance()
			continue
		case tokWord:
			if err := p.parseSNP(); err != nil {
				return err
			}
		case tokLParen:
			if err := p.parsePair(); err != nil {
				return err
			}
		default:
			return p.errorf(t, "unexpected %v", t.kind)
		}
		if t := p.peek(); t.kind != tokComma && t.kind != tokEOF {
			return p.errorf(t, "expected ',' between mutations, found %v", t.kind)
		}
	}
}

// Parse reads a query.  The input holds up to three lines: SNPs, insertions
// and deletions, each a comma-separated list.  Lines are recognized by their
// content, so empty categories may be represented by empty lines or omitted.
func Parse(r io.Reader) (*Query, error) {
	var (
		snps       []SNP
		insertions []Insertion
		deletions  []Deletion
		seen       = map[lineKind]int{}
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 64<<20)
	lineno := 0
	for scanner.Scan() {
		lineno++
		toks, err := tokenize(scanner.Text())
		if err == nil {
			p := lineParser{toks: toks}
			if err = p.parse(); err == nil {
				if p.kind == noLine {
					continue
				}
				if prev, ok := seen[p.kind]; ok {
					err = &QueryParseError{Reason: fmt.Sprintf("second %v line, first was line %d", p.kind, prev)}
				} else {
					seen[p.kind] = lineno
					snps = append(snps, p.snps...)
					insertions = append(insertions, p.insertions...)
					deletions = append(deletions, p.deletions...)
				}
			}
		}
		if err != nil {
			if perr, ok := err.(*QueryParseError); ok {
				perr.Line = lineno
			}
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewQuery(snps, insertions, deletions), nil
}

// ReadFile reads a query from the given path.  Compressed files are
// decompressed transparently.
func ReadFile(ctx context.Context, path string) (q *Query, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	reader, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if q, err = Parse(reader); err != nil {
		if perr, ok := err.(*QueryParseError); ok {
			perr.Path = path
		}
		return nil, err
	}
	return q, nil
}
