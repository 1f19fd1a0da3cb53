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
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokNumber
	tokQuoted
	tokLParen
	tokRParen
	tokComma
	tokColon
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of line"
	case tokWord:
		return "word"
	case tokNumber:
		return "number"
	case tokQuoted:
		return "quoted sequence"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	case tokColon:
		return "':'"
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	text string
}

// lexer splits one line of a query file into tokens.
type lexer struct {
	src string
	pos int
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\r') {
		l.pos++
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{tokLParen, "("}, nil
	case c == ')':
		l.pos++
		return token{tokRParen, ")"}, nil
	case c == ',':
		l.pos++
		return token{tokComma, ","}, nil
	case c == ':':
		l.pos++
		return token{tokColon, ":"}, nil
	case c == '\'' || c == '"':
		end := strings.IndexByte(l.src[l.pos+1:], c)
		if end < 0 {
			return token{}, fmt.Errorf("unterminated quote")
		}
		text := l.src[l.pos+1 : l.pos+1+end]
		l.pos += end + 2
		return token{tokQuoted, text}, nil
	case c >= '0' && c <= '9':
		start := l.pos
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
		return token{tokNumber, l.src[start:l.pos]}, nil
	case unicode.IsLetter(rune(c)):
		start := l.pos
		for l.pos < len(l.src) && unicode.IsLetter(rune(l.src[l.pos])) {
			l.pos++
		}
		return token{tokWord, l.src[start:l.pos]}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q", c)
}

// tokenize returns all tokens on the line, excluding the trailing EOF.
func tokenize(line string) ([]token, error) {
	l := lexer{src: line}
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, &QueryParseError{Token: line[l.pos:], Reason: err.Error()}
		}
		if t.kind == tokEOF {
			return toks, nil
		}
		toks = append(toks, t)
	}
}
