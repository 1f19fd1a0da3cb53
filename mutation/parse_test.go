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
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestParseSNPToken(t *testing.T) {
	q, err := Parse(strings.NewReader("T150A\n\n\n"))
	assert.NoError(t, err)
	assert.EQ(t, q.SNPs, []SNP{{Pos: 149, Ref: 'T', Alt: 'A'}})
	alt, ok := q.SNPAlt(149)
	expect.True(t, ok)
	expect.EQ(t, alt, byte('A'))
	_, ok = q.SNPAlt(150)
	expect.False(t, ok)
	expect.EQ(t, q.SNPs[0].String(), "T150A")
}

func TestParseAllKinds(t *testing.T) {
	q, err := Parse(strings.NewReader("C241T, A23403G\n(11287:'GTC'),(28262:'AAC')\n(11288:9), (21765:6)\n"))
	assert.NoError(t, err)
	expect.EQ(t, q.SNPs, []SNP{{240, 'C', 'T'}, {23402, 'A', 'G'}})
	expect.EQ(t, q.Insertions, []Insertion{{11286, "GTC"}, {28261, "AAC"}})
	expect.EQ(t, q.Deletions, []Deletion{{11288, 9}, {21765, 6}})
	expect.True(t, q.HasInsertion(Insertion{11286, "GTC"}))
	expect.False(t, q.HasInsertion(Insertion{11286, "GT"}))
	expect.True(t, q.HasDeletion(Deletion{21765, 6}))
	expect.False(t, q.HasDeletion(Deletion{21765, 3}))
	expect.EQ(t, q.Sites(), []int{240, 11286, 11288, 21765, 23402, 28261})
	expect.EQ(t, q.Insertions[0].String(), "(11287,'GTC')")
	expect.EQ(t, q.Deletions[0].String(), "(11288,9)")
}

func TestParseLinesByContent(t *testing.T) {
	// Deletions only, no leading empty lines.
	q, err := Parse(strings.NewReader("(100:3)\n"))
	assert.NoError(t, err)
	expect.EQ(t, len(q.SNPs), 0)
	expect.EQ(t, len(q.Insertions), 0)
	expect.EQ(t, q.Deletions, []Deletion{{100, 3}})

	// Lines out of order, and tuple syntax with a comma.
	q, err = Parse(strings.NewReader("(100,'AC')\nG5T,\n"))
	assert.NoError(t, err)
	expect.EQ(t, q.SNPs, []SNP{{4, 'G', 'T'}})
	expect.EQ(t, q.Insertions, []Insertion{{99, "AC"}})

	q, err = Parse(strings.NewReader(""))
	assert.NoError(t, err)
	expect.True(t, q.Empty())
}

func TestParseDuplicates(t *testing.T) {
	q, err := Parse(strings.NewReader("T150A,T150A,G10C\n"))
	assert.NoError(t, err)
	expect.EQ(t, len(q.SNPs), 2)
	expect.EQ(t, q.Sites(), []int{9, 149})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		line  int
	}{
		{"T15xA\n", 1},
		{"T150\n", 1},
		{"Q150A\n", 1},
		{"T0A\n", 1},
		{"\n(150:'AAA'\n", 2},
		{"\n(150:'AAA)\n", 2},
		{"\n(150:'AXA')\n", 2},
		{"\n\n(150:)\n", 3},
		{"\n\n(150 6)\n", 3},
		{"T150A,(150:6)\n", 1},
		{"T150A\nG10C\n", 2},
		{"T150A G10C\n", 1},
		{"T150A;\n", 1},
	}
	for _, tt := range tests {
		_, err := Parse(strings.NewReader(tt.input))
		perr, ok := err.(*QueryParseError)
		assert.True(t, ok, tt.input)
		expect.EQ(t, perr.Line, tt.line, tt.input)
		expect.HasSubstr(t, perr.Error(), "<input>")
	}
}

func TestReadFile(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	good := filepath.Join(tempDir, "good.txt")
	assert.NoError(t, ioutil.WriteFile(good, []byte("T150A\n(150:'AAA')\n(200:6)\n"), 0644))
	q, err := ReadFile(ctx, good)
	assert.NoError(t, err)
	expect.EQ(t, len(q.SNPs), 1)
	expect.EQ(t, len(q.Insertions), 1)
	expect.EQ(t, len(q.Deletions), 1)

	bad := filepath.Join(tempDir, "bad.txt")
	assert.NoError(t, ioutil.WriteFile(bad, []byte("T150A\n(150:'AAA'\n"), 0644))
	_, err = ReadFile(ctx, bad)
	perr, ok := err.(*QueryParseError)
	assert.True(t, ok)
	expect.EQ(t, perr.Path, bad)
	expect.EQ(t, perr.Line, 2)
	expect.HasSubstr(t, err.Error(), bad)
}
