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
package interval

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region  string
		want    Entry
		wantErr bool
	}{
		{"NC_045512.2", Entry{"NC_045512.2", 0, PosMax - 1}, false},
		{"NC_045512.2:150", Entry{"NC_045512.2", 149, 150}, false},
		{"NC_045512.2:101-200", Entry{"NC_045512.2", 100, 200}, false},
		{"chr1:1,001-2,000", Entry{"chr1", 1000, 2000}, false},
		{"HLA-A*01:01:01:01:1-10", Entry{"HLA-A*01:01:01:01", 0, 10}, false},
		{"", Entry{}, true},
		{":1-10", Entry{}, true},
		{"chr1:0-10", Entry{}, true},
		{"chr1:10-5", Entry{}, true},
		{"chr1:x-5", Entry{}, true},
	}
	for _, tt := range tests {
		got, err := ParseRegionString(tt.region)
		if tt.wantErr {
			expect.NotNil(t, err, tt.region)
			continue
		}
		expect.NoError(t, err, tt.region)
		expect.EQ(t, got, tt.want)
	}
}

func TestEntry(t *testing.T) {
	e := Entry{"chr1", 100, 200}
	expect.EQ(t, e.String(), "chr1:101-200")
	expect.True(t, e.ContainedIn(100, 200))
	expect.True(t, e.ContainedIn(50, 250))
	expect.False(t, e.ContainedIn(101, 250))
	expect.False(t, e.ContainedIn(50, 199))
	expect.EQ(t, Entry{"chr1", 0, PosMax - 1}.String(), "chr1")
}
