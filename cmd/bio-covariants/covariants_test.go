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
	"testing"

	"github.com/grailbio/covar/interval"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestScanRegion(t *testing.T) {
	r, err := scanRegion("", "MN908947.3", 29903)
	assert.NoError(t, err)
	expect.EQ(t, r, interval.Entry{RefName: "MN908947.3", Start0: 0, End: 29903})

	r, err = scanRegion("MN908947.3:21563-25384", "MN908947.3", 29903)
	assert.NoError(t, err)
	expect.EQ(t, r, interval.Entry{RefName: "MN908947.3", Start0: 21562, End: 25384})

	// A region on another sequence would be walked against the wrong bases.
	_, err = scanRegion("NC_045512.2:21563-25384", "MN908947.3", 29903)
	assert.NotNil(t, err)
	expect.HasSubstr(t, err.Error(), "is not on reference MN908947.3")

	_, err = scanRegion("MN908947.3:10-5", "MN908947.3", 29903)
	expect.NotNil(t, err)
}
