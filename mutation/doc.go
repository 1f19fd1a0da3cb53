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

// Package mutation defines SNP, insertion and deletion records and parses the
// query files that name the mutations to look for in a BAM file.
//
// A query file has up to three lines:
//
//   T150A,C241T
//   (150:'AAA')
//   (200:6),(300:3)
//
// Positions in the file are 1-based.  An insertion position names the
// reference base the inserted sequence follows; a deletion position names
// the reference base preceding the deleted bases.
package mutation
