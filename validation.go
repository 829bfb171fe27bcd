// Copyright 2025 The Trackware Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nfctag

import "strings"

// minTagCapacity is the smallest declared capacity accepted for NDEF
// operations. Below this even a minimal text record will not fit.
const minTagCapacity = 48

// ndefCapableMarkers are type/technology substrings of tag families known
// to support NDEF. Matching is done on a lowercased haystack with spaces
// and dashes removed, so "ISO 14443-4" and "iso14443_4" both match.
var ndefCapableMarkers = []string{
	"ndef",
	"type1",
	"type2",
	"type3",
	"type4",
	"ntag",
	"ultralight",
	"mifareul",
	"iso14443",
	"isodep",
	"nfca",
}

// Validation is the outcome of inspecting a detected tag. A non-error
// outcome may still carry informational flags the operation must honor.
type Validation struct {
	// Empty is true when the tag holds no NDEF records. An empty,
	// NDEF-capable tag is a valid read target.
	Empty bool
	// WriteRestricted is true when the tag explicitly reports itself
	// non-writable. Reads proceed with a warning; writes must fail.
	WriteRestricted bool
}

// ValidateTag decides whether a detected tag is usable for NDEF operations.
// It returns a categorized error for incompatible or undersized tags.
func ValidateTag(tag *Tag) (*Validation, error) {
	if tag == nil {
		return nil, newError(CategoryNoTagDetected, "validate",
			"no tag detected", ErrNoTagDetected)
	}

	if !hasNdefCapability(tag) {
		return nil, newError(CategoryIncompatibleTag, "validate",
			"tag does not support NDEF", nil)
	}

	if tag.Capacity != nil && *tag.Capacity < minTagCapacity {
		return nil, newError(CategoryTagTooSmall, "validate",
			"tag capacity below minimum for a text record", nil)
	}

	v := &Validation{
		Empty:           isEmptyTag(tag),
		WriteRestricted: tag.Writable != nil && !*tag.Writable,
	}
	return v, nil
}

// hasNdefCapability reports whether the tag exposes an NDEF message field
// or its declared type/technologies match a known NDEF-capable family.
func hasNdefCapability(tag *Tag) bool {
	// A defined record list, even an empty one, proves NDEF support.
	if tag.Records != nil {
		return true
	}

	haystack := normalizeTechString(tag.typeAndTech())
	for _, marker := range ndefCapableMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

// isEmptyTag reports whether the tag holds no usable NDEF records.
func isEmptyTag(tag *Tag) bool {
	if len(tag.Records) == 0 {
		return true
	}
	for _, payload := range tag.Records {
		if len(payload) > 0 {
			return false
		}
	}
	return true
}

// normalizeTechString lowercases and strips separators so substring
// matching survives the many spellings radios use for the same family.
func normalizeTechString(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}
