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

// TagFamily identifies one variant of the NTAG21x product line. Password
// protection pages live at family-specific addresses, so hardware locking
// requires knowing the family first.
type TagFamily string

const (
	// FamilyNTAG213 is the smallest variant (144 bytes user memory).
	FamilyNTAG213 TagFamily = "NTAG213"
	// FamilyNTAG215 is the middle variant (504 bytes user memory).
	FamilyNTAG215 TagFamily = "NTAG215"
	// FamilyNTAG216 is the largest variant (888 bytes user memory).
	FamilyNTAG216 TagFamily = "NTAG216"
)

// NTAG21x memory layout, per variant. Page addresses from the NTAG213/215/216
// datasheet (NXP NT2H13/15/16).
const (
	ntag213PwdPage    = 0x2B // 43
	ntag213PackPage   = 0x2C // 44
	ntag213ConfigPage = 0x29 // 41
	ntag213TotalPages = 45

	ntag215PwdPage    = 0x85 // 133
	ntag215PackPage   = 0x86 // 134
	ntag215ConfigPage = 0x83 // 131
	ntag215TotalPages = 135

	ntag216PwdPage    = 0xE5 // 229
	ntag216PackPage   = 0xE6 // 230
	ntag216ConfigPage = 0xE3 // 227
	ntag216TotalPages = 231
)

// Capacity buckets for family detection when no explicit marker is present.
// Declared capacity is the most reliable signal across radios; the explicit
// marker is a bonus when present.
const (
	familyCapacityLarge  = 800
	familyCapacityMedium = 400
	familyCapacitySmall  = 100
)

// TagFamilyConfig is the fixed memory layout for one tag family: the pages
// involved in password protection plus the total page count. Selected
// per-session from tag metadata, never persisted.
type TagFamilyConfig struct {
	Family       TagFamily
	PasswordPage byte
	PackPage     byte
	ConfigPage   byte
	TotalPages   int
}

var familyConfigs = map[TagFamily]TagFamilyConfig{
	FamilyNTAG213: {
		Family:       FamilyNTAG213,
		PasswordPage: ntag213PwdPage,
		PackPage:     ntag213PackPage,
		ConfigPage:   ntag213ConfigPage,
		TotalPages:   ntag213TotalPages,
	},
	FamilyNTAG215: {
		Family:       FamilyNTAG215,
		PasswordPage: ntag215PwdPage,
		PackPage:     ntag215PackPage,
		ConfigPage:   ntag215ConfigPage,
		TotalPages:   ntag215TotalPages,
	},
	FamilyNTAG216: {
		Family:       FamilyNTAG216,
		PasswordPage: ntag216PwdPage,
		PackPage:     ntag216PackPage,
		ConfigPage:   ntag216ConfigPage,
		TotalPages:   ntag216TotalPages,
	},
}

// familyMarkers maps explicit type/technology substrings to families.
var familyMarkers = []struct {
	marker string
	family TagFamily
}{
	{"ntag213", FamilyNTAG213},
	{"ntag215", FamilyNTAG215},
	{"ntag216", FamilyNTAG216},
}

// genericUltralightMarkers indicate the vendor's ultralight/NTAG product
// line without naming a specific variant.
var genericUltralightMarkers = []string{"ntag", "ultralight", "mifareul"}

// DetectFamily selects the memory-layout configuration for a detected tag.
// Detection ladder: explicit family marker, then capacity bucket, then a
// generic ultralight marker defaulting to the smallest layout. When nothing
// matches, ok is false and hardware locking must not be attempted; only the
// software fallback is available.
func DetectFamily(tag *Tag) (TagFamilyConfig, bool) {
	if tag == nil {
		return TagFamilyConfig{}, false
	}

	haystack := normalizeTechString(tag.typeAndTech())

	for _, fm := range familyMarkers {
		if strings.Contains(haystack, fm.marker) {
			return familyConfigs[fm.family], true
		}
	}

	if tag.Capacity != nil {
		switch capacity := *tag.Capacity; {
		case capacity >= familyCapacityLarge:
			return familyConfigs[FamilyNTAG216], true
		case capacity >= familyCapacityMedium:
			return familyConfigs[FamilyNTAG215], true
		case capacity >= familyCapacitySmall:
			return familyConfigs[FamilyNTAG213], true
		}
	}

	for _, marker := range genericUltralightMarkers {
		if strings.Contains(haystack, marker) {
			return familyConfigs[FamilyNTAG213], true
		}
	}

	return TagFamilyConfig{}, false
}
