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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestValidateTag_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag          *Tag
		name         string
		wantCategory Category
	}{
		{
			name:         "nil tag",
			tag:          nil,
			wantCategory: CategoryNoTagDetected,
		},
		{
			name: "no ndef capability",
			tag: &Tag{
				Type:         "android.nfc.tech.NfcB",
				Technologies: []string{"android.nfc.tech.NfcB"},
			},
			wantCategory: CategoryIncompatibleTag,
		},
		{
			name: "capacity below minimum",
			tag: &Tag{
				Type:     "NTAG210",
				Capacity: intPtr(20),
				Records:  [][]byte{},
			},
			wantCategory: CategoryTagTooSmall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ValidateTag(tt.tag)
			require.Error(t, err)
			assert.Equal(t, tt.wantCategory, CategoryOf(err))
		})
	}
}

func TestValidateTag_Accepted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag                 *Tag
		name                string
		wantEmpty           bool
		wantWriteRestricted bool
	}{
		{
			name: "empty capable tag",
			tag: &Tag{
				Capacity: intPtr(144),
				Records:  [][]byte{},
			},
			wantEmpty: true,
		},
		{
			name: "tag with content",
			tag: &Tag{
				Capacity: intPtr(144),
				Records:  [][]byte{{0x02, 'e', 'n', 'x'}},
			},
		},
		{
			name: "records defined but all zero length",
			tag: &Tag{
				Capacity: intPtr(144),
				Records:  [][]byte{{}, {}},
			},
			wantEmpty: true,
		},
		{
			name: "capability from technology marker",
			tag: &Tag{
				Type:         "ISO 14443-4",
				Technologies: []string{"iso14443_4"},
			},
			wantEmpty: true,
		},
		{
			name: "write restricted",
			tag: &Tag{
				Capacity: intPtr(144),
				Writable: boolPtr(false),
				Records:  [][]byte{{0x02, 'e', 'n', 'x'}},
			},
			wantWriteRestricted: true,
		},
		{
			name: "unknown capacity is not rejected",
			tag: &Tag{
				Type:    "NTAG215",
				Records: [][]byte{},
			},
			wantEmpty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := ValidateTag(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmpty, v.Empty)
			assert.Equal(t, tt.wantWriteRestricted, v.WriteRestricted)
		})
	}
}
