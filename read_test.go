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

package nfctag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nfctag "github.com/trackware/go-nfctag"
	"github.com/trackware/go-nfctag/internal/radiotest"
)

func TestRead_EmptyTagIsSuccess(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(capableTag([]byte{0x04, 0xAA, 0xBB}))
	engine := newEngine(radio, 1)

	result, err := engine.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Empty)
	assert.Equal(t, "04AABB", result.UID)
	assert.Empty(t, result.Content)
	assert.Nil(t, result.Data)
}

func TestRead_JSONContent(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(capableTag([]byte{0x04, 0x01},
		textRecord(`{"id":"dev-7","count":3}`)))
	engine := newEngine(radio, 1)

	result, err := engine.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Empty)
	assert.Equal(t, "dev-7", result.Data["id"])
	assert.Equal(t, float64(3), result.Data["count"])
	assert.NotEmpty(t, result.JSON)
	assert.Empty(t, result.Content, "JSON content must not double as opaque text")
}

func TestRead_HandWrittenJSONIsNormalized(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(capableTag([]byte{0x04, 0x02},
		textRecord(`{“name”: “unit-5”}`)))
	engine := newEngine(radio, 1)

	result, err := engine.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unit-5", result.Data["name"])
}

func TestRead_PlainTextContent(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(capableTag([]byte{0x04, 0x03},
		textRecord("just a label")))
	engine := newEngine(radio, 1)

	result, err := engine.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "just a label", result.Content)
	assert.Nil(t, result.Data)
	assert.Empty(t, result.JSON)
}

func TestRead_BracedNonJSONFallsBackToText(t *testing.T) {
	t.Parallel()

	// Looks like JSON but never parses even after normalization.
	radio := radiotest.WithTag(capableTag([]byte{0x04, 0x04},
		textRecord(`{]]not json[[}`)))
	engine := newEngine(radio, 1)

	result, err := engine.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{]]not json[[}`, result.Content)
	assert.Nil(t, result.Data)
}

func TestRead_UndecodableContent(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(capableTag([]byte{0x04, 0x05}, []byte{0x3F, 'x'}))
	engine := newEngine(radio, 1)

	_, err := engine.Read(context.Background())
	require.Error(t, err)
	assert.Equal(t, nfctag.CategoryDecodeFailure, nfctag.CategoryOf(err))
}

func TestRead_NoTagInRange(t *testing.T) {
	t.Parallel()

	radio := radiotest.New()
	engine := newEngine(radio, 1)

	_, err := engine.Read(context.Background())
	require.Error(t, err)
	assert.Equal(t, nfctag.CategoryNoTagDetected, nfctag.CategoryOf(err))
}

func TestRead_IncompatibleTag(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(&nfctag.Tag{
		UIDBytes:     []byte{0x04, 0x06},
		Type:         "android.nfc.tech.NfcB",
		Technologies: []string{"android.nfc.tech.NfcB"},
	})
	engine := newEngine(radio, 3)

	_, err := engine.Read(context.Background())
	require.Error(t, err)
	assert.Equal(t, nfctag.CategoryIncompatibleTag, nfctag.CategoryOf(err))
	assert.Equal(t, 1, radio.Acquires, "incompatible tag is terminal, no retry")
}
