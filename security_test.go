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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nfctag "github.com/trackware/go-nfctag"
	"github.com/trackware/go-nfctag/internal/radiotest"
	"github.com/trackware/go-nfctag/pkg/ndef"
)

const testPassword = "hunter22"

func TestLock_WeakPasswordRejectedBeforeRadioWork(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(ntagTag([]byte{0x04, 0x30}))
	engine := newEngine(radio, 3)

	_, err := engine.Lock(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, nfctag.CategoryWeakPassword, nfctag.CategoryOf(err))
	assert.Zero(t, radio.Acquires)
	assert.Empty(t, radio.TransceivedCmds)
	assert.Nil(t, radio.LastWritten())
}

func TestLock_HardwareTierOnRecognizedFamily(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(ntagTag([]byte{0x04, 0x31}))
	engine := newEngine(radio, 1)

	result, err := engine.Lock(context.Background(), testPassword)
	require.NoError(t, err)
	assert.Equal(t, nfctag.LockTypeHardware, result.Type)
	assert.Equal(t, "0431", result.UID)

	require.Len(t, radio.TransceivedCmds, 3)
	assert.Equal(t, []byte{0xA2, 0x2B, 'h', 'u', 'n', 't'}, radio.TransceivedCmds[0],
		"password page receives the first four password bytes")
	assert.Equal(t, []byte{0xA2, 0x2C, 0x98, 0x76, 0x00, 0x00}, radio.TransceivedCmds[1],
		"pack page receives the acknowledgement value")
	assert.Equal(t, []byte{0xA2, 0x29, 0x00, 0x00, 0x00, 0x04}, radio.TransceivedCmds[2],
		"config page protects user memory from page 4")

	assert.Nil(t, radio.LastWritten(), "hardware tier must not rewrite content")
}

func TestLock_HardwareFailureFallsBackToSoftware(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(ntagTag([]byte{0x04, 0x32}))
	radio.TransceiveFn = func(_ []byte) ([]byte, error) {
		return nil, errors.New("raw command refused")
	}
	engine := newEngine(radio, 1)

	result, err := engine.Lock(context.Background(), testPassword)
	require.NoError(t, err)
	assert.Equal(t, nfctag.LockTypeSoftware, result.Type)

	var payload nfctag.LockPayload
	require.NoError(t, json.Unmarshal([]byte(decodeWritten(t, radio)), &payload))
	assert.True(t, payload.Locked)
}

func TestLock_SoftwareTierOnUnrecognizedFamily(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(capableTag([]byte{0x04, 0x33},
		textRecord(`{"asset":"pump-4"}`)))
	engine := newEngine(radio, 1)

	result, err := engine.Lock(context.Background(), testPassword)
	require.NoError(t, err)
	assert.Equal(t, nfctag.LockTypeSoftware, result.Type)
	assert.Empty(t, radio.TransceivedCmds, "no raw commands without a recognized family")

	var payload nfctag.LockPayload
	require.NoError(t, json.Unmarshal([]byte(decodeWritten(t, radio)), &payload))
	assert.True(t, payload.Locked)
	assert.True(t, payload.HasContent)
	assert.NotEmpty(t, payload.Data)
	assert.NotEmpty(t, payload.LockedAt)
	assert.NotContains(t, payload.Data, "pump-4", "content must not be stored in the clear")
}

func TestSoftwareLockUnlock_RoundTrip(t *testing.T) {
	t.Parallel()

	original := `{"asset":"pump-4","zone":2}`

	lockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x34}, textRecord(original)))
	lockEngine := newEngine(lockRadio, 1)
	_, err := lockEngine.Lock(context.Background(), testPassword)
	require.NoError(t, err)

	lockedContent := decodeWritten(t, lockRadio)

	unlockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x34},
		textRecord(lockedContent)))
	unlockEngine := newEngine(unlockRadio, 1)

	result, err := unlockEngine.Unlock(context.Background(), testPassword)
	require.NoError(t, err)
	assert.Equal(t, nfctag.LockTypeSoftware, result.Type)
	assert.Equal(t, original, result.Content)
	assert.Equal(t, original, decodeWritten(t, unlockRadio), "original content is restored")
}

func TestSoftwareLockUnlock_EmptyTagRoundTrip(t *testing.T) {
	t.Parallel()

	lockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x35}))
	lockEngine := newEngine(lockRadio, 1)
	_, err := lockEngine.Lock(context.Background(), testPassword)
	require.NoError(t, err)

	var payload nfctag.LockPayload
	lockedContent := decodeWritten(t, lockRadio)
	require.NoError(t, json.Unmarshal([]byte(lockedContent), &payload))
	assert.False(t, payload.HasContent)

	unlockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x35},
		textRecord(lockedContent)))
	unlockEngine := newEngine(unlockRadio, 1)

	result, err := unlockEngine.Unlock(context.Background(), testPassword)
	require.NoError(t, err)
	assert.Empty(t, result.Content)
	assert.Empty(t, decodeWritten(t, unlockRadio), "tag is restored to empty")
}

func TestUnlock_WrongSoftwarePassword(t *testing.T) {
	t.Parallel()

	lockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x36},
		textRecord(`{"asset":"pump-4"}`)))
	lockEngine := newEngine(lockRadio, 1)
	_, err := lockEngine.Lock(context.Background(), testPassword)
	require.NoError(t, err)

	unlockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x36},
		textRecord(decodeWritten(t, lockRadio))))
	unlockEngine := newEngine(unlockRadio, 3)

	_, err = unlockEngine.Unlock(context.Background(), "wrong-password")
	require.Error(t, err)
	assert.Equal(t, nfctag.CategoryIncorrectPassword, nfctag.CategoryOf(err))
	assert.Nil(t, unlockRadio.LastWritten(), "tag state must stay unchanged on rejection")
	assert.Equal(t, 1, unlockRadio.Acquires, "rejection is terminal, no retry")
}

func TestUnlock_TagNotLocked(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(capableTag([]byte{0x04, 0x37},
		textRecord(`{"asset":"pump-4"}`)))
	engine := newEngine(radio, 1)

	_, err := engine.Unlock(context.Background(), testPassword)
	require.Error(t, err)
	assert.Equal(t, nfctag.CategoryInvalidInput, nfctag.CategoryOf(err))
	assert.ErrorIs(t, err, nfctag.ErrNotLocked)
}

func TestUnlock_HardwareTier(t *testing.T) {
	t.Parallel()

	radio := radiotest.WithTag(ntagTag([]byte{0x04, 0x38}))
	radio.TransceiveFn = func(cmd []byte) ([]byte, error) {
		if cmd[0] == 0x1B {
			return []byte{0x98, 0x76}, nil
		}
		return []byte{}, nil
	}
	engine := newEngine(radio, 1)

	result, err := engine.Unlock(context.Background(), testPassword)
	require.NoError(t, err)
	assert.Equal(t, nfctag.LockTypeHardware, result.Type)

	require.Len(t, radio.TransceivedCmds, 2)
	assert.Equal(t, []byte{0x1B, 'h', 'u', 'n', 't'}, radio.TransceivedCmds[0],
		"authentication carries the first four password bytes")
	assert.Equal(t, []byte{0xA2, 0x29, 0x00, 0x00, 0x00, 0xFF}, radio.TransceivedCmds[1],
		"protection boundary is moved past the last page")
	assert.Nil(t, radio.LastWritten())
}

func TestUnlock_HardwareRejectionNeverFallsBack(t *testing.T) {
	t.Parallel()

	lockPayload := `{"locked":true,"data":"x","hasContent":false}`
	radio := radiotest.WithTag(ntagTag([]byte{0x04, 0x39}, textRecord(lockPayload)))
	radio.TransceiveFn = func(cmd []byte) ([]byte, error) {
		if cmd[0] == 0x1B {
			// Single NAK byte, the tag's rejection pattern.
			return []byte{0x04}, nil
		}
		return []byte{}, nil
	}
	engine := newEngine(radio, 3)

	_, err := engine.Unlock(context.Background(), testPassword)
	require.Error(t, err)
	assert.Equal(t, nfctag.CategoryIncorrectPassword, nfctag.CategoryOf(err))
	assert.ErrorIs(t, err, nfctag.ErrAuthRejected)
	assert.Nil(t, radio.LastWritten(), "a rejected password must not reach the software path")
	assert.Equal(t, 1, radio.Acquires, "rejection is terminal, no retry")
}

func TestUnlock_HardwareUnavailableFallsBackToSoftware(t *testing.T) {
	t.Parallel()

	// Build a real software lock payload first.
	lockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x3A},
		textRecord(`{"asset":"fan-1"}`)))
	_, err := newEngine(lockRadio, 1).Lock(context.Background(), testPassword)
	require.NoError(t, err)

	// A recognized family whose raw command plane is unreachable.
	radio := radiotest.WithTag(ntagTag([]byte{0x04, 0x3A},
		textRecord(decodeWritten(t, lockRadio))))
	radio.TransceiveFn = func(_ []byte) ([]byte, error) {
		return nil, errors.New("transceive unavailable on this stack")
	}
	engine := newEngine(radio, 1)

	result, err := engine.Unlock(context.Background(), testPassword)
	require.NoError(t, err)
	assert.Equal(t, nfctag.LockTypeSoftware, result.Type)
	assert.Equal(t, `{"asset":"fan-1"}`, result.Content)
}

func TestIsLocked(t *testing.T) {
	t.Parallel()

	t.Run("software locked tag", func(t *testing.T) {
		t.Parallel()

		lockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x3B}))
		_, err := newEngine(lockRadio, 1).Lock(context.Background(), testPassword)
		require.NoError(t, err)

		radio := radiotest.WithTag(capableTag([]byte{0x04, 0x3B},
			textRecord(decodeWritten(t, lockRadio))))
		locked, err := newEngine(radio, 1).IsLocked(context.Background())
		require.NoError(t, err)
		assert.True(t, locked)
	})

	t.Run("plain content", func(t *testing.T) {
		t.Parallel()

		radio := radiotest.WithTag(capableTag([]byte{0x04, 0x3C},
			textRecord(`{"asset":"pump-4"}`)))
		locked, err := newEngine(radio, 1).IsLocked(context.Background())
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("empty tag", func(t *testing.T) {
		t.Parallel()

		radio := radiotest.WithTag(capableTag([]byte{0x04, 0x3D}))
		locked, err := newEngine(radio, 1).IsLocked(context.Background())
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("opaque text", func(t *testing.T) {
		t.Parallel()

		radio := radiotest.WithTag(capableTag([]byte{0x04, 0x3E},
			textRecord("just a label")))
		locked, err := newEngine(radio, 1).IsLocked(context.Background())
		require.NoError(t, err)
		assert.False(t, locked)
	})
}

// The engine must round-trip its own lock payload through the generic read
// path: a locked tag reads as JSON with the lock marker visible.
func TestRead_LockedTagShowsHint(t *testing.T) {
	t.Parallel()

	lockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x3F}))
	_, err := newEngine(lockRadio, 1).Lock(context.Background(), testPassword)
	require.NoError(t, err)

	radio := radiotest.WithTag(capableTag([]byte{0x04, 0x3F},
		textRecord(decodeWritten(t, lockRadio))))
	result, err := newEngine(radio, 1).Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, true, result.Data["locked"])
	assert.NotEmpty(t, result.Data["hint"])
}

// Sanity check on the payload armor itself: the ciphertext survives the
// text-record round trip byte for byte.
func TestLockPayload_SurvivesCodecRoundTrip(t *testing.T) {
	t.Parallel()

	lockRadio := radiotest.WithTag(capableTag([]byte{0x04, 0x40},
		textRecord(`{"k":"v"}`)))
	_, err := newEngine(lockRadio, 1).Lock(context.Background(), testPassword)
	require.NoError(t, err)

	lockedContent := decodeWritten(t, lockRadio)

	var before nfctag.LockPayload
	require.NoError(t, json.Unmarshal([]byte(lockedContent), &before))

	reencoded, err := ndef.EncodeTextMessage(lockedContent)
	require.NoError(t, err)
	decoded, err := ndef.DecodeMessageText(reencoded)
	require.NoError(t, err)

	var after nfctag.LockPayload
	require.NoError(t, json.Unmarshal([]byte(decoded), &after))
	assert.Equal(t, before.Data, after.Data)
}
