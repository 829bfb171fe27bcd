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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trackware/go-nfctag/pkg/ndef"
)

// Password protection commands and page values for the NTAG21x family.
const (
	cmdPwdAuth = 0x1B

	// minPasswordLen is the minimum accepted password length.
	minPasswordLen = 4
	// tagPasswordLen is the fixed password size the tag stores.
	tagPasswordLen = 4

	// auth0ProtectUserMemory requires authentication from page 4 onward.
	auth0ProtectUserMemory = 0x04
	// auth0Disabled places the protection boundary past the last page,
	// disabling authentication entirely.
	auth0Disabled = 0xFF
)

// packValue is the password acknowledgement written to the pack page. The
// tag echoes the first two bytes after successful authentication; the page
// write is padded to a full page.
var packValue = []byte{0x98, 0x76, 0x00, 0x00}

// lockMagic prefixes the plaintext before encryption so a wrong password is
// detected by a failed prefix match rather than only by garbage output.
const lockMagic = "TGv1"

// lockHint is what someone reading the raw tag without this engine sees.
// The software lock deliberately leaves the tag legible: the payload below
// IS the tag's visible content while locked.
const lockHint = "This tag is password protected."

// errCipherMismatch signals that decryption produced implausible output,
// meaning the supplied password is wrong.
var errCipherMismatch = errors.New("decrypted content failed integrity check")

// LockType reports which protection tier an operation actually applied.
type LockType string

const (
	// LockTypeHardware means the tag's own firmware now requires a
	// password for memory access.
	LockTypeHardware LockType = "hardware"
	// LockTypeSoftware means the tag content was replaced with an
	// encrypted lock payload; the tag itself remains open.
	LockTypeSoftware LockType = "software"
)

// LockPayload is the structured record written as tag content when
// software-locking. It is stored as plain JSON on purpose: a reader without
// this engine still sees legible structure and the hint, a graceful
// degradation rather than a defect.
//
// The embedded cipher is a reversible XOR obfuscation, not strong
// cryptography; anyone running the same decode logic with the password
// recovers the content. This is the documented trade-off of the software
// tier.
type LockPayload struct {
	Locked     bool   `json:"locked"`
	LockedAt   string `json:"lockedAt"`
	Hint       string `json:"hint,omitempty"`
	Data       string `json:"data"`
	HasContent bool   `json:"hasContent"`
}

// LockResult is the payload of a successful lock.
type LockResult struct {
	// UID is the tag identifier as uppercase hex.
	UID string
	// Type is the protection tier that was actually applied. Callers must
	// not assume hardware succeeded just because it was attempted.
	Type LockType
}

// UnlockResult is the payload of a successful unlock.
type UnlockResult struct {
	// UID is the tag identifier as uppercase hex.
	UID string
	// Type is the protection tier that was removed.
	Type LockType
	// Content is the restored plain content (software tier only).
	Content string
}

// Lock password-protects the tag. The hardware tier is attempted first when
// the tag family is recognized: the password, acknowledgement and
// protection-boundary values are written to the family's raw memory pages.
// Hardware failures are non-fatal and fall through to the software tier,
// which replaces the tag content with an encrypted LockPayload.
func (e *Engine) Lock(ctx context.Context, password string) (*LockResult, error) {
	const op = "lock"

	if len([]rune(password)) < minPasswordLen {
		return nil, newError(CategoryWeakPassword, op,
			fmt.Sprintf("password must be at least %d characters", minPasswordLen), nil)
	}

	var result *LockResult
	err := e.runOperation(ctx, op, TechnologyNdef, e.profile.AcquireTimeout, func(ctx context.Context) error {
		tag, validation, err := e.detectAndValidate(ctx, op)
		if err != nil {
			return err
		}

		// Best-effort read of whatever the tag holds now. A failed read is
		// not fatal; the lock proceeds with empty prior content.
		prior := ""
		if !validation.Empty {
			if text, decodeErr := ndef.DecodeText(firstRecordPayload(tag)); decodeErr == nil {
				prior = text
			} else {
				e.log.Debug().Err(decodeErr).Msg("prior content unreadable, locking without it")
			}
		}

		if cfg, ok := DetectFamily(tag); ok {
			hwErr := e.hardwareLock(ctx, cfg, password)
			if hwErr == nil {
				result = &LockResult{UID: tag.UID(), Type: LockTypeHardware}
				return nil
			}
			e.log.Warn().Err(hwErr).Str("family", string(cfg.Family)).
				Msg("hardware lock failed, falling back to software lock")
		}

		if swErr := e.softwareLock(ctx, prior, password); swErr != nil {
			return swErr
		}
		result = &LockResult{UID: tag.UID(), Type: LockTypeSoftware}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// hardwareLock issues the three raw page writes that enable the tag's own
// password protection: password page, acknowledgement page, and the
// configuration page with the protection boundary set to user memory.
func (e *Engine) hardwareLock(ctx context.Context, cfg TagFamilyConfig, password string) error {
	pwd := tagPassword(password)

	writes := []struct {
		data []byte
		page byte
	}{
		{pwd, cfg.PasswordPage},
		{packValue, cfg.PackPage},
		{[]byte{0x00, 0x00, 0x00, auth0ProtectUserMemory}, cfg.ConfigPage},
	}

	for _, w := range writes {
		cmd := make([]byte, 0, 2+len(w.data))
		cmd = append(cmd, cmdWritePage, w.page)
		cmd = append(cmd, w.data...)
		if _, err := e.radio.Transceive(ctx, cmd); err != nil {
			return fmt.Errorf("page 0x%02X write failed: %w", w.page, err)
		}
	}
	return nil
}

// softwareLock replaces the tag content with an encrypted lock payload.
func (e *Engine) softwareLock(ctx context.Context, prior, password string) error {
	const op = "lock"

	payload := LockPayload{
		Locked:     true,
		LockedAt:   e.clock.Now().UTC().Format(time.RFC3339),
		Hint:       lockHint,
		Data:       encryptContent(prior, password),
		HasContent: prior != "",
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return newError(CategoryUnknown, op, "lock payload encoding failed", err)
	}
	message, err := ndef.EncodeTextMessage(string(encoded))
	if err != nil {
		return newError(CategoryDecodeFailure, op, "lock payload encoding failed", err)
	}
	if err := e.radio.WriteMessage(ctx, message); err != nil {
		return newError(CategoryConnectionLost, op, "lock payload write failed", err)
	}
	return nil
}

// Unlock removes password protection. When the tag family is recognized, a
// hardware authentication is attempted first; a rejected password is
// terminal and never falls through to the software path (failing closed).
// When hardware authentication is unavailable the stored lock payload is
// decrypted and the original content restored (failing open toward some
// protection rather than none).
func (e *Engine) Unlock(ctx context.Context, password string) (*UnlockResult, error) {
	const op = "unlock"

	var result *UnlockResult
	err := e.runOperation(ctx, op, TechnologyNdef, e.profile.AcquireTimeout, func(ctx context.Context) error {
		tag, _, err := e.detectAndValidate(ctx, op)
		if err != nil {
			return err
		}

		if cfg, ok := DetectFamily(tag); ok {
			hwErr := e.hardwareUnlock(ctx, op, cfg, password)
			switch {
			case hwErr == nil:
				result = &UnlockResult{UID: tag.UID(), Type: LockTypeHardware}
				return nil
			case CategoryOf(hwErr) == CategoryIncorrectPassword:
				// Failing closed: a rejected password never falls through
				// to the software path.
				return hwErr
			default:
				e.log.Debug().Err(hwErr).Msg("hardware unlock unavailable, trying software path")
			}
		}

		content, swErr := e.softwareUnlock(ctx, op, tag, password)
		if swErr != nil {
			return swErr
		}
		result = &UnlockResult{UID: tag.UID(), Type: LockTypeSoftware, Content: content}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// hardwareUnlock authenticates with the tag and disables the protection
// boundary. A rejection response maps to IncorrectPassword; transport-level
// failures are returned unmapped so the caller can fall back.
func (e *Engine) hardwareUnlock(ctx context.Context, op string, cfg TagFamilyConfig, password string) error {
	cmd := make([]byte, 0, 1+tagPasswordLen)
	cmd = append(cmd, cmdPwdAuth)
	cmd = append(cmd, tagPassword(password)...)

	resp, err := e.radio.Transceive(ctx, cmd)
	if err != nil {
		if isAuthRejection(err) {
			return newError(CategoryIncorrectPassword, op, "tag rejected the password", ErrAuthRejected)
		}
		return fmt.Errorf("%w: %w", ErrHardwareLockUnavailable, err)
	}
	// A successful PWD_AUTH answers with the 2-byte acknowledgement. A
	// shorter response is the tag's rejection pattern.
	if len(resp) < 2 {
		return newError(CategoryIncorrectPassword, op, "tag rejected the password", ErrAuthRejected)
	}

	disable := []byte{cmdWritePage, cfg.ConfigPage, 0x00, 0x00, 0x00, auth0Disabled}
	if _, err := e.radio.Transceive(ctx, disable); err != nil {
		return fmt.Errorf("protection disable write failed: %w", err)
	}
	return nil
}

// softwareUnlock decrypts the stored lock payload and restores the original
// content to the tag.
func (e *Engine) softwareUnlock(ctx context.Context, op string, tag *Tag, password string) (string, error) {
	text, err := ndef.DecodeText(firstRecordPayload(tag))
	if err != nil {
		return "", newError(CategoryDecodeFailure, op, "stored content could not be decoded", err)
	}

	var payload LockPayload
	if err := json.Unmarshal([]byte(NormalizeJSON(text)), &payload); err != nil || !payload.Locked {
		return "", newError(CategoryInvalidInput, op, "tag is not locked", ErrNotLocked)
	}

	content, err := decryptContent(payload.Data, password)
	if err != nil {
		return "", newError(CategoryIncorrectPassword, op, "incorrect password", err)
	}

	restored := content
	if !payload.HasContent {
		restored = ""
	}
	message, err := ndef.EncodeTextMessage(restored)
	if err != nil {
		return "", newError(CategoryDecodeFailure, op, "restore encoding failed", err)
	}
	if err := e.radio.WriteMessage(ctx, message); err != nil {
		return "", newError(CategoryConnectionLost, op, "restore write failed", err)
	}
	return restored, nil
}

// IsLocked reads the tag and reports whether its content carries the
// software lock marker. Hardware lock state is not legible without an
// authentication attempt, so it is not reported here.
func (e *Engine) IsLocked(ctx context.Context) (bool, error) {
	result, err := e.Read(ctx)
	if err != nil {
		return false, err
	}
	if result.Empty || result.JSON == "" {
		return false, nil
	}

	var payload LockPayload
	if err := json.Unmarshal([]byte(result.JSON), &payload); err != nil {
		return false, nil
	}
	return payload.Locked, nil
}

// tagPassword pads or truncates the caller's password to the fixed 4-byte
// size the tag stores.
func tagPassword(password string) []byte {
	pwd := make([]byte, tagPasswordLen)
	copy(pwd, password)
	return pwd
}

// isAuthRejection distinguishes a password rejection from other transceive
// failures. A rejection names the authentication itself; transport errors
// talk about availability instead.
func isAuthRejection(err error) bool {
	if errors.Is(err, ErrAuthRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "auth") && !strings.Contains(msg, "unavailable")
}

// encryptContent obfuscates content under the password with a repeating
// XOR keystream and base64 armor. Reversible by construction; see the
// LockPayload doc for the threat model.
func encryptContent(content, password string) string {
	plain := append([]byte(lockMagic), content...)
	return base64.StdEncoding.EncodeToString(xorBytes(plain, []byte(password)))
}

// decryptContent reverses encryptContent. A wrong password surfaces as
// errCipherMismatch: either the integrity prefix fails to match or the
// output carries embedded NUL bytes, a not-coincidental corruption signal.
func decryptContent(data, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("lock payload corrupt: %w", err)
	}

	plain := xorBytes(raw, []byte(password))
	if !bytes.HasPrefix(plain, []byte(lockMagic)) {
		return "", errCipherMismatch
	}
	content := plain[len(lockMagic):]
	if bytes.IndexByte(content, 0x00) >= 0 {
		return "", errCipherMismatch
	}
	return string(content), nil
}

// xorBytes applies the repeating-key XOR keystream. Symmetric.
func xorBytes(data, key []byte) []byte {
	if len(key) == 0 {
		return append([]byte(nil), data...)
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
