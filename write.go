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
	"encoding/json"
	"time"

	"github.com/trackware/go-nfctag/pkg/ndef"
)

// WriteOptions tunes a write operation.
type WriteOptions struct {
	// Timeout overrides the profile acquisition timeout when positive.
	Timeout time.Duration
	// Merge shallow-merges the new content's keys over JSON already stored
	// on the tag. New keys win on conflict. Ignored when the tag holds no
	// decodable JSON.
	Merge bool
}

// WriteResult is the payload of a successful write.
type WriteResult struct {
	// UID is the tag identifier as uppercase hex.
	UID string
	// Bytes is the encoded message size written to the tag.
	Bytes int
}

// Write validates content as JSON, normalizes it and stores it on the tag
// as a single text record. The tag's presence is re-verified immediately
// before writing so a silently disconnected tag fails with ConnectionLost
// instead of an opaque radio error.
func (e *Engine) Write(ctx context.Context, content string, opts WriteOptions) (*WriteResult, error) {
	const op = "write"

	if !json.Valid([]byte(content)) {
		normalized := NormalizeJSON(content)
		if !json.Valid([]byte(normalized)) {
			return nil, newError(CategoryInvalidInput, op, "content is not well-formed JSON", nil)
		}
		content = normalized
	}
	content = NormalizeJSON(content)

	timeout := e.profile.AcquireTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	var result *WriteResult
	err := e.runOperation(ctx, op, TechnologyNdef, timeout, func(ctx context.Context) error {
		tag, validation, err := e.detectAndValidate(ctx, op)
		if err != nil {
			return err
		}
		if validation.WriteRestricted {
			return newError(CategoryWriteProtected, op, "tag reports itself non-writable", nil)
		}

		if err := checkCapacity(op, tag, content); err != nil {
			return err
		}

		final := content
		if opts.Merge && !validation.Empty {
			final = e.mergeWithStored(tag, content)
		}

		message, err := ndef.EncodeTextMessage(final)
		if err != nil {
			return newError(CategoryDecodeFailure, op, "content encoding failed", err)
		}
		if err := checkEncodedCapacity(op, tag, len(message)); err != nil {
			return err
		}

		if err := e.verifyTagPresent(ctx, op, tag); err != nil {
			return err
		}

		if err := e.radio.WriteMessage(ctx, message); err != nil {
			if isWriteProtectFailure(err) {
				return newError(CategoryWriteProtected, op, "tag refused the write", err)
			}
			return newError(CategoryConnectionLost, op, "write failed mid-session", err)
		}

		result = &WriteResult{UID: tag.UID(), Bytes: len(message)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkCapacity fails with CapacityExceeded when the caller's content,
// once encoded, cannot fit the tag's declared capacity.
func checkCapacity(op string, tag *Tag, content string) error {
	if tag.Capacity == nil {
		return nil
	}
	encoded, err := ndef.EncodeTextMessage(content)
	if err != nil {
		return newError(CategoryDecodeFailure, op, "content encoding failed", err)
	}
	return checkEncodedCapacity(op, tag, len(encoded))
}

// checkEncodedCapacity compares an encoded size against declared capacity.
func checkEncodedCapacity(op string, tag *Tag, size int) error {
	if tag.Capacity != nil && size > *tag.Capacity {
		return newError(CategoryCapacityExceeded, op, "content exceeds tag capacity", nil)
	}
	return nil
}

// mergeWithStored shallow-merges content over JSON already on the tag.
// A tag whose stored content is not decodable JSON is simply overwritten.
func (e *Engine) mergeWithStored(tag *Tag, content string) string {
	stored, err := ndef.DecodeText(firstRecordPayload(tag))
	if err != nil {
		e.log.Debug().Err(err).Msg("merge skipped: stored content undecodable")
		return content
	}
	if !LooksLikeJSON(stored) {
		return content
	}
	merged, err := shallowMergeJSON(NormalizeJSON(stored), content)
	if err != nil {
		e.log.Debug().Err(err).Msg("merge skipped: stored content not a JSON object")
		return content
	}
	return merged
}

// verifyTagPresent re-reads the tag snapshot immediately before writing and
// fails with ConnectionLost when it disappeared or was swapped.
func (e *Engine) verifyTagPresent(ctx context.Context, op string, tag *Tag) error {
	current, err := e.radio.Tag(ctx)
	if err != nil || current == nil {
		return newError(CategoryConnectionLost, op, "tag left range before write", ErrTagNotPresent)
	}
	if !bytes.Equal(current.UIDBytes, tag.UIDBytes) {
		return newError(CategoryConnectionLost, op, "a different tag is now in range", ErrTagNotPresent)
	}
	return nil
}
