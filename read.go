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
	"context"

	"github.com/trackware/go-nfctag/pkg/ndef"
)

// ReadResult is the payload of a successful read.
type ReadResult struct {
	// Data is the parsed object when the content was valid JSON.
	Data map[string]any
	// UID is the tag identifier as uppercase hex.
	UID string
	// JSON is the normalized JSON string when the content was valid JSON.
	JSON string
	// Content is the decoded text when the content was not JSON.
	Content string
	// Empty is true when the tag is NDEF-capable but holds no records.
	// Such a tag is formatted and ready to be written.
	Empty bool
}

// Read acquires a tag, validates it and decodes its first text record.
// An empty tag is a success with Empty set, not a failure. Undecodable
// content surfaces as a DecodeFailure, never silently swallowed.
func (e *Engine) Read(ctx context.Context) (*ReadResult, error) {
	const op = "read"

	var result *ReadResult
	err := e.runOperation(ctx, op, TechnologyNdef, e.profile.AcquireTimeout, func(ctx context.Context) error {
		tag, validation, err := e.detectAndValidate(ctx, op)
		if err != nil {
			return err
		}

		if validation.Empty {
			result = &ReadResult{UID: tag.UID(), Empty: true}
			return nil
		}

		text, err := ndef.DecodeText(firstRecordPayload(tag))
		if err != nil {
			return newError(CategoryDecodeFailure, op, "stored content could not be decoded", err)
		}

		result = classifyContent(tag.UID(), text)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// classifyContent builds a read result, parsing the text as JSON when it
// looks like JSON and falling back to opaque content otherwise.
func classifyContent(uid, text string) *ReadResult {
	if LooksLikeJSON(text) {
		normalized := NormalizeJSON(text)
		if data, err := parseJSONObject(normalized); err == nil {
			return &ReadResult{UID: uid, JSON: normalized, Data: data}
		}
	}
	return &ReadResult{UID: uid, Content: text}
}

// firstRecordPayload returns the first non-empty record payload.
func firstRecordPayload(tag *Tag) []byte {
	for _, payload := range tag.Records {
		if len(payload) > 0 {
			return payload
		}
	}
	return nil
}
