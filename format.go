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
	"fmt"

	"github.com/trackware/go-nfctag/pkg/ndef"
)

// Raw page-initialization constants for blank tags of the ultralight
// family: the first user-memory page receives an empty NDEF TLV so the
// platform NDEF stack recognizes the tag afterwards.
const (
	cmdWritePage    = 0xA2
	userMemoryStart = 0x04
)

// emptyNdefTLV is an empty NDEF message in its TLV container: NDEF TLV with
// zero length, terminator, padding to a full 4-byte page.
var emptyNdefTLV = []byte{0x03, 0x00, 0xFE, 0x00}

// FormatResult is the payload of a successful format.
type FormatResult struct {
	// UID is the tag identifier as uppercase hex, when a snapshot was
	// available during the winning strategy.
	UID string
	// Strategy is the 1-based index of the strategy that succeeded.
	Strategy int
}

// Format establishes or clears NDEF structure on a tag. Up to three
// strategies run in order, first success wins: the dedicated formatable
// technology path for truly blank tags; a raw page-initialization write
// (platform-gated); and overwriting an already-NDEF tag with an empty
// record. A write-protection failure at any stage aborts the whole
// operation immediately instead of continuing down the ladder.
func (e *Engine) Format(ctx context.Context) (*FormatResult, error) {
	const op = "format"

	var result *FormatResult
	err := e.runSessionless(ctx, op, func(ctx context.Context) error {
		res, err := e.formatOnce(ctx, op)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// formatOnce runs the strategy ladder for one retry attempt. Each strategy
// opens its own session so a failed acquisition under one technology does
// not poison the next.
func (e *Engine) formatOnce(ctx context.Context, op string) (*FormatResult, error) {
	strategies := []struct {
		run     func(ctx context.Context) (*FormatResult, error)
		name    string
		enabled bool
	}{
		{e.formatViaFormatable, "formatable", true},
		{e.formatViaRawInit, "raw-init", e.profile.RawFormatSupported},
		{e.formatViaOverwrite, "overwrite", true},
	}

	var lastErr error
	for i, s := range strategies {
		if !s.enabled {
			continue
		}
		result, err := s.run(ctx)
		if err == nil {
			result.Strategy = i + 1
			return result, nil
		}
		if isWriteProtectFailure(err) {
			return nil, newError(CategoryWriteProtected, op, "tag is write-protected", err)
		}
		e.log.Debug().Err(err).Str("strategy", s.name).Msg("format strategy failed")
		lastErr = err
	}

	return nil, fmt.Errorf("all format strategies failed: %w", lastErr)
}

// formatViaFormatable writes an empty record through the dedicated
// formatable technology path. Only truly blank tags acquire under it.
func (e *Engine) formatViaFormatable(ctx context.Context) (*FormatResult, error) {
	return e.formatSession(ctx, TechnologyNdefFormatable, func(ctx context.Context) error {
		message, err := ndef.EmptyTextMessage()
		if err != nil {
			return err
		}
		return e.radio.WriteMessage(ctx, message)
	})
}

// formatViaRawInit writes an empty NDEF TLV directly to the first user
// memory page, establishing minimal NDEF structure on blank ultralight
// tags. Platform-gated: not every NFC stack permits raw writes.
func (e *Engine) formatViaRawInit(ctx context.Context) (*FormatResult, error) {
	return e.formatSession(ctx, TechnologyRaw, func(ctx context.Context) error {
		cmd := make([]byte, 0, 2+len(emptyNdefTLV))
		cmd = append(cmd, cmdWritePage, userMemoryStart)
		cmd = append(cmd, emptyNdefTLV...)
		_, err := e.radio.Transceive(ctx, cmd)
		return err
	})
}

// formatViaOverwrite acquires the tag as already-NDEF and replaces its
// content with an empty record. Works whether the tag was blank-but-capable
// or previously written.
func (e *Engine) formatViaOverwrite(ctx context.Context) (*FormatResult, error) {
	return e.formatSession(ctx, TechnologyNdef, func(ctx context.Context) error {
		message, err := ndef.EmptyTextMessage()
		if err != nil {
			return err
		}
		return e.radio.WriteMessage(ctx, message)
	})
}

// formatSession opens one session under the given technology, captures the
// tag UID when available and runs the strategy body.
func (e *Engine) formatSession(ctx context.Context, tech Technology, fn func(ctx context.Context) error) (*FormatResult, error) {
	result := &FormatResult{}
	err := e.sessionForFormat(ctx, tech, func(ctx context.Context) error {
		if tag, err := e.radio.Tag(ctx); err == nil && tag != nil {
			result.UID = tag.UID()
		}
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// sessionForFormat is withSession without the engine mutex: Format already
// runs inside one operation attempt that holds no session, and its
// strategies must be free to open sessions back to back.
func (e *Engine) sessionForFormat(ctx context.Context, tech Technology, fn func(ctx context.Context) error) error {
	const op = "format"

	if err := e.checkHardware(op); err != nil {
		return err
	}
	if err := e.ensureStarted(); err != nil {
		return newError(CategoryHardwareUnavailable, op, "radio failed to start", err)
	}

	if err := e.radio.RequestTechnology(ctx, tech, e.profile.AcquireTimeout); err != nil {
		return categorizeAcquireError(op, err)
	}
	defer func() {
		if err := e.radio.CancelRequest(context.WithoutCancel(ctx)); err != nil {
			e.log.Debug().Err(err).Str("op", op).Msg("technology release ignored")
		}
	}()

	return fn(ctx)
}
