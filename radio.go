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
	"time"
)

// Technology is the tag access mode requested for a radio session.
type Technology string

const (
	// TechnologyNdef acquires a tag that already carries NDEF structure.
	TechnologyNdef Technology = "ndef"
	// TechnologyNdefFormatable acquires a blank tag that can be formatted
	// with an initial NDEF structure. Not available on every platform.
	TechnologyNdefFormatable Technology = "ndef-formatable"
	// TechnologyRaw acquires the tag for raw command access without NDEF
	// structure, used for low-level page writes.
	TechnologyRaw Technology = "raw"
)

// Radio is the platform proximity interface the engine drives. The host
// application supplies an implementation bound to its NFC stack; the engine
// never touches hardware directly.
//
// Implementations must tolerate repeated Start and Cleanup calls and must
// treat CancelRequest on an absent or already-completed session as a no-op.
type Radio interface {
	// Supported reports whether the device has NFC hardware at all.
	Supported() bool
	// Enabled reports whether the NFC hardware is currently switched on.
	Enabled() bool
	// Start initializes the radio subsystem. Idempotent.
	Start() error
	// Cleanup releases the radio subsystem. Idempotent.
	Cleanup() error
	// RequestTechnology blocks until a tag supporting the requested
	// technology enters range, or the timeout elapses, or the request is
	// cancelled. Errors should carry a cancellation- or timeout-flavored
	// message so the engine can categorize them.
	RequestTechnology(ctx context.Context, tech Technology, timeout time.Duration) error
	// Tag returns a snapshot of the currently-acquired tag, or nil when
	// no tag is in range.
	Tag(ctx context.Context) (*Tag, error)
	// ReadMessage reads the tag's current NDEF message bytes.
	ReadMessage(ctx context.Context) ([]byte, error)
	// WriteMessage replaces the tag's NDEF message bytes.
	WriteMessage(ctx context.Context, message []byte) error
	// Transceive sends a raw command frame to the tag and returns its raw
	// response. Used only by the password-protection path.
	Transceive(ctx context.Context, command []byte) ([]byte, error)
	// CancelRequest releases any in-flight technology request. Best-effort.
	CancelRequest(ctx context.Context) error
}

// SessionProfile tunes session behavior per platform family. The two mobile
// host families differ in how long the system gives the user to position
// the tag and in whether raw low-level writes are permitted, so the host
// app picks the matching preset when constructing the engine.
type SessionProfile struct {
	// AcquireTimeout bounds how long RequestTechnology waits for a tag.
	AcquireTimeout time.Duration
	// MaxAttempts is the session retry budget.
	MaxAttempts int
	// RetryDelay is the fixed pause between session attempts.
	RetryDelay time.Duration
	// RawFormatSupported gates the raw page-initialization format strategy,
	// which not every platform NFC stack exposes.
	RawFormatSupported bool
}

// AndroidProfile returns session tuning for Android hosts: a shorter
// acquisition window (the app draws its own prompt) and a larger retry
// budget, with raw command writes available.
func AndroidProfile() SessionProfile {
	return SessionProfile{
		AcquireTimeout:     10 * time.Second,
		MaxAttempts:        3,
		RetryDelay:         500 * time.Millisecond,
		RawFormatSupported: true,
	}
}

// IOSProfile returns session tuning for iOS hosts: the system scanning
// sheet benefits from a longer user-positioning window, retries are
// capped lower, and raw command writes are not available for formatting.
func IOSProfile() SessionProfile {
	return SessionProfile{
		AcquireTimeout:     30 * time.Second,
		MaxAttempts:        2,
		RetryDelay:         500 * time.Millisecond,
		RawFormatSupported: false,
	}
}

// retryConfig derives the retry controller settings from the profile.
func (p SessionProfile) retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: p.MaxAttempts,
		Delay:       p.RetryDelay,
	}
}
