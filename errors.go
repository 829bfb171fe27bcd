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
	"errors"
	"fmt"
	"strings"
)

// Category classifies an operation failure. Every error returned by a
// public Engine operation carries exactly one category; callers never see
// a raw radio-layer error.
type Category string

const (
	// CategoryHardwareUnavailable indicates the radio hardware is missing
	// or switched off.
	CategoryHardwareUnavailable Category = "hardware_unavailable"
	// CategoryUserCancelled indicates the user dismissed the session.
	CategoryUserCancelled Category = "user_cancelled"
	// CategoryNoTagDetected indicates no tag entered range before the
	// acquisition timeout.
	CategoryNoTagDetected Category = "no_tag_detected"
	// CategoryIncompatibleTag indicates the tag cannot hold NDEF data.
	CategoryIncompatibleTag Category = "incompatible_tag"
	// CategoryTagTooSmall indicates the tag capacity is below the minimum
	// required for a text record.
	CategoryTagTooSmall Category = "tag_too_small"
	// CategoryWriteProtected indicates the tag refuses writes.
	CategoryWriteProtected Category = "write_protected"
	// CategoryCapacityExceeded indicates the content does not fit the tag.
	CategoryCapacityExceeded Category = "capacity_exceeded"
	// CategoryConnectionLost indicates the tag left range mid-session.
	CategoryConnectionLost Category = "connection_lost"
	// CategoryDecodeFailure indicates stored content could not be decoded.
	CategoryDecodeFailure Category = "decode_failure"
	// CategoryInvalidInput indicates the caller supplied malformed content.
	CategoryInvalidInput Category = "invalid_input"
	// CategoryWeakPassword indicates the lock password is too short.
	CategoryWeakPassword Category = "weak_password"
	// CategoryIncorrectPassword indicates an unlock attempt was rejected.
	CategoryIncorrectPassword Category = "incorrect_password"
	// CategoryUnknown is the fallback for unexpected faults.
	CategoryUnknown Category = "unknown"
)

// Sentinel errors for conditions signalled between engine internals.
var (
	// ErrNoTagDetected is returned when a session acquired the technology
	// but no tag snapshot is available.
	ErrNoTagDetected = errors.New("no tag detected")
	// ErrTagNotPresent is returned when a tag that was detected earlier in
	// the session no longer responds.
	ErrTagNotPresent = errors.New("tag no longer present")
	// ErrAuthRejected is returned when the tag refused a password
	// authentication command.
	ErrAuthRejected = errors.New("tag rejected authentication")
	// ErrHardwareLockUnavailable is returned when the hardware protection
	// path cannot be attempted on the current tag.
	ErrHardwareLockUnavailable = errors.New("hardware protection unavailable")
	// ErrNotLocked is returned when unlock finds no lock marker on the tag.
	ErrNotLocked = errors.New("tag is not locked")
)

// Error is the categorized failure type returned by every public operation.
type Error struct {
	Err      error
	Category Category
	Op       string
	Message  string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a categorized operation error.
func newError(category Category, op, message string, err error) *Error {
	return &Error{
		Category: category,
		Op:       op,
		Message:  message,
		Err:      err,
	}
}

// CategoryOf extracts the failure category from an error. Errors produced
// outside the engine map to CategoryUnknown.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnknown
}

// asCategorized converts any error into a categorized one, preserving an
// existing category when present. This runs at the operation boundary so
// raw radio errors never escape.
func asCategorized(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(CategoryUnknown, op, err.Error(), err)
}

// terminalMarkers are failure-message fragments that make a session attempt
// not worth retrying: the user backed out, or the hardware is gone.
var terminalMarkers = []string{
	"cancel",
	"unavailable",
	"not available",
	"disabled",
	"not supported",
}

// isTerminalFailure reports whether a failed attempt should short-circuit
// the retry loop.
func isTerminalFailure(err error) bool {
	if err == nil {
		return false
	}
	switch CategoryOf(err) {
	case CategoryUserCancelled, CategoryHardwareUnavailable,
		CategoryIncompatibleTag, CategoryTagTooSmall,
		CategoryCapacityExceeded, CategoryInvalidInput,
		CategoryWeakPassword, CategoryIncorrectPassword,
		CategoryWriteProtected:
		return true
	case CategoryNoTagDetected, CategoryConnectionLost,
		CategoryDecodeFailure, CategoryUnknown:
		// fall through to message inspection
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range terminalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// writeProtectMarkers are failure-message fragments that identify a
// write-protection refusal from the tag or radio layer.
var writeProtectMarkers = []string{
	"write-protect",
	"write protect",
	"read-only",
	"read only",
	"locked",
}

// isWriteProtectFailure reports whether an error indicates the tag refused
// a write due to protection. Format stops trying further strategies when
// this is true.
func isWriteProtectFailure(err error) bool {
	if err == nil {
		return false
	}
	if CategoryOf(err) == CategoryWriteProtected {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range writeProtectMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isCancellationFailure reports whether an error came from the user or
// caller aborting the technology request.
func isCancellationFailure(err error) bool {
	if err == nil {
		return false
	}
	if CategoryOf(err) == CategoryUserCancelled {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "cancel")
}
