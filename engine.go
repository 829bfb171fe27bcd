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

// Package nfctag implements an NDEF proximity-tag interaction engine:
// reading, writing, formatting and password-locking small NDEF-capable
// radio tags used to identify physical devices. The platform radio stack
// is supplied by the host through the Radio interface; the engine drives
// sessions, validates tags, runs the content codec and maps every failure
// to a stable category before it reaches the caller.
package nfctag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sasha-s/go-deadlock"
)

// Engine drives radio sessions against proximity tags. One engine instance
// serves the whole process; it holds configuration only, plus the mutex
// enforcing the at-most-one-active-session invariant. Construct it once and
// pass it by reference to call sites.
type Engine struct {
	radio   Radio
	clock   clockwork.Clock
	log     zerolog.Logger
	profile SessionProfile
	retry   RetryConfig

	mu      deadlock.Mutex
	started bool
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger attaches a structured logger. The engine is silent by default.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock substitutes the time source, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRetryConfig overrides the profile-derived retry settings.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(e *Engine) { e.retry = cfg }
}

// New creates an engine over the given radio with platform session tuning.
func New(radio Radio, profile SessionProfile, opts ...Option) *Engine {
	e := &Engine{
		radio:   radio,
		profile: profile,
		retry:   profile.retryConfig(),
		clock:   clockwork.NewRealClock(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsAvailable reports whether the device has NFC hardware and it is
// switched on.
func (e *Engine) IsAvailable() bool {
	return e.radio.Supported() && e.radio.Enabled()
}

// CancelOperation requests release of any in-flight technology acquisition.
// Best-effort: errors from an absent or already-completed session are
// swallowed.
func (e *Engine) CancelOperation(ctx context.Context) {
	if err := e.radio.CancelRequest(ctx); err != nil {
		e.log.Debug().Err(err).Msg("cancel request ignored")
	}
}

// runOperation wraps a session function with the retry controller and the
// operation-boundary error conversion. No raw radio error and no panic
// escapes past this point.
func (e *Engine) runOperation(ctx context.Context, op string, tech Technology, timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(CategoryUnknown, op, fmt.Sprintf("unexpected fault: %v", r), nil)
		}
	}()

	attempt := 0
	err = retryWithConfig(ctx, e.clock, e.retry, func(ctx context.Context) error {
		attempt++
		sessionErr := e.withSession(ctx, op, tech, timeout, fn)
		if sessionErr != nil {
			e.log.Debug().Err(sessionErr).Int("attempt", attempt).Str("op", op).
				Msg("session attempt failed")
		}
		return sessionErr
	})
	return asCategorized(op, err)
}

// runSessionless wraps fn with the retry controller, engine mutex and
// operation boundary, but leaves session acquisition to fn. Format uses it
// to open one session per strategy within a single attempt.
func (e *Engine) runSessionless(ctx context.Context, op string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(CategoryUnknown, op, fmt.Sprintf("unexpected fault: %v", r), nil)
		}
	}()

	err = retryWithConfig(ctx, e.clock, e.retry, func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		return fn(ctx)
	})
	return asCategorized(op, err)
}

// withSession runs fn inside one acquired radio session. The technology is
// released in a deferred call on every exit path.
func (e *Engine) withSession(ctx context.Context, op string, tech Technology, timeout time.Duration, fn func(ctx context.Context) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkHardware(op); err != nil {
		return err
	}
	if err := e.ensureStarted(); err != nil {
		return newError(CategoryHardwareUnavailable, op, "radio failed to start", err)
	}

	if err := e.radio.RequestTechnology(ctx, tech, timeout); err != nil {
		return categorizeAcquireError(op, err)
	}
	defer func() {
		if err := e.radio.CancelRequest(context.WithoutCancel(ctx)); err != nil {
			e.log.Debug().Err(err).Str("op", op).Msg("technology release ignored")
		}
	}()

	return fn(ctx)
}

// checkHardware verifies NFC hardware presence and state before a session.
func (e *Engine) checkHardware(op string) error {
	if !e.radio.Supported() {
		return newError(CategoryHardwareUnavailable, op, "NFC is not supported on this device", nil)
	}
	if !e.radio.Enabled() {
		return newError(CategoryHardwareUnavailable, op, "NFC is disabled", nil)
	}
	return nil
}

// ensureStarted initializes the radio subsystem once per engine. The radio
// Start contract is idempotent, so a repeat call after Cleanup is safe.
func (e *Engine) ensureStarted() error {
	if e.started {
		return nil
	}
	if err := e.radio.Start(); err != nil {
		return err
	}
	e.started = true
	return nil
}

// categorizeAcquireError maps technology-request failures onto categories:
// cancellation-flavored messages become UserCancelled, timeout-flavored
// ones NoTagDetected.
func categorizeAcquireError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case isCancellationFailure(err):
		return newError(CategoryUserCancelled, op, "session cancelled", err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"),
		strings.Contains(msg, "deadline"):
		return newError(CategoryNoTagDetected, op, "no tag detected before timeout", err)
	default:
		return newError(CategoryUnknown, op, "technology request failed", err)
	}
}

// detectAndValidate fetches the current tag snapshot and validates it.
func (e *Engine) detectAndValidate(ctx context.Context, op string) (*Tag, *Validation, error) {
	tag, err := e.radio.Tag(ctx)
	if err != nil {
		return nil, nil, newError(CategoryNoTagDetected, op, "tag snapshot failed", err)
	}
	if tag == nil {
		return nil, nil, newError(CategoryNoTagDetected, op, "no tag in range", ErrNoTagDetected)
	}

	validation, err := ValidateTag(tag)
	if err != nil {
		return nil, nil, err
	}
	if validation.WriteRestricted {
		e.log.Warn().Str("uid", tag.UID()).Msg("tag reports itself non-writable")
	}
	return tag, validation, nil
}
