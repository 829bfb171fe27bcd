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
	"time"

	"github.com/jonboulle/clockwork"
)

// RetryConfig configures the retry controller that wraps radio sessions.
// Tag sessions fail for mundane physical reasons (the tag moved, the field
// collapsed mid-write), so a small number of attempts with a fixed pause in
// between recovers most of them.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (values below 1 are
	// treated as a single attempt).
	MaxAttempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

// RetryableFunc is one attempt of a radio session.
type RetryableFunc func(ctx context.Context) error

// retryWithConfig executes fn up to cfg.MaxAttempts times with a fixed
// delay between attempts. Failures whose category or message indicates user
// cancellation, hardware unavailability or disabled hardware are terminal
// on first occurrence and are never retried.
func retryWithConfig(ctx context.Context, clock clockwork.Clock, cfg RetryConfig, fn RetryableFunc) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("retry context cancelled: %w", err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isTerminalFailure(err) {
			return err
		}
		lastErr = err

		if attempt < attempts-1 {
			if err := sleepWithContext(ctx, clock, cfg.Delay); err != nil {
				return lastErr
			}
		}
	}

	return lastErr
}

// sleepWithContext pauses for the given duration, returning early if the
// context is cancelled.
func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
