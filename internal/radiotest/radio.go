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

// Package radiotest provides a scripted Radio implementation for engine
// tests. It records every session acquisition, release, write and raw
// command so tests can assert on the exact interaction sequence.
package radiotest

import (
	"context"
	"errors"
	"sync"
	"time"

	nfctag "github.com/trackware/go-nfctag"
)

// Radio is a scripted in-memory implementation of nfctag.Radio. The zero
// value is unusable; construct with New, then adjust the exported fields
// before handing it to the engine.
type Radio struct {
	// SupportedFlag and EnabledFlag script hardware availability.
	SupportedFlag bool
	EnabledFlag   bool

	// StartErr fails radio initialization when non-nil.
	StartErr error

	// AcquireErrs fails RequestTechnology per technology. An entry under
	// the empty key applies to every technology without its own entry.
	AcquireErrs map[nfctag.Technology]error

	// CurrentTag is the snapshot Tag returns once TagSequence is drained.
	// nil means no tag in range.
	CurrentTag *nfctag.Tag

	// TagSequence scripts successive Tag calls, consumed front to back.
	// Used to simulate a tag swapped or removed mid-session.
	TagSequence []*nfctag.Tag

	// TagErr fails every Tag call when non-nil.
	TagErr error

	// Message backs ReadMessage; ReadErr overrides it when non-nil.
	Message []byte
	ReadErr error

	// WriteErr fails WriteMessage when non-nil. Successful writes are
	// appended to WrittenMessages.
	WriteErr error

	// TransceiveFn scripts raw command responses. When nil every command
	// answers with an empty frame and no error.
	TransceiveFn func(cmd []byte) ([]byte, error)

	mu sync.Mutex

	// Interaction log, guarded by mu.
	Acquires        int
	Releases        int
	Starts          int
	RequestedTechs  []nfctag.Technology
	WrittenMessages [][]byte
	TransceivedCmds [][]byte
}

// New returns a radio scripted as present, enabled and with no tag in range.
func New() *Radio {
	return &Radio{
		SupportedFlag: true,
		EnabledFlag:   true,
	}
}

// WithTag returns a radio scripted with the given tag already in range.
func WithTag(tag *nfctag.Tag) *Radio {
	r := New()
	r.CurrentTag = tag
	return r
}

// Supported implements nfctag.Radio.
func (r *Radio) Supported() bool { return r.SupportedFlag }

// Enabled implements nfctag.Radio.
func (r *Radio) Enabled() bool { return r.EnabledFlag }

// Start implements nfctag.Radio.
func (r *Radio) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Starts++
	return r.StartErr
}

// Cleanup implements nfctag.Radio.
func (r *Radio) Cleanup() error { return nil }

// RequestTechnology implements nfctag.Radio. Each granted request counts as
// one acquisition; tests pair it against Releases to verify that every
// session is released on every exit path.
func (r *Radio) RequestTechnology(_ context.Context, tech nfctag.Technology, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RequestedTechs = append(r.RequestedTechs, tech)

	if err, ok := r.AcquireErrs[tech]; ok && err != nil {
		return err
	}
	if err, ok := r.AcquireErrs[nfctag.Technology("")]; ok && err != nil {
		return err
	}
	r.Acquires++
	return nil
}

// Tag implements nfctag.Radio, consuming TagSequence before falling back to
// CurrentTag.
func (r *Radio) Tag(_ context.Context) (*nfctag.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.TagErr != nil {
		return nil, r.TagErr
	}
	if len(r.TagSequence) > 0 {
		tag := r.TagSequence[0]
		r.TagSequence = r.TagSequence[1:]
		return tag, nil
	}
	return r.CurrentTag, nil
}

// ReadMessage implements nfctag.Radio.
func (r *Radio) ReadMessage(_ context.Context) ([]byte, error) {
	if r.ReadErr != nil {
		return nil, r.ReadErr
	}
	if r.Message == nil {
		return nil, errors.New("no message on tag")
	}
	return append([]byte(nil), r.Message...), nil
}

// WriteMessage implements nfctag.Radio, recording the written bytes.
func (r *Radio) WriteMessage(_ context.Context, message []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.WriteErr != nil {
		return r.WriteErr
	}
	stored := append([]byte(nil), message...)
	r.Message = stored
	r.WrittenMessages = append(r.WrittenMessages, stored)
	return nil
}

// Transceive implements nfctag.Radio, recording the raw command.
func (r *Radio) Transceive(_ context.Context, command []byte) ([]byte, error) {
	r.mu.Lock()
	r.TransceivedCmds = append(r.TransceivedCmds, append([]byte(nil), command...))
	fn := r.TransceiveFn
	r.mu.Unlock()

	if fn != nil {
		return fn(command)
	}
	return []byte{}, nil
}

// CancelRequest implements nfctag.Radio.
func (r *Radio) CancelRequest(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Releases++
	return nil
}

// LastWritten returns the most recent message written to the radio, or nil.
func (r *Radio) LastWritten() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.WrittenMessages) == 0 {
		return nil
	}
	return r.WrittenMessages[len(r.WrittenMessages)-1]
}
