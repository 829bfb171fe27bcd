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

package ndef

import (
	"errors"
	"fmt"
	"unicode/utf8"

	gondef "github.com/hsanjuan/go-ndef"
	"golang.org/x/text/encoding/unicode"
)

// Text record payload constants. The first payload byte is a status byte:
// bit 7 selects UTF-16, bits 0-5 give the language code length.
const (
	textUTF16Flag    = 0x80
	textLangCodeMask = 0x3F
)

// Text payload errors.
var (
	ErrTextPayloadTooShort  = errors.New("ndef: text payload too short")
	ErrTextPayloadTruncated = errors.New("ndef: text payload truncated")
)

// EncodeTextPayload builds a text record payload (status byte, language
// code, UTF-8 text) without message framing.
func EncodeTextPayload(text, language string) []byte {
	if language == "" {
		language = "en"
	}
	if len(language) > textLangCodeMask {
		language = language[:textLangCodeMask]
	}

	payload := make([]byte, 1+len(language)+len(text))
	payload[0] = byte(len(language)) // UTF-8, no UTF-16 flag
	copy(payload[1:], language)
	copy(payload[1+len(language):], text)
	return payload
}

// DecodeText decodes a text record payload. Three strategies run in order,
// first success wins: the standard decoder, a manual byte-level decode with
// the same logic, and a raw decode that strips the language prefix and
// ignores the encoding bit. Callers must not assume which strategy was used.
func DecodeText(payload []byte) (string, error) {
	if text, err := decodeTextStandard(payload); err == nil {
		return text, nil
	}
	if text, err := decodeTextManual(payload); err == nil {
		return text, nil
	}
	if text, err := decodeTextRaw(payload); err == nil {
		return text, nil
	}
	return "", ErrDecodeFailed
}

// decodeTextStandard reframes the payload as a one-record message and lets
// go-ndef parse it. The upstream decoder assumes well-formed input; a fault
// on mangled bytes counts as a miss for this strategy.
func decodeTextStandard(payload []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("ndef: standard decode fault: %v", r)
		}
	}()

	if len(payload) == 0 || len(payload) > 0xFF {
		return "", ErrTextPayloadTooShort
	}

	// MB|ME|SR, well-known TNF, type "T".
	framed := make([]byte, 0, 4+len(payload))
	framed = append(framed, flagMB|flagME|flagSR|tnfWellKnown, 0x01, byte(len(payload)), 'T')
	framed = append(framed, payload...)

	msg := &gondef.Message{}
	if _, err := msg.Unmarshal(framed); err != nil {
		return "", fmt.Errorf("ndef: standard decode: %w", err)
	}
	if len(msg.Records) == 0 {
		return "", ErrNoTextRecord
	}

	rec, err := msg.Records[0].Payload()
	if err != nil {
		return "", fmt.Errorf("ndef: standard decode payload: %w", err)
	}
	return rec.String(), nil
}

// decodeTextManual parses the status byte, strips the language code and
// decodes the remainder per the declared encoding. Independent of the
// standard decoder on purpose.
func decodeTextManual(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", ErrTextPayloadTooShort
	}

	status := payload[0]
	langLen := int(status & textLangCodeMask)
	if len(payload) < 1+langLen {
		return "", ErrTextPayloadTruncated
	}

	textBytes := payload[1+langLen:]
	if status&textUTF16Flag != 0 {
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(textBytes)
		if err != nil {
			return "", fmt.Errorf("ndef: utf-16 decode: %w", err)
		}
		return string(decoded), nil
	}

	if !utf8.Valid(textBytes) {
		return "", errors.New("ndef: invalid utf-8 text")
	}
	return string(textBytes), nil
}

// decodeTextRaw strips the language-length-derived prefix and decodes the
// remainder as UTF-8 regardless of the encoding bit. Last resort for
// content written by stacks that set the status byte wrong.
func decodeTextRaw(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", ErrTextPayloadTooShort
	}

	langLen := int(payload[0] & textLangCodeMask)
	if len(payload) < 1+langLen {
		return "", ErrTextPayloadTruncated
	}
	return string(payload[1+langLen:]), nil
}
