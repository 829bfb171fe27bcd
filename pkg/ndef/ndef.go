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

// Package ndef encodes and decodes NDEF text-record content for proximity
// tags. Encoding produces a single UTF-8 text record with language "en".
// Decoding degrades gracefully through three strategies so content written
// by other stacks, or slightly mangled by flaky radio sessions, still reads.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"

	gondef "github.com/hsanjuan/go-ndef"
)

// Codec errors.
var (
	// ErrEncodeFailed is returned when a message could not be built.
	ErrEncodeFailed = errors.New("ndef: encoding failed")
	// ErrDecodeFailed is returned when every decode strategy failed.
	ErrDecodeFailed = errors.New("ndef: all decode strategies failed")
	// ErrNoTextRecord is returned when a message holds no text record.
	ErrNoTextRecord = errors.New("ndef: no text record in message")
	// ErrMessageTooLarge is returned when a message exceeds the TLV
	// long-format limit.
	ErrMessageTooLarge = errors.New("ndef: message too large for TLV")
)

// Record header flags and masks.
const (
	flagMB  = 0x80 // Message Begin
	flagME  = 0x40 // Message End
	flagSR  = 0x10 // Short Record
	flagIL  = 0x08 // ID Length present
	tnfMask = 0x07

	tnfWellKnown = 0x01

	textRecordType = "T"
)

// EncodeTextMessage wraps text as a single NDEF text record (language "en",
// UTF-8) and returns the marshaled message bytes.
func EncodeTextMessage(text string) ([]byte, error) {
	rec := gondef.NewTextRecord(text, "en")
	rec.SetMB(true)
	rec.SetME(true)

	msg := &gondef.Message{Records: []*gondef.Record{rec}}
	data, err := msg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return data, nil
}

// EmptyTextMessage returns the marshaled bytes of a message holding one
// empty text record, used when clearing a tag.
func EmptyTextMessage() ([]byte, error) {
	return EncodeTextMessage("")
}

// DecodeMessageText extracts and decodes the first text record from
// marshaled message bytes.
func DecodeMessageText(message []byte) (string, error) {
	payload, err := FirstTextPayload(message)
	if err != nil {
		return "", err
	}
	return DecodeText(payload)
}

// FirstTextPayload returns the raw payload of the first text record in a
// marshaled message. It parses with the standard decoder first and falls
// back to a manual header walk when that fails.
func FirstTextPayload(message []byte) ([]byte, error) {
	if payload, err := firstTextPayloadStandard(message); err == nil {
		return payload, nil
	}
	return firstTextPayloadManual(message)
}

// firstTextPayloadStandard uses go-ndef to locate the first text record.
// The upstream decoder assumes well-formed input; a fault on mangled bytes
// counts as a miss for this strategy.
func firstTextPayloadStandard(message []byte) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("ndef: standard parse fault: %v", r)
		}
	}()

	msg := &gondef.Message{}
	if _, err := msg.Unmarshal(message); err != nil {
		return nil, fmt.Errorf("ndef: unmarshal failed: %w", err)
	}

	for _, rec := range msg.Records {
		if rec.TNF() != gondef.NFCForumWellKnownType || rec.Type() != textRecordType {
			continue
		}
		recPayload, err := rec.Payload()
		if err != nil {
			return nil, fmt.Errorf("ndef: record payload: %w", err)
		}
		return recPayload.Marshal(), nil
	}
	return nil, ErrNoTextRecord
}

// firstTextPayloadManual walks record headers by hand, independent of the
// standard decoder.
func firstTextPayloadManual(message []byte) ([]byte, error) {
	offset := 0
	for offset < len(message) {
		header, err := parseRecordHeader(message, offset)
		if err != nil {
			return nil, err
		}
		if header.tnf == tnfWellKnown && header.recType == textRecordType {
			return message[header.payloadStart : header.payloadStart+header.payloadLen], nil
		}
		if header.me {
			break
		}
		offset = header.payloadStart + header.payloadLen
	}
	return nil, ErrNoTextRecord
}

type recordHeader struct {
	recType      string
	payloadStart int
	payloadLen   int
	tnf          byte
	me           bool
}

// parseRecordHeader decodes one record header starting at offset.
func parseRecordHeader(data []byte, offset int) (*recordHeader, error) {
	if offset+2 >= len(data) {
		return nil, errors.New("ndef: truncated record header")
	}

	flags := data[offset]
	h := &recordHeader{
		tnf: flags & tnfMask,
		me:  flags&flagME != 0,
	}

	typeLen := int(data[offset+1])
	pos := offset + 2

	if flags&flagSR != 0 {
		if pos >= len(data) {
			return nil, errors.New("ndef: truncated short record")
		}
		h.payloadLen = int(data[pos])
		pos++
	} else {
		if pos+4 > len(data) {
			return nil, errors.New("ndef: truncated long record")
		}
		h.payloadLen = int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
	}

	idLen := 0
	if flags&flagIL != 0 {
		if pos >= len(data) {
			return nil, errors.New("ndef: truncated record id length")
		}
		idLen = int(data[pos])
		pos++
	}

	if pos+typeLen > len(data) {
		return nil, errors.New("ndef: truncated record type")
	}
	h.recType = string(data[pos : pos+typeLen])
	pos += typeLen + idLen

	if pos+h.payloadLen > len(data) {
		return nil, errors.New("ndef: truncated record payload")
	}
	h.payloadStart = pos
	return h, nil
}

// WrapTLV wraps marshaled message bytes in the type-2-tag TLV container:
// an 0x03 header with a short or long length field, and the 0xFE
// terminator byte.
func WrapTLV(message []byte) ([]byte, error) {
	length := len(message)

	var header []byte
	switch {
	case length < 0xFF:
		header = []byte{0x03, byte(length)}
	case length <= 0xFFFF:
		header = []byte{0x03, 0xFF, byte(length >> 8), byte(length)}
	default:
		return nil, ErrMessageTooLarge
	}

	out := make([]byte, 0, len(header)+length+1)
	out = append(out, header...)
	out = append(out, message...)
	out = append(out, 0xFE)
	return out, nil
}

// UnwrapTLV extracts the message bytes from a TLV container, scanning past
// any leading non-NDEF TLV blocks. Returns the input unchanged when no
// container is present, since radios differ on whether they strip it.
func UnwrapTLV(data []byte) []byte {
	for i := 0; i+1 < len(data); i++ {
		if data[i] != 0x03 {
			continue
		}
		if data[i+1] != 0xFF {
			length := int(data[i+1])
			if i+2+length <= len(data) {
				return data[i+2 : i+2+length]
			}
			continue
		}
		if i+4 <= len(data) {
			length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
			if i+4+length <= len(data) {
				return data[i+4 : i+4+length]
			}
		}
	}
	return data
}
