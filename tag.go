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
	"encoding/hex"
	"fmt"
	"strings"
)

// Manufacturer identifies the chip maker from the UID's first byte, per
// ISO/IEC 7816-6. Only meaningful for 7-byte UIDs.
type Manufacturer string

const (
	// ManufacturerNXP is NXP Semiconductors (0x04), maker of the NTAG line.
	ManufacturerNXP Manufacturer = "NXP"
	// ManufacturerST is STMicroelectronics (0x02).
	ManufacturerST Manufacturer = "STMicroelectronics"
	// ManufacturerInfineon is Infineon Technologies (0x05).
	ManufacturerInfineon Manufacturer = "Infineon"
	// ManufacturerTI is Texas Instruments (0x07).
	ManufacturerTI Manufacturer = "Texas Instruments"
	// ManufacturerUnknown indicates an unrecognized manufacturer code,
	// typically a clone chip.
	ManufacturerUnknown Manufacturer = "Unknown"
)

// Tag is a snapshot of a detected tag, valid for the duration of one radio
// session. It is produced by the Radio when a tag enters range and is never
// persisted; every operation re-detects and re-validates rather than
// trusting a prior session's snapshot.
type Tag struct {
	// Capacity is the declared maximum payload size in bytes, nil when the
	// radio could not determine it.
	Capacity *int
	// Writable reports whether the tag accepts writes, nil when unknown.
	Writable *bool
	// Type is the tag's declared type string as reported by the radio.
	Type string
	// Technologies lists the technology identifiers the tag supports.
	Technologies []string
	// UIDBytes is the tag's unique identifier.
	UIDBytes []byte
	// Records holds the raw payloads of NDEF records already stored on the
	// tag. A nil slice means the radio reported no NDEF message field at
	// all; an empty non-nil slice means the field was present but empty.
	Records [][]byte
}

// UID returns the tag identifier rendered as uppercase hex.
func (t *Tag) UID() string {
	return strings.ToUpper(hex.EncodeToString(t.UIDBytes))
}

// Manufacturer returns the chip manufacturer identified from the UID.
func (t *Tag) Manufacturer() Manufacturer {
	if len(t.UIDBytes) == 0 {
		return ManufacturerUnknown
	}
	switch t.UIDBytes[0] {
	case 0x04:
		return ManufacturerNXP
	case 0x02:
		return ManufacturerST
	case 0x05:
		return ManufacturerInfineon
	case 0x07:
		return ManufacturerTI
	default:
		return ManufacturerUnknown
	}
}

// IsGenuine returns true if the chip appears to be from a known
// manufacturer. Returns false for unknown/clone chips.
func (t *Tag) IsGenuine() bool {
	return t.Manufacturer() != ManufacturerUnknown
}

// typeAndTech joins the declared type and technology strings into one
// lowercased haystack for substring matching.
func (t *Tag) typeAndTech() string {
	parts := make([]string, 0, len(t.Technologies)+1)
	if t.Type != "" {
		parts = append(parts, t.Type)
	}
	parts = append(parts, t.Technologies...)
	return strings.ToLower(strings.Join(parts, " "))
}

// Summary returns a brief description of the tag.
func (t *Tag) Summary() string {
	capacity := "unknown"
	if t.Capacity != nil {
		capacity = fmt.Sprintf("%d bytes", *t.Capacity)
	}
	return fmt.Sprintf("Tag %s (%s, capacity %s, %d records)",
		t.UID(), t.Type, capacity, len(t.Records))
}
