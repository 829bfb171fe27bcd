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
	"encoding/json"
	"regexp"
	"strings"
)

// typographicQuotes replaces the curly-quote code points that mobile input
// methods substitute into JSON typed by hand. Tags written through such
// keyboards otherwise fail to parse.
var typographicQuotes = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"„", `"`, // double low-9 quotation mark
	"‟", `"`, // double high-reversed-9 quotation mark
	"‘", "'", // left single quotation mark
	"’", "'", // right single quotation mark
	"′", "'", // prime
	"«", `"`, // left guillemet
	"»", `"`, // right guillemet
)

// bareKeyPattern matches an unquoted object key after '{' or ','. Keys that
// are already quoted start with '"' and do not match.
var bareKeyPattern = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// NormalizeJSON repairs common hand-written JSON defects in decoded tag
// content: typographic quotes, stray control characters, and, if the result
// still fails to parse, unquoted object keys.
func NormalizeJSON(s string) string {
	s = typographicQuotes.Replace(s)
	s = stripControlChars(s)

	if json.Valid([]byte(s)) {
		return s
	}

	quoted := bareKeyPattern.ReplaceAllString(s, `$1"$2":`)
	if json.Valid([]byte(quoted)) {
		return quoted
	}
	return s
}

// stripControlChars removes C0 and C1 control characters.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7F && r <= 0x9F) {
			return -1
		}
		return r
	}, s)
}

// LooksLikeJSON reports whether the trimmed content starts and ends with a
// matching brace or bracket pair. Anything else is treated as opaque text.
func LooksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 {
		return false
	}
	return (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"))
}

// parseJSONObject parses content into a generic object map.
func parseJSONObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// shallowMergeJSON merges the incoming object's keys over the existing
// object's keys; incoming wins on conflict. Both inputs must be JSON
// objects.
func shallowMergeJSON(existing, incoming string) (string, error) {
	base, err := parseJSONObject(existing)
	if err != nil {
		return "", err
	}
	update, err := parseJSONObject(incoming)
	if err != nil {
		return "", err
	}

	for k, v := range update {
		base[k] = v
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return "", err
	}
	return string(merged), nil
}
