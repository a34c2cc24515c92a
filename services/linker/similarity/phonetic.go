// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package similarity

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// =============================================================================
// Phonetic Encoders
// =============================================================================

// Algorithm names accepted by Encode.
const (
	AlgorithmSoundex         = "soundex"
	AlgorithmNYSIIS          = "nysiis"
	AlgorithmMetaphone       = "metaphone"
	AlgorithmCologne         = "cologne"
	AlgorithmDoubleMetaphone = "double_metaphone"
)

// Algorithms lists every phonetic algorithm in display order.
var Algorithms = []string{
	AlgorithmSoundex,
	AlgorithmNYSIIS,
	AlgorithmMetaphone,
	AlgorithmCologne,
	AlgorithmDoubleMetaphone,
}

// Soundex returns the classic American Soundex code of name (LDDD).
//
// Non-letters are discarded before encoding; "Robert" and "Rupert" both
// encode to R163.
//
// Returns ErrInvalidInput when name is empty or has no ASCII letters.
func Soundex(name string) (string, error) {
	letters, err := asciiLetters("Soundex", name)
	if err != nil {
		return "", err
	}
	return matchr.Soundex(string(letters)), nil
}

// NYSIIS returns the New York State Identification and Intelligence System
// code of name, truncated to six characters.
func NYSIIS(name string) (string, error) {
	if _, err := asciiLetters("NYSIIS", name); err != nil {
		return "", err
	}
	code := matchr.NYSIIS(name)
	if code == "" {
		return "", fmt.Errorf("%w: NYSIIS: %q is not encodable", ErrInvalidInput, name)
	}
	return code, nil
}

// DoubleMetaphone returns the primary and alternate Double Metaphone codes.
func DoubleMetaphone(name string) (string, string, error) {
	if strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("%w: DoubleMetaphone: name must not be empty", ErrInvalidInput)
	}
	primary, alternate := matchr.DoubleMetaphone(name)
	if primary == "" && alternate == "" {
		return "", "", fmt.Errorf("%w: DoubleMetaphone: %q is not encodable", ErrInvalidInput, name)
	}
	return primary, alternate, nil
}

// Encode runs the named phonetic algorithm on name.
//
// # Description
//
// Dispatch helper for callers that select the encoder at runtime (CLI,
// blocking jobs). Metaphone uses DefaultMetaphoneLength. Double Metaphone
// returns "primary/alternate" when the codes differ.
//
// # Inputs
//
//   - algorithm: One of the Algorithm* constants.
//   - name: Name to encode.
//
// # Outputs
//
//   - string: The phonetic code.
//   - error: ErrInvalidParameter for an unknown algorithm, or the encoder's
//     own error.
func Encode(algorithm, name string) (string, error) {
	switch algorithm {
	case AlgorithmSoundex:
		return Soundex(name)
	case AlgorithmNYSIIS:
		return NYSIIS(name)
	case AlgorithmMetaphone:
		return Metaphone(name, DefaultMetaphoneLength)
	case AlgorithmCologne:
		return ColognePhonetic(name)
	case AlgorithmDoubleMetaphone:
		primary, alternate, err := DoubleMetaphone(name)
		if err != nil {
			return "", err
		}
		if alternate == "" || alternate == primary {
			return primary, nil
		}
		return primary + "/" + alternate, nil
	default:
		return "", fmt.Errorf("%w: unknown phonetic algorithm %q", ErrInvalidParameter, algorithm)
	}
}

// asciiLetters upper-cases name and keeps only A-Z.
func asciiLetters(op, name string) ([]rune, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: %s: name must not be empty", ErrInvalidInput, op)
	}
	out := make([]rune, 0, len(name))
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s: %q has no encodable letters", ErrInvalidInput, op, name)
	}
	return out, nil
}

// letterAt returns w[i], or 0 when i is out of range.
func letterAt(w []rune, i int) rune {
	if i < 0 || i >= len(w) {
		return 0
	}
	return w[i]
}

func isVowel(r rune) bool {
	return r == 'A' || r == 'E' || r == 'I' || r == 'O' || r == 'U'
}

func oneOf(r rune, set string) bool {
	return r != 0 && strings.ContainsRune(set, r)
}
