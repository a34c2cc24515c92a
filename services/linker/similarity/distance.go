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
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// =============================================================================
// Edit-Based Distances
// =============================================================================

// EditDistance returns the Levenshtein distance between a and b.
//
// # Description
//
// Counts the minimum number of single code point insertions, deletions and
// substitutions needed to turn a into b.
//
// # Inputs
//
//   - a, b: Strings to compare. Neither may be empty.
//
// # Outputs
//
//   - int: Distance, >= 0. Zero when a == b.
//   - error: ErrInvalidInput when either input is empty.
func EditDistance(a, b string) (int, error) {
	if err := requireNonEmpty("EditDistance", a, b); err != nil {
		return 0, err
	}
	return matchr.Levenshtein(a, b), nil
}

// HammingDistance returns the number of positions at which a and b differ.
//
// # Inputs
//
//   - a, b: Strings of equal code point length. Neither may be empty.
//
// # Outputs
//
//   - int: Count of differing positions.
//   - error: ErrInvalidInput on empty input, ErrLengthMismatch when the
//     lengths differ.
func HammingDistance(a, b string) (int, error) {
	if err := requireNonEmpty("HammingDistance", a, b); err != nil {
		return 0, err
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la != lb {
		return 0, fmt.Errorf("%w: HammingDistance: %d != %d code points", ErrLengthMismatch, la, lb)
	}
	d, err := matchr.Hamming(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: HammingDistance: %v", ErrLengthMismatch, err)
	}
	return d, nil
}

// LCSLength returns the length of the longest common subsequence of a and b.
func LCSLength(a, b string) (int, error) {
	if err := requireNonEmpty("LCSLength", a, b); err != nil {
		return 0, err
	}
	return matchr.LongestCommonSubsequence(a, b), nil
}

// =============================================================================
// Set-Based Distances
// =============================================================================

// JaccardDistance returns 1 - |A∩B| / |A∪B| over the code point sets of a and b.
//
// # Description
//
// When the union is empty (both inputs empty) the result is 1.0 by
// convention. Callers should treat that value as a degenerate comparison
// rather than as evidence of dissimilarity.
//
// # Outputs
//
//   - float64: In [0, 1]. 0 means identical character sets.
func JaccardDistance(a, b string) float64 {
	setA, setB := runeSet(a), runeSet(b)

	union := len(setA)
	inter := 0
	for r := range setB {
		if _, ok := setA[r]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1.0
	}
	return 1.0 - float64(inter)/float64(union)
}

// =============================================================================
// Helpers
// =============================================================================

func requireNonEmpty(op, a, b string) error {
	if a == "" || b == "" {
		return fmt.Errorf("%w: %s: inputs must not be empty", ErrInvalidInput, op)
	}
	return nil
}

// runeSet returns the distinct code points of s.
func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}
