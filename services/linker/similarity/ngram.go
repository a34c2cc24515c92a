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

import "fmt"

// DiceCoefficient returns 2|A∩B| / (|A|+|B|) over the distinct character
// bigrams of a and b.
//
// A single code point string has no bigram; the code point itself is used as
// its only gram so that DiceCoefficient(s, s) is 1 for every non-empty s.
//
// Returns ErrInvalidInput when either input is empty.
func DiceCoefficient(a, b string) (float64, error) {
	if err := requireNonEmpty("DiceCoefficient", a, b); err != nil {
		return 0, err
	}
	ga, gb := bigrams(a), bigrams(b)
	inter := intersectionSize(ga, gb)
	return 2 * float64(inter) / float64(len(ga)+len(gb)), nil
}

// TverskyIndex returns |A∩B| / (|A∩B| + alpha|A-B| + beta|B-A|) over the
// distinct character bigrams of a and b.
//
// # Description
//
// Generalizes Jaccard (alpha = beta = 1) and Dice (alpha = beta = 0.5). The
// index is symmetric in its arguments only when alpha == beta.
//
// # Inputs
//
//   - a, b: Strings to compare. Neither may be empty.
//   - alpha: Weight of features unique to a. Must be > 0.
//   - beta: Weight of features unique to b. Must be > 0.
//
// # Outputs
//
//   - float64: In [0, 1].
//   - error: ErrInvalidParameter for non-positive weights, ErrInvalidInput
//     for empty input.
func TverskyIndex(a, b string, alpha, beta float64) (float64, error) {
	if alpha <= 0 || beta <= 0 {
		return 0, fmt.Errorf("%w: TverskyIndex: alpha and beta must be > 0 (got %g, %g)", ErrInvalidParameter, alpha, beta)
	}
	if err := requireNonEmpty("TverskyIndex", a, b); err != nil {
		return 0, err
	}

	ga, gb := bigrams(a), bigrams(b)
	inter := float64(intersectionSize(ga, gb))
	onlyA := float64(len(ga)) - inter
	onlyB := float64(len(gb)) - inter

	return inter / (inter + alpha*onlyA + beta*onlyB), nil
}

// bigrams returns the set of adjacent code point pairs of s.
func bigrams(s string) map[string]struct{} {
	runes := []rune(s)
	if len(runes) < 2 {
		return map[string]struct{}{s: {}}
	}
	set := make(map[string]struct{}, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

func intersectionSize[K comparable](a, b map[K]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
