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

const (
	// DefaultPrefixScale is the standard Winkler prefix weight.
	DefaultPrefixScale = 0.1

	// maxWinklerPrefix caps the common prefix considered by JaroWinkler.
	maxWinklerPrefix = 4
)

// JaroDistance returns the Jaro similarity of a and b.
//
// Description:
//
//	The matching window is max(floor(max(|a|,|b|)/2) - 1, 0) code points on
//	each side of a position, inclusive. Matching characters are collected in
//	both directions (a against b and b against a); transpositions are half
//	the number of positions where the two collected sequences disagree.
//	Returns 0 when either direction finds no match.
//
// Inputs:
//   - a, b: Strings to compare. Neither may be empty.
//
// Outputs:
//   - float64: Similarity in [0, 1]; 1 for identical strings.
//   - error: ErrInvalidInput on empty input.
func JaroDistance(a, b string) (float64, error) {
	if err := requireNonEmpty("JaroDistance", a, b); err != nil {
		return 0, err
	}
	return jaro([]rune(a), []rune(b)), nil
}

// JaroWinkler returns the Jaro similarity boosted by the shared prefix.
//
// Description:
//
//	jw = jaro + prefix * prefixScale * (1 - jaro), where prefix is the length
//	of the common prefix capped at four code points. The result is not
//	clamped: a prefixScale above 0.25 can produce values above 1.
//
// Inputs:
//   - a, b: Strings to compare. Neither may be empty.
//   - prefixScale: Prefix weight, normally DefaultPrefixScale.
//
// Outputs:
//   - float64: Boosted similarity.
//   - error: ErrInvalidInput on empty input.
func JaroWinkler(a, b string, prefixScale float64) (float64, error) {
	if err := requireNonEmpty("JaroWinkler", a, b); err != nil {
		return 0, err
	}
	ra, rb := []rune(a), []rune(b)
	j := jaro(ra, rb)
	p := commonPrefix(ra, rb, maxWinklerPrefix)
	return j + float64(p)*prefixScale*(1-j), nil
}

func jaro(a, b []rune) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	window := longest/2 - 1
	if window < 0 {
		window = 0
	}

	commonsA := matchWithin(a, b, window)
	commonsB := matchWithin(b, a, window)
	m1, m2 := len(commonsA), len(commonsB)
	if m1 == 0 || m2 == 0 {
		return 0
	}

	mismatches := 0
	for i := 0; i < m1 && i < m2; i++ {
		if commonsA[i] != commonsB[i] {
			mismatches++
		}
	}
	t := float64(mismatches) / 2.0

	return (float64(m1)/float64(len(a)) +
		float64(m2)/float64(len(b)) +
		(float64(m1)-t)/float64(m1)) / 3.0
}

// matchWithin returns, in order, the runes of src that occur in dst within
// window positions of their own index.
func matchWithin(src, dst []rune, window int) []rune {
	out := make([]rune, 0, len(src))
	for i, r := range src {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window
		if hi > len(dst)-1 {
			hi = len(dst) - 1
		}
		for k := lo; k <= hi; k++ {
			if dst[k] == r {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func commonPrefix(a, b []rune, limit int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// mustJaroWinkler is used where both inputs are known to be non-empty.
func mustJaroWinkler(a, b string, prefixScale float64) float64 {
	jw, err := JaroWinkler(a, b, prefixScale)
	if err != nil {
		panic(fmt.Sprintf("similarity: %v", err))
	}
	return jw
}
