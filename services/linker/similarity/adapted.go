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

import "strings"

// AdaptedSimilarity scores a cleaned mention against a cleaned label.
//
// # Description
//
// Combines Jaro-Winkler (prefix scale 0.1) with the overlap of the two
// strings' character sets, spaces excluded:
//
//	sim = jaroWinkler(a, b, 0.1) * |A∩B| / max(|A|, |B|)
//
// The character-set factor penalizes pairs that share few distinct
// characters even when Jaro-Winkler alone scores them highly, which happens
// mostly for short strings with a common prefix.
//
// # Inputs
//
//   - a, b: Cleaned strings. Either may be empty.
//
// # Outputs
//
//   - float64: Similarity, 0 when either string has no non-space character.
//
// # Thread Safety
//
// Pure function. Safe for concurrent use.
func AdaptedSimilarity(a, b string) float64 {
	setA := runeSet(withoutSpaces(a))
	setB := runeSet(withoutSpaces(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	ratio := float64(intersectionSize(setA, setB)) / float64(larger)

	return mustJaroWinkler(a, b, DefaultPrefixScale) * ratio
}

func withoutSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
