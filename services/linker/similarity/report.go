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

import "errors"

// Report holds every metric for one pair of strings.
//
// Hamming is nil when the inputs differ in length.
type Report struct {
	A                 string  `json:"a"`
	B                 string  `json:"b"`
	EditDistance      int     `json:"edit_distance"`
	Hamming           *int    `json:"hamming,omitempty"`
	LCSLength         int     `json:"lcs_length"`
	Jaccard           float64 `json:"jaccard_distance"`
	Jaro              float64 `json:"jaro"`
	JaroWinkler       float64 `json:"jaro_winkler"`
	Dice              float64 `json:"dice"`
	Tversky           float64 `json:"tversky"`
	AdaptedSimilarity float64 `json:"adapted_similarity"`
}

// Compare computes a Report for a and b. Tversky uses alpha = beta = 0.5.
//
// Returns ErrInvalidInput when either input is empty.
func Compare(a, b string) (*Report, error) {
	if err := requireNonEmpty("Compare", a, b); err != nil {
		return nil, err
	}

	r := &Report{A: a, B: b, Jaccard: JaccardDistance(a, b), AdaptedSimilarity: AdaptedSimilarity(a, b)}

	// Inputs are non-empty, so only Hamming can fail below.
	r.EditDistance, _ = EditDistance(a, b)
	r.LCSLength, _ = LCSLength(a, b)
	r.Jaro, _ = JaroDistance(a, b)
	r.JaroWinkler, _ = JaroWinkler(a, b, DefaultPrefixScale)
	r.Dice, _ = DiceCoefficient(a, b)
	r.Tversky, _ = TverskyIndex(a, b, 0.5, 0.5)

	h, err := HammingDistance(a, b)
	switch {
	case err == nil:
		r.Hamming = &h
	case !errors.Is(err, ErrLengthMismatch):
		return nil, err
	}
	return r, nil
}
