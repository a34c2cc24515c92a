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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiceCoefficient(t *testing.T) {
	got, err := DiceCoefficient("night", "nacht")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, got, 1e-9)

	got, err = DiceCoefficient("abc", "xyz")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestDiceCoefficient_Identity(t *testing.T) {
	for _, s := range []string{"a", "ab", "paris", "mississippi"} {
		got, err := DiceCoefficient(s, s)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got, 1e-12, s)
	}
}

func TestDiceCoefficient_EmptyInput(t *testing.T) {
	_, err := DiceCoefficient("", "a")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTverskyIndex_InvalidWeights(t *testing.T) {
	for _, w := range [][2]float64{{0, 1}, {1, 0}, {-1, 1}, {1, -0.5}} {
		_, err := TverskyIndex("abc", "abd", w[0], w[1])
		assert.ErrorIs(t, err, ErrInvalidParameter, "alpha=%g beta=%g", w[0], w[1])
	}
}

func TestTverskyIndex_EmptyInput(t *testing.T) {
	_, err := TverskyIndex("", "abd", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTverskyIndex_SymmetricWhenWeightsEqual(t *testing.T) {
	pairs := [][2]string{{"night", "nacht"}, {"paris", "parish"}, {"new york", "york"}}
	for _, p := range pairs {
		ab, err := TverskyIndex(p[0], p[1], 0.7, 0.7)
		require.NoError(t, err)
		ba, err := TverskyIndex(p[1], p[0], 0.7, 0.7)
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 1e-12)
	}
}

func TestTverskyIndex_AsymmetricWhenWeightsDiffer(t *testing.T) {
	ab, err := TverskyIndex("new york", "york", 0.2, 0.8)
	require.NoError(t, err)
	ba, err := TverskyIndex("york", "new york", 0.2, 0.8)
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)
}

func TestTverskyIndex_DiceRelationship(t *testing.T) {
	pairs := [][2]string{{"night", "nacht"}, {"paris", "parish"}, {"berlin", "bern"}, {"a", "a"}}
	for _, p := range pairs {
		tv, err := TverskyIndex(p[0], p[1], 1, 1)
		require.NoError(t, err)
		dice, err := DiceCoefficient(p[0], p[1])
		require.NoError(t, err)
		assert.InDelta(t, dice, 2*tv/(1+tv), 1e-9, "%s/%s", p[0], p[1])
	}
}
