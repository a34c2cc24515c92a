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

func TestSoundex(t *testing.T) {
	tests := map[string]string{
		"Robert":   "R163",
		"Rupert":   "R163",
		"Ashcraft": "A261",
		"Tymczak":  "T522",
		"Lee":      "L000",
		"O'Hara":   "O600",
	}
	for name, want := range tests {
		got, err := Soundex(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestNYSIIS(t *testing.T) {
	tests := map[string]string{
		"knight":  "NAGT",
		"Chapman": "CAPNAN",
		"Silva":   "SALV",
	}
	for name, want := range tests {
		got, err := NYSIIS(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestMetaphone(t *testing.T) {
	tests := map[string]string{
		"Knight": "NT",
		"Wright": "RT",
		"Philip": "FLP",
		"Smith":  "SM0",
		"Xavier": "SFR",
		"Edge":   "EJ",
		"Judge":  "JJ",
		"Hodges": "HJS",
		"Budget": "BJT",
	}
	for name, want := range tests {
		got, err := Metaphone(name, DefaultMetaphoneLength)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestMetaphone_Truncates(t *testing.T) {
	got, err := Metaphone("Philip", 2)
	require.NoError(t, err)
	assert.Equal(t, "FL", got)
}

func TestMetaphone_InvalidLength(t *testing.T) {
	_, err := Metaphone("Smith", 0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestColognePhonetic(t *testing.T) {
	tests := map[string]string{
		"Wikipedia":           "3412",
		"Müller-Lüdenscheidt": "65752682",
		"Breschnew":           "17863",
		"Meyer":               "67",
	}
	for name, want := range tests {
		got, err := ColognePhonetic(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestDoubleMetaphone(t *testing.T) {
	smith, _, err := DoubleMetaphone("Smith")
	require.NoError(t, err)
	smyth, _, err := DoubleMetaphone("Smyth")
	require.NoError(t, err)
	assert.NotEmpty(t, smith)
	assert.Equal(t, smith, smyth)
}

func TestPhoneticEncoders_EmptyInput(t *testing.T) {
	for _, alg := range Algorithms {
		_, err := Encode(alg, "")
		assert.ErrorIs(t, err, ErrInvalidInput, alg)
	}
}

func TestPhoneticEncoders_NoLetters(t *testing.T) {
	for _, alg := range []string{AlgorithmSoundex, AlgorithmNYSIIS, AlgorithmMetaphone, AlgorithmCologne} {
		_, err := Encode(alg, "1234 --")
		assert.ErrorIs(t, err, ErrInvalidInput, alg)
	}
}

func TestEncode_UnknownAlgorithm(t *testing.T) {
	_, err := Encode("caverphone", "Smith")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
