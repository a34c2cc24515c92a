// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/scoring"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

func TestReadMentions(t *testing.T) {
	got, err := readMentions(strings.NewReader("Paris\n\n  Berlin  \r\n\t\nparis\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris", "Berlin", "paris"}, got)
}

func TestEncodeAll(t *testing.T) {
	pc, err := encodeAll("Robert", similarity.DefaultMetaphoneLength)
	require.NoError(t, err)
	assert.Equal(t, "R163", pc.Codes[similarity.AlgorithmSoundex])
	assert.Len(t, pc.Codes, len(similarity.Algorithms))

	pc, err = encodeAll("1234", similarity.DefaultMetaphoneLength)
	require.NoError(t, err)
	assert.Equal(t, "-", pc.Codes[similarity.AlgorithmSoundex])
}

func TestRenderResult(t *testing.T) {
	out := renderResult("Paris", entity.Result{
		Outcome: entity.OutcomeMatched,
		Match:   &entity.ScoredMatch{ID: "<http://dbpedia.org/resource/Paris>", Label: "Paris", Score: 0.97},
		Closest: &entity.Closest{ID: "<http://dbpedia.org/resource/Paris>", Label: "Paris"},
	})
	assert.Contains(t, out, "http://dbpedia.org/resource/Paris")
	assert.Contains(t, out, "0.9700")
	assert.NotContains(t, out, "Closest")

	out = renderResult("Atlantis", entity.Result{Outcome: entity.OutcomeNoMatch, Reason: "no candidates"})
	assert.Contains(t, out, "no_match")
	assert.Contains(t, out, "no candidates")
}

func TestRenderVariants(t *testing.T) {
	out := renderVariants([]scoring.VariantScore{
		{CandidateID: "<a>", Label: "paris", Similarity: 1, Relevance: 8, Composite: 0.9},
	})
	assert.Contains(t, out, "paris")
	assert.Contains(t, out, "0.9000")

	assert.Contains(t, renderVariants(nil), "no variant")
}

func TestRenderReport(t *testing.T) {
	r, err := similarity.Compare("martha", "marhta")
	require.NoError(t, err)
	out := renderReport(r)
	assert.Contains(t, out, "Jaro-Winkler")
	assert.Contains(t, out, "0.9611")
}

func TestCompareCommand_JSON(t *testing.T) {
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	var buf bytes.Buffer
	compareCmd.SetOut(&buf)
	t.Cleanup(func() { compareCmd.SetOut(nil) })
	require.NoError(t, runCompareCommand(compareCmd, []string{"martha", "marhta"}))

	var r similarity.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &r))
	assert.Equal(t, "martha", r.A)
	assert.Equal(t, 2, r.EditDistance)
}

func TestPhoneticCommand_Table(t *testing.T) {
	var buf bytes.Buffer
	phoneticCmd.SetOut(&buf)
	t.Cleanup(func() { phoneticCmd.SetOut(nil) })
	metaphoneLen = similarity.DefaultMetaphoneLength

	require.NoError(t, runPhoneticCommand(phoneticCmd, []string{"Robert", "Rupert"}))
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "R163"))
}
