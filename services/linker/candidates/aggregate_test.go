// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package candidates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "paris", NormalizeLabel("Paris"))
	assert.Equal(t, "queen", NormalizeLabel("Queen (band)"))
	assert.Equal(t, "a", NormalizeLabel("A (x) B (y)"))
	assert.Equal(t, "", NormalizeLabel("(only)"))
	assert.Equal(t, "new york", NormalizeLabel("  New York "))
}

func TestAggregate_Degenerate(t *testing.T) {
	_, err := Aggregate(nil, 0)
	assert.ErrorIs(t, err, ErrDegenerateBatch)

	_, err = Aggregate(&entity.SearchResult{MaxScore: 3}, 0)
	assert.ErrorIs(t, err, ErrDegenerateBatch)

	agg, err := Aggregate(&entity.SearchResult{
		Docs:     []entity.Document{{ID: "a", Label: "A", Score: 0}},
		MaxScore: 0,
	}, 0)
	assert.ErrorIs(t, err, ErrDegenerateBatch)
	require.NotNil(t, agg)
	assert.Equal(t, 0, agg.Len())
}

func TestAggregate_RelevancyCutoff(t *testing.T) {
	res := &entity.SearchResult{
		MaxScore: 10,
		Docs: []entity.Document{
			{ID: "a", Label: "Alpha", Score: 10},
			{ID: "b", Label: "Beta", Score: 5},
			{ID: "c", Label: "Gamma", Score: 2},
		},
	}

	agg, err := Aggregate(res, 0.3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, agg.Order)
	assert.Equal(t, 15.0, agg.Sum)
	assert.NotContains(t, agg.Variants, "c")

	// The cutoff is exclusive.
	agg, err = Aggregate(res, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, agg.Order)
}

func TestAggregate_AltLabelsScopedPerHit(t *testing.T) {
	res := &entity.SearchResult{
		MaxScore: 10,
		Docs: []entity.Document{
			{ID: "a", Label: "Alpha", AltLabels: []string{"Al", "Alph (letter)"}, Score: 10},
			{ID: "b", Label: "Beta", Score: 8},
			{ID: "c", Label: "Gamma", AltLabels: []string{"G"}, Score: 0},
		},
	}

	agg, err := Aggregate(res, 0)
	require.NoError(t, err)

	assert.Equal(t, []entity.LabelVariant{
		{CandidateID: "a", Label: "alpha", Score: 10},
		{CandidateID: "a", Label: "al", Score: 10},
		{CandidateID: "a", Label: "alph", Score: 10},
	}, agg.Variants["a"])
	assert.Equal(t, []entity.LabelVariant{
		{CandidateID: "b", Label: "beta", Score: 8},
	}, agg.Variants["b"])
	assert.NotContains(t, agg.Variants, "c")
	assert.Equal(t, "Alpha", agg.Primary["a"])
}

func TestAggregate_DuplicateIDsMerge(t *testing.T) {
	res := &entity.SearchResult{
		MaxScore: 10,
		Docs: []entity.Document{
			{ID: "a", Label: "Alpha", Score: 6},
			{ID: "b", Label: "Beta", Score: 10},
			{ID: "a", Label: "Alpha Two", AltLabels: []string{"A2"}, Score: 9},
		},
	}

	agg, err := Aggregate(res, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, agg.Order)
	assert.Equal(t, 25.0, agg.Sum)
	assert.Equal(t, "Alpha", agg.Primary["a"])
	assert.Equal(t, 9.0, agg.Relevance["a"])
	require.Len(t, agg.Variants["a"], 3)
	assert.Equal(t, "alpha two", agg.Variants["a"][1].Label)
	assert.Equal(t, 9.0, agg.Variants["a"][1].Score)
}

func TestAggregate_SkipsEmptyID(t *testing.T) {
	agg, err := Aggregate(&entity.SearchResult{
		MaxScore: 4,
		Docs: []entity.Document{
			{ID: "", Label: "Ghost", Score: 4},
			{ID: "x", Label: "X", Score: 2},
		},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, agg.Order)
	assert.Equal(t, 2.0, agg.Sum)
}

func TestNormalizeLabel_SameLoweringAsMentions(t *testing.T) {
	for _, label := range []string{"ΟΔΥΣΣΕΥΣ", "İzmir", "Straße"} {
		assert.Equal(t, similarity.Lower(label), NormalizeLabel(label), label)
	}
	assert.Equal(t, "οδυσσευς", NormalizeLabel("ΟΔΥΣΣΕΥΣ (hero)"))
}
