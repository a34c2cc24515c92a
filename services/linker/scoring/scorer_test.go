// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EntityLink/services/linker/candidates"
	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/entity"
)

var defaultCutoffs = config.ScoringConfig{
	RelevancyCutoff:  0.0,
	SimilarityCutoff: 0.6,
	TotalScoreCutoff: 0.02,
}

func aggregate(t *testing.T, maxScore float64, docs ...entity.Document) *candidates.Aggregation {
	t.Helper()
	agg, err := candidates.Aggregate(&entity.SearchResult{Docs: docs, MaxScore: maxScore}, defaultCutoffs.RelevancyCutoff)
	require.NoError(t, err)
	return agg
}

func mention(cleaned string) entity.Mention {
	return entity.Mention{Raw: cleaned, Cleaned: cleaned}
}

func TestScore_ExactLabelSingleTopHit(t *testing.T) {
	agg := aggregate(t, 8,
		entity.Document{ID: "<http://dbpedia.org/resource/Paris>", Label: "Paris", Score: 8},
	)

	d := NewScorer(defaultCutoffs).Score(mention("paris"), agg)
	require.NotNil(t, d.Match)
	assert.Equal(t, "<http://dbpedia.org/resource/Paris>", d.Match.ID)
	assert.Equal(t, "Paris", d.Match.Label)
	assert.InDelta(t, 1.0, d.Match.Score, 1e-9)
}

func TestScore_EmptyAggregation(t *testing.T) {
	agg, err := candidates.Aggregate(&entity.SearchResult{
		Docs:     []entity.Document{{ID: "a", Label: "A"}},
		MaxScore: 0,
	}, 0)
	require.ErrorIs(t, err, candidates.ErrDegenerateBatch)

	d := NewScorer(defaultCutoffs).Score(mention("a"), agg)
	assert.Nil(t, d.Match)
	assert.Nil(t, d.Closest)
	assert.Empty(t, d.Ranked)

	assert.Nil(t, NewScorer(defaultCutoffs).Score(mention("a"), nil).Match)
}

func TestScore_CharacterGuardExcludesCandidate(t *testing.T) {
	agg := aggregate(t, 5,
		entity.Document{ID: "x", Label: "abcdxyzw", Score: 5},
	)

	d := NewScorer(defaultCutoffs).Score(mention("abcdefgh"), agg)
	assert.Nil(t, d.Match)
	assert.Empty(t, d.Ranked)
	require.NotNil(t, d.Closest)
	assert.Equal(t, "x", d.Closest.ID)
	assert.Equal(t, "abcdxyzw", d.Closest.Label)
}

func TestScore_TieBreakByID(t *testing.T) {
	agg := aggregate(t, 5,
		entity.Document{ID: "b", Label: "Springfield", Score: 5},
		entity.Document{ID: "a", Label: "Springfield", Score: 5},
	)

	d := NewScorer(defaultCutoffs).Score(mention("springfield"), agg)
	require.NotNil(t, d.Match)
	assert.Equal(t, "a", d.Match.ID)
	assert.InDelta(t, math.Sqrt(0.5), d.Match.Score, 1e-9)
	require.Len(t, d.Ranked, 2)
	assert.Equal(t, "b", d.Ranked[1].CandidateID)

	require.NotNil(t, d.Closest)
	assert.Equal(t, "a", d.Closest.ID)
}

func TestScore_AltLabelCanWin(t *testing.T) {
	agg := aggregate(t, 10,
		entity.Document{ID: "nyc", Label: "New York City", AltLabels: []string{"Big Apple"}, Score: 10},
		entity.Document{ID: "apple", Label: "Apple Inc.", Score: 4},
	)

	d := NewScorer(defaultCutoffs).Score(mention("big apple"), agg)
	require.NotNil(t, d.Match)
	assert.Equal(t, "nyc", d.Match.ID)
	assert.Equal(t, "New York City", d.Match.Label)
	assert.InDelta(t, math.Sqrt(10.0/14.0), d.Match.Score, 1e-9)
}

func TestScore_RelevanceWeighting(t *testing.T) {
	// Equal labels: the more relevant hit wins.
	agg := aggregate(t, 9,
		entity.Document{ID: "a", Label: "Georgia", Score: 1},
		entity.Document{ID: "b", Label: "Georgia", Score: 9},
	)

	d := NewScorer(defaultCutoffs).Score(mention("georgia"), agg)
	require.NotNil(t, d.Match)
	assert.Equal(t, "b", d.Match.ID)
	assert.InDelta(t, math.Sqrt(0.9), d.Match.Score, 1e-9)
}

func TestScore_TotalCutoffReportsClosest(t *testing.T) {
	strict := config.ScoringConfig{SimilarityCutoff: 0.6, TotalScoreCutoff: 0.9}
	agg := aggregate(t, 5,
		entity.Document{ID: "a", Label: "Springfield", Score: 5},
		entity.Document{ID: "b", Label: "Springfield", Score: 5},
	)

	d := NewScorer(strict).Score(mention("springfield"), agg)
	assert.Nil(t, d.Match)
	require.NotNil(t, d.Closest)
	assert.Equal(t, "a", d.Closest.ID)
	assert.Equal(t, "Springfield", d.Closest.Label)
	assert.Len(t, d.Ranked, 2)
}
