// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring picks the single best candidate for a mention.
//
// Every label variant is compared with the mention using the adapted
// similarity. Variants above the similarity cutoff get a composite score
//
//	composite = similarity * sqrt(relevance / sumOfAcceptedRelevances)
//
// and the best composite wins if it clears the total score cutoff.
package scoring

import (
	"cmp"
	"math"
	"slices"

	"github.com/AleutianAI/EntityLink/services/linker/candidates"
	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

// VariantScore is one label variant that cleared the similarity cutoff.
type VariantScore struct {
	CandidateID string  `json:"id"`
	Label       string  `json:"label"`
	Similarity  float64 `json:"similarity"`
	Relevance   float64 `json:"relevance"`
	Composite   float64 `json:"composite"`
}

// Decision is the scorer's verdict for one mention.
type Decision struct {
	// Match is set when the best composite cleared the total score cutoff.
	Match *entity.ScoredMatch

	// Closest is the accepted candidate with the highest raw relevance,
	// set whenever anything was accepted.
	Closest *entity.Closest

	// Ranked lists every scored variant, best first.
	Ranked []VariantScore
}

// Scorer applies the similarity and total score cutoffs.
//
// Thread Safety: Immutable; safe for concurrent use.
type Scorer struct {
	similarityCutoff float64
	totalCutoff      float64
}

// NewScorer creates a Scorer from the scoring section of cfg.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{
		similarityCutoff: cfg.SimilarityCutoff,
		totalCutoff:      cfg.TotalScoreCutoff,
	}
}

// Score ranks the variants of agg against the cleaned mention.
//
// Description:
//
//	Ranking is by composite descending, then candidate ID ascending, then
//	variant order (primary label before alternates). The match label is
//	the candidate's un-normalized primary label. An aggregation whose Sum
//	is not positive produces an empty decision without dividing.
//
// Inputs:
//
//	m - The mention. Its Cleaned form is compared with every variant.
//	agg - Accepted candidates. May be nil or empty.
//
// Outputs:
//
//	Decision - Match is nil when nothing qualified.
func (s *Scorer) Score(m entity.Mention, agg *candidates.Aggregation) Decision {
	var d Decision
	if agg == nil || agg.Len() == 0 || !(agg.Sum > 0) {
		return d
	}

	d.Closest = closest(agg)

	for _, id := range agg.Order {
		for _, v := range agg.Variants[id] {
			sim := similarity.AdaptedSimilarity(m.Cleaned, v.Label)
			if !(sim > s.similarityCutoff) {
				continue
			}
			d.Ranked = append(d.Ranked, VariantScore{
				CandidateID: id,
				Label:       v.Label,
				Similarity:  sim,
				Relevance:   v.Score,
				Composite:   sim * math.Sqrt(v.Score/agg.Sum),
			})
		}
	}

	slices.SortStableFunc(d.Ranked, func(a, b VariantScore) int {
		if c := cmp.Compare(b.Composite, a.Composite); c != 0 {
			return c
		}
		return cmp.Compare(a.CandidateID, b.CandidateID)
	})

	if len(d.Ranked) > 0 && d.Ranked[0].Composite > s.totalCutoff {
		best := d.Ranked[0]
		d.Match = &entity.ScoredMatch{
			ID:    best.CandidateID,
			Score: best.Composite,
			Label: agg.Primary[best.CandidateID],
		}
	}
	return d
}

// closest returns the accepted candidate with the highest raw relevance,
// ties broken by ID ascending.
func closest(agg *candidates.Aggregation) *entity.Closest {
	var bestID string
	bestScore := math.Inf(-1)
	for _, id := range agg.Order {
		score := agg.Relevance[id]
		if score > bestScore || (score == bestScore && id < bestID) {
			bestID, bestScore = id, score
		}
	}
	if bestID == "" {
		return nil
	}
	return &entity.Closest{ID: bestID, Label: agg.Primary[bestID]}
}
