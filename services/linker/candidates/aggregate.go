// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package candidates filters search hits by relative relevance and expands
// each surviving candidate into the label variants the scorer compares
// against.
package candidates

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

// ErrDegenerateBatch is returned when a result cannot be normalized: it has
// no hits or its max score is not positive.
var ErrDegenerateBatch = errors.New("degenerate batch")

// qualifierPattern matches parenthetical qualifiers such as "(band)" or
// "(disambiguation)". Greedy: "A (x) B (y)" loses everything from the first
// "(" to the last ")".
var qualifierPattern = regexp.MustCompile(`\(.*\)`)

// NormalizeLabel strips parenthetical qualifiers, lower-cases and trims.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(similarity.Lower(qualifierPattern.ReplaceAllString(label, "")))
}

// Aggregation is the accepted part of one search result.
//
// Order lists candidate IDs by first appearance. Variants holds, per ID,
// the normalized primary label first and then each alternate label, every
// one paired with the relevance score of the hit it came from.
type Aggregation struct {
	// Sum is the total raw relevance of all accepted hits.
	Sum float64

	Order    []string
	Variants map[string][]entity.LabelVariant

	// Primary is the un-normalized primary label per ID, taken from the
	// first accepted hit with that ID.
	Primary map[string]string

	// Relevance is the highest raw score seen per ID.
	Relevance map[string]float64
}

// Len returns the number of distinct accepted candidates.
func (a *Aggregation) Len() int {
	return len(a.Order)
}

func newAggregation() *Aggregation {
	return &Aggregation{
		Variants:  make(map[string][]entity.LabelVariant),
		Primary:   make(map[string]string),
		Relevance: make(map[string]float64),
	}
}

// Aggregate builds the label variants of every accepted hit.
//
// Description:
//
//	A hit is accepted when score/maxScore > relevancyCutoff. Each accepted
//	hit contributes its primary label and its own alternate labels; a hit
//	never sees another hit's alternates. Hits that repeat an ID append
//	their variants to the first occurrence. Hits with an empty ID are
//	skipped.
//
// Inputs:
//
//	res - The search result. May be nil.
//	relevancyCutoff - Minimum normalized relevance, exclusive.
//
// Outputs:
//
//	*Aggregation - Never nil. Empty when nothing was accepted.
//	error - ErrDegenerateBatch when res has no hits or MaxScore <= 0.
func Aggregate(res *entity.SearchResult, relevancyCutoff float64) (*Aggregation, error) {
	agg := newAggregation()

	if res == nil || len(res.Docs) == 0 {
		return agg, fmt.Errorf("%w: no hits", ErrDegenerateBatch)
	}
	if !(res.MaxScore > 0) || math.IsInf(res.MaxScore, 0) {
		return agg, fmt.Errorf("%w: max score %v", ErrDegenerateBatch, res.MaxScore)
	}

	for _, doc := range res.Docs {
		if doc.ID == "" {
			continue
		}
		if !(doc.Score/res.MaxScore > relevancyCutoff) {
			continue
		}

		agg.Sum += doc.Score

		if _, seen := agg.Variants[doc.ID]; !seen {
			agg.Order = append(agg.Order, doc.ID)
			agg.Primary[doc.ID] = doc.Label
			agg.Relevance[doc.ID] = doc.Score
		} else if doc.Score > agg.Relevance[doc.ID] {
			agg.Relevance[doc.ID] = doc.Score
		}

		variants := agg.Variants[doc.ID]
		variants = append(variants, entity.LabelVariant{
			CandidateID: doc.ID,
			Label:       NormalizeLabel(doc.Label),
			Score:       doc.Score,
		})
		for _, alt := range doc.AltLabels {
			variants = append(variants, entity.LabelVariant{
				CandidateID: doc.ID,
				Label:       NormalizeLabel(alt),
				Score:       doc.Score,
			})
		}
		agg.Variants[doc.ID] = variants
	}

	return agg, nil
}
