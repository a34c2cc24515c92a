// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package entity defines the data model shared by the query builder, the
// index clients, the aggregator, the scorer and the resolver.
package entity

import (
	"errors"
	"strings"
)

// ErrLookupFailure marks a mention whose index lookup failed: the index was
// unreachable, answered with a malformed response, or returned a batch that
// cannot be normalized.
var ErrLookupFailure = errors.New("lookup failure")

// =============================================================================
// Entity Types
// =============================================================================

// Type is the coarse class of a knowledge base entity.
type Type string

const (
	TypePerson       Type = "Person"
	TypePlace        Type = "Place"
	TypeOrganization Type = "Organization"
)

// DefaultTypes is the fixed set of entity types a mention may resolve to.
var DefaultTypes = []Type{TypePerson, TypePlace, TypeOrganization}

// =============================================================================
// Mention
// =============================================================================

// Mention is a surface form to resolve.
//
// Raw is the caller's string. Cleaned is the trimmed, lower-cased and
// query-escaped form used both in the index query and for similarity.
// Immutable once created.
type Mention struct {
	Raw     string `json:"raw"`
	Cleaned string `json:"cleaned"`
}

// IsEmpty reports whether the mention has nothing to look up.
func (m Mention) IsEmpty() bool {
	return strings.TrimSpace(m.Cleaned) == ""
}

// =============================================================================
// Search Results
// =============================================================================

// Document is one hit returned by the search index.
type Document struct {
	// ID is the opaque entity identifier, e.g. "<http://dbpedia.org/resource/Paris>".
	ID string `json:"id"`

	// Label is the primary label.
	Label string `json:"label"`

	// AltLabels are alternate or redirect labels. May be empty.
	AltLabels []string `json:"alt_labels,omitempty"`

	// Type is the entity type tag. Empty when the index did not return one.
	Type Type `json:"type,omitempty"`

	// Score is the index's relevance score. Non-negative.
	Score float64 `json:"score"`
}

// SearchResult is the ordered hit list of one index query.
type SearchResult struct {
	// Docs are ordered by descending relevance as returned by the index.
	Docs []Document `json:"docs"`

	// MaxScore is the highest relevance score of the query, shared by all
	// hits for normalization. Zero when the query matched nothing.
	MaxScore float64 `json:"max_score"`
}

// LabelVariant is one label of a candidate, normalized, with the relevance
// score of the hit it came from.
type LabelVariant struct {
	CandidateID string
	Label       string
	Score       float64
}

// =============================================================================
// Resolution Results
// =============================================================================

// Outcome classifies a resolution result.
type Outcome string

const (
	// OutcomeMatched means a candidate passed every cutoff.
	OutcomeMatched Outcome = "matched"

	// OutcomeNoMatch means the lookup worked but no candidate qualified.
	OutcomeNoMatch Outcome = "no_match"

	// OutcomeLookupFailure means the index lookup failed for this mention.
	OutcomeLookupFailure Outcome = "lookup_failure"
)

// ScoredMatch is the selected candidate for a mention.
type ScoredMatch struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

// Closest names the candidate with the best relevance-only showing. It is
// reported for display even when nothing matched.
type Closest struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Result is the resolution of one mention.
type Result struct {
	Mention Mention      `json:"mention"`
	Outcome Outcome      `json:"outcome"`
	Match   *ScoredMatch `json:"match,omitempty"`
	Closest *Closest     `json:"closest,omitempty"`

	// Reason describes a lookup failure or why nothing matched. Empty on
	// a match.
	Reason string `json:"reason,omitempty"`
}

// Matched reports whether the result carries a match.
func (r Result) Matched() bool {
	return r.Outcome == OutcomeMatched && r.Match != nil
}

// URI returns the entity identifier without surrounding angle brackets,
// the form written into documents and returned by the HTTP endpoint.
func URI(id string) string {
	if len(id) >= 2 && strings.HasPrefix(id, "<") && strings.HasSuffix(id, ">") {
		return id[1 : len(id)-1]
	}
	return id
}
