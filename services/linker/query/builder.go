// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query turns a mention into a search request.
//
// The request carries both the rendered Lucene strings sent to Solr and the
// structured parts they were rendered from, so backends that do not speak
// Lucene syntax can evaluate the same query.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/entity"
)

// Request is one search index query for a mention.
//
// Thread Safety: Immutable after Build; safe to share between goroutines as
// long as callers do not modify the slices or map.
type Request struct {
	Mention entity.Mention

	// Text is the cleaned mention. Phrase is the same text used as a
	// boosted phrase clause; Tokens are its whitespace-separated terms.
	Text   string
	Phrase string
	Tokens []string

	LabelField    string
	AltLabelField string
	TypeField     string

	// Types restricts hits to these entity types. TypeBoosts multiplies the
	// score of hits with the named type.
	Types      []string
	TypeBoosts map[string]float64

	PhraseBoost     float64
	PopularityField string
	PopularityBoost float64

	Rows int

	// Rendered Lucene parameters.
	Q  string
	FQ string
	FL string
	WT string
}

// Values returns the request as Solr select parameters.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("q", r.Q)
	v.Set("fq", r.FQ)
	v.Set("fl", r.FL)
	v.Set("rows", strconv.Itoa(r.Rows))
	v.Set("wt", r.WT)
	return v
}

// Builder renders requests for one language and field layout.
//
// Thread Safety: Safe for concurrent use; holds only immutable settings.
type Builder struct {
	labelField      string
	altLabelField   string
	typeField       string
	types           []string
	typeBoosts      map[string]float64
	phraseBoost     float64
	popularityField string
	popularityBoost float64
	rows            int
}

// NewBuilder creates a Builder from the query section of cfg.
func NewBuilder(cfg *config.Config) *Builder {
	boosts := make(map[string]float64, len(cfg.Query.TypeBoosts))
	for k, v := range cfg.Query.TypeBoosts {
		boosts[k] = v
	}
	return &Builder{
		labelField:      cfg.LabelField(),
		altLabelField:   cfg.Query.AltLabelField,
		typeField:       cfg.Query.TypeField,
		types:           append([]string(nil), cfg.Query.Types...),
		typeBoosts:      boosts,
		phraseBoost:     cfg.Query.PhraseBoost,
		popularityField: cfg.Query.PopularityField,
		popularityBoost: cfg.Query.PopularityBoost,
		rows:            cfg.Query.Rows,
	}
}

// Build renders the request for m.
//
// Description:
//
//	With L the label field and R the alternate-label field:
//
//	  q  = ((L:"text"^2000 L:t1 L:t2 ...) OR (R:"text"^2000 R:t1 ...))
//	       AND _val_:inlinks^10
//	       AND (type:Person^10 OR type:Place OR type:Organization)
//	  fq = type:Person OR type:Place OR type:Organization
//
//	The popularity clause is omitted when no popularity field is configured.
//
// Inputs:
//
//	m - A mention from NewMention. Callers skip empty mentions.
//
// Outputs:
//
//	Request - The rendered request.
func (b *Builder) Build(m entity.Mention) Request {
	tokens := strings.Fields(m.Cleaned)

	req := Request{
		Mention:         m,
		Text:            m.Cleaned,
		Phrase:          m.Cleaned,
		Tokens:          tokens,
		LabelField:      b.labelField,
		AltLabelField:   b.altLabelField,
		TypeField:       b.typeField,
		Types:           b.types,
		TypeBoosts:      b.typeBoosts,
		PhraseBoost:     b.phraseBoost,
		PopularityField: b.popularityField,
		PopularityBoost: b.popularityBoost,
		Rows:            b.rows,
		FL:              "* score",
		WT:              "json",
	}

	var q strings.Builder
	q.WriteString("((")
	q.WriteString(b.fieldClauses(b.labelField, m.Cleaned, tokens))
	q.WriteString(") OR (")
	q.WriteString(b.fieldClauses(b.altLabelField, m.Cleaned, tokens))
	q.WriteString("))")
	if b.popularityField != "" {
		q.WriteString(" AND _val_:")
		q.WriteString(b.popularityField)
		q.WriteString(boostSuffix(b.popularityBoost))
	}
	q.WriteString(" AND (")
	q.WriteString(b.typeClauses(true))
	q.WriteString(")")

	req.Q = q.String()
	req.FQ = b.typeClauses(false)
	return req
}

// fieldClauses renders field:"phrase"^boost field:t1 field:t2 ...
func (b *Builder) fieldClauses(field, phrase string, tokens []string) string {
	parts := make([]string, 0, len(tokens)+1)
	parts = append(parts, field+`:"`+phrase+`"`+boostSuffix(b.phraseBoost))
	for _, tok := range tokens {
		parts = append(parts, field+":"+tok)
	}
	return strings.Join(parts, " ")
}

func (b *Builder) typeClauses(boosted bool) string {
	parts := make([]string, len(b.types))
	for i, t := range b.types {
		parts[i] = b.typeField + ":" + t
		if boosted {
			parts[i] += boostSuffix(b.typeBoosts[t])
		}
	}
	return strings.Join(parts, " OR ")
}

// boostSuffix renders ^boost, or nothing for a zero or unit boost.
func boostSuffix(boost float64) string {
	if boost == 0 || boost == 1 {
		return ""
	}
	return "^" + strconv.FormatFloat(boost, 'f', -1, 64)
}
