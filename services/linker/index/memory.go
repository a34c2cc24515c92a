// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/query"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

// =============================================================================
// In-Memory BM25 Index
// =============================================================================

// BM25 tuning constants. Standard values recommended by Robertson et al.
const (
	// bm25K1 controls term frequency saturation.
	bm25K1 = 1.5

	// bm25B controls document length normalization.
	bm25B = 0.75
)

// Record is one entity of the in-memory index.
type Record struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	AltLabels  []string `json:"alt_labels,omitempty"`
	Type       string   `json:"type"`
	Popularity float64  `json:"popularity,omitempty"`
}

type memDoc struct {
	rec Record

	// tf maps each term of the label and alternate labels to its count.
	tf  map[string]int
	len int

	// phrases holds the normalized label and alternate labels.
	phrases []string
}

// MemoryIndex is an Okapi BM25 index over entity labels.
//
// # Description
//
// Each record's document is its label plus all alternate labels. A query
// scores every record of an allowed type by BM25 over the query tokens,
// then multiplies in three boosts that stand in for the Solr query's
// boosted clauses:
//
//	phrase      1 + ln(1 + phraseBoost)  when the whole mention equals a label
//	type        1 + log10(typeBoost)     for types boosted above 1
//	popularity  1 + popularityBoost/100 * ln(1 + popularity)
//
// Hits are ordered by score descending then ID ascending and truncated to
// the requested rows. MaxScore is the best score among all matches.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type MemoryIndex struct {
	docs   []memDoc
	idf    map[string]float64
	avgLen float64
}

// NewMemoryIndex builds an index over records.
//
// Returns an error when a record has an empty ID or an ID repeats.
func NewMemoryIndex(records []Record) (*MemoryIndex, error) {
	idx := &MemoryIndex{idf: make(map[string]float64)}
	if len(records) == 0 {
		return idx, nil
	}

	seen := make(map[string]struct{}, len(records))
	df := make(map[string]int)
	totalLen := 0

	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("record %d: empty id", i)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("record %d: duplicate id %q", i, rec.ID)
		}
		seen[rec.ID] = struct{}{}

		doc := buildMemDoc(rec)
		idx.docs = append(idx.docs, doc)
		totalLen += doc.len
		for term := range doc.tf {
			df[term]++
		}
	}

	n := len(idx.docs)
	idx.avgLen = float64(totalLen) / float64(n)
	if idx.avgLen == 0 {
		idx.avgLen = 1
	}

	// Lucene-style smoothing keeps IDF >= 1.
	for term, docFreq := range df {
		idx.idf[term] = math.Log(float64(n+1)/float64(docFreq+1)) + 1.0
	}
	return idx, nil
}

func buildMemDoc(rec Record) memDoc {
	labels := make([]string, 0, len(rec.AltLabels)+1)
	labels = append(labels, rec.Label)
	labels = append(labels, rec.AltLabels...)

	doc := memDoc{rec: rec, tf: make(map[string]int)}
	for _, label := range labels {
		toks := terms(label)
		for _, tok := range toks {
			doc.tf[tok]++
		}
		doc.len += len(toks)
		if len(toks) > 0 {
			doc.phrases = append(doc.phrases, strings.Join(toks, " "))
		}
	}
	return doc
}

// Len returns the number of records.
func (m *MemoryIndex) Len() int {
	return len(m.docs)
}

// Name implements Searcher.
func (m *MemoryIndex) Name() string { return "memory" }

// Search implements Searcher.
func (m *MemoryIndex) Search(ctx context.Context, req query.Request) (*entity.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qterms := uniqueTerms(req.Tokens)
	if len(qterms) == 0 {
		qterms = uniqueTerms([]string{req.Text})
	}
	result := &entity.SearchResult{}
	if len(qterms) == 0 || len(m.docs) == 0 {
		return result, nil
	}

	phrase := strings.Join(terms(req.Phrase), " ")

	var allowed map[string]bool
	if len(req.Types) > 0 {
		allowed = make(map[string]bool, len(req.Types))
		for _, t := range req.Types {
			allowed[t] = true
		}
	}

	hits := make([]entity.Document, 0)
	for i := range m.docs {
		doc := &m.docs[i]
		if allowed != nil && !allowed[doc.rec.Type] {
			continue
		}
		score := m.bm25(qterms, doc)
		if score <= 0 {
			continue
		}
		if phrase != "" && req.PhraseBoost > 0 && slices.Contains(doc.phrases, phrase) {
			score *= 1 + math.Log1p(req.PhraseBoost)
		}
		if b := req.TypeBoosts[doc.rec.Type]; b > 1 {
			score *= 1 + math.Log10(b)
		}
		if req.PopularityField != "" && req.PopularityBoost > 0 && doc.rec.Popularity > 0 {
			score *= 1 + req.PopularityBoost/100*math.Log1p(doc.rec.Popularity)
		}

		hits = append(hits, entity.Document{
			ID:        doc.rec.ID,
			Label:     doc.rec.Label,
			AltLabels: slices.Clone(doc.rec.AltLabels),
			Type:      entity.Type(doc.rec.Type),
			Score:     score,
		})
	}

	slices.SortFunc(hits, func(a, b entity.Document) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(hits) > 0 {
		result.MaxScore = hits[0].Score
	}
	if req.Rows > 0 && len(hits) > req.Rows {
		hits = hits[:req.Rows]
	}
	result.Docs = hits
	return result, nil
}

// bm25 computes
//
//	Σ_t idf(t) × tf(t,d)×(k1+1) / (tf(t,d) + k1×(1 − b + b×dl/avgdl))
func (m *MemoryIndex) bm25(qterms []string, doc *memDoc) float64 {
	var score float64
	norm := 1 - bm25B + bm25B*float64(doc.len)/m.avgLen
	for _, t := range qterms {
		tf := doc.tf[t]
		if tf == 0 {
			continue
		}
		ftf := float64(tf)
		score += m.idf[t] * (ftf * (bm25K1 + 1)) / (ftf + bm25K1*norm)
	}
	return score
}

// terms lower-cases s the way mentions are cleaned, drops query escape
// backslashes and splits on anything that is not a letter, mark or digit.
func terms(s string) []string {
	s = similarity.Lower(strings.ReplaceAll(s, `\`, ""))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r) && !unicode.IsDigit(r)
	})
}

func uniqueTerms(parts []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range parts {
		for _, t := range terms(p) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
