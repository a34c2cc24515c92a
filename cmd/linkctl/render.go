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
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/AleutianAI/EntityLink/services/linker/alto"
	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/scoring"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

// Table styles
var (
	colorMuted  = lipgloss.Color("241")
	colorAccent = lipgloss.Color("39")
	colorPass   = lipgloss.Color("42")
	colorWarn   = lipgloss.Color("214")
	colorFail   = lipgloss.Color("196")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
}

func outcomeStyle(o entity.Outcome) lipgloss.Style {
	switch o {
	case entity.OutcomeMatched:
		return lipgloss.NewStyle().Foreground(colorPass)
	case entity.OutcomeNoMatch:
		return lipgloss.NewStyle().Foreground(colorWarn)
	default:
		return lipgloss.NewStyle().Foreground(colorFail)
	}
}

// renderResult shows one resolution as a two-column table.
func renderResult(mention string, res entity.Result) string {
	t := newTable("Mention", mention)
	t.Row("Outcome", outcomeStyle(res.Outcome).Render(string(res.Outcome)))
	if res.Match != nil {
		t.Row("Entity", entity.URI(res.Match.ID))
		t.Row("Label", res.Match.Label)
		t.Row("Score", formatFloat(res.Match.Score))
	}
	if res.Closest != nil && (res.Match == nil || res.Closest.ID != res.Match.ID) {
		t.Row("Closest", fmt.Sprintf("%s (%s)", res.Closest.Label, entity.URI(res.Closest.ID)))
	}
	if res.Reason != "" {
		t.Row("Reason", res.Reason)
	}
	return t.String()
}

// renderVariants lists scored label variants, best first.
func renderVariants(ranked []scoring.VariantScore) string {
	t := newTable("#", "Candidate", "Label", "Similarity", "Relevance", "Composite")
	for i, v := range ranked {
		t.Row(strconv.Itoa(i+1), entity.URI(v.CandidateID), v.Label,
			formatFloat(v.Similarity), formatFloat(v.Relevance), formatFloat(v.Composite))
	}
	if len(ranked) == 0 {
		t.Row("", "no variant above the similarity cutoff", "", "", "", "")
	}
	return t.String()
}

func renderReport(r *similarity.Report) string {
	hamming := "n/a (lengths differ)"
	if r.Hamming != nil {
		hamming = strconv.Itoa(*r.Hamming)
	}
	t := newTable("Metric", fmt.Sprintf("%q vs %q", r.A, r.B))
	t.Row("Edit distance", strconv.Itoa(r.EditDistance))
	t.Row("Hamming distance", hamming)
	t.Row("LCS length", strconv.Itoa(r.LCSLength))
	t.Row("Jaccard distance", formatFloat(r.Jaccard))
	t.Row("Jaro", formatFloat(r.Jaro))
	t.Row("Jaro-Winkler", formatFloat(r.JaroWinkler))
	t.Row("Dice", formatFloat(r.Dice))
	t.Row("Tversky", formatFloat(r.Tversky))
	t.Row("Adapted similarity", formatFloat(r.AdaptedSimilarity))
	return t.String()
}

func renderPhonetic(codes []phoneticCodes) string {
	headers := append([]string{"Name"}, similarity.Algorithms...)
	t := newTable(headers...)
	for _, pc := range codes {
		row := []string{pc.Name}
		for _, alg := range similarity.Algorithms {
			row = append(row, pc.Codes[alg])
		}
		t.Row(row...)
	}
	return t.String()
}

func renderSummary(s alto.Summary) string {
	t := newTable("Documents", "Count")
	t.Row("Annotated", strconv.Itoa(s.Annotated))
	t.Row("Skipped (not ALTO)", strconv.Itoa(s.Skipped))
	t.Row("Failed", strconv.Itoa(s.Failed))
	t.Row("Tags linked", strconv.Itoa(s.Linked))
	return t.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
