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
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/query"
)

var testRecords = []Record{
	{ID: "<http://dbpedia.org/resource/Paris>", Label: "Paris", AltLabels: []string{"City of Light"}, Type: "Place", Popularity: 90000},
	{ID: "<http://dbpedia.org/resource/Paris_Hilton>", Label: "Paris Hilton", Type: "Person", Popularity: 3000},
	{ID: "<http://dbpedia.org/resource/Paris,_Texas>", Label: "Paris, Texas", Type: "Place", Popularity: 800},
	{ID: "<http://dbpedia.org/resource/Paris_(film)>", Label: "Paris (film)", Type: "Work", Popularity: 50},
	{ID: "<http://dbpedia.org/resource/Jean-Paul_Sartre>", Label: "Jean-Paul Sartre", AltLabels: []string{"Sartre"}, Type: "Person", Popularity: 5000},
}

func testBuilder(t *testing.T) *query.Builder {
	t.Helper()
	cfg, err := config.LoadConfig(context.Background(), nil)
	require.NoError(t, err)
	return query.NewBuilder(cfg)
}

func testIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx, err := NewMemoryIndex(testRecords)
	require.NoError(t, err)
	return idx
}

func TestMemoryIndex_PhraseMatchRanksFirst(t *testing.T) {
	idx := testIndex(t)
	req := testBuilder(t).Build(query.NewMention("Paris"))

	res, err := idx.Search(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Docs)
	assert.Equal(t, "<http://dbpedia.org/resource/Paris>", res.Docs[0].ID)
	assert.Equal(t, res.Docs[0].Score, res.MaxScore)
	assert.Equal(t, []string{"City of Light"}, res.Docs[0].AltLabels)

	for i := 1; i < len(res.Docs); i++ {
		assert.GreaterOrEqual(t, res.Docs[i-1].Score, res.Docs[i].Score)
	}
}

func TestMemoryIndex_NonASCIILabels(t *testing.T) {
	idx, err := NewMemoryIndex([]Record{
		{ID: "<izmir>", Label: "İzmir", Type: "Place"},
		{ID: "<odysseus>", Label: "ΟΔΥΣΣΕΥΣ", Type: "Person"},
	})
	require.NoError(t, err)

	for mention, want := range map[string]string{"İzmir": "<izmir>", "ΟΔΥΣΣΕΥΣ": "<odysseus>", "Οδυσσευς": "<odysseus>"} {
		res, err := idx.Search(context.Background(), testBuilder(t).Build(query.NewMention(mention)))
		require.NoError(t, err, mention)
		require.Len(t, res.Docs, 1, mention)
		assert.Equal(t, want, res.Docs[0].ID, mention)
	}
}

func TestMemoryIndex_TypeFilter(t *testing.T) {
	idx := testIndex(t)
	res, err := idx.Search(context.Background(), testBuilder(t).Build(query.NewMention("Paris")))
	require.NoError(t, err)

	for _, d := range res.Docs {
		assert.NotEqual(t, "<http://dbpedia.org/resource/Paris_(film)>", d.ID, "Work is not an allowed type")
	}
	assert.Len(t, res.Docs, 3)
}

func TestMemoryIndex_EscapedTokens(t *testing.T) {
	idx := testIndex(t)
	res, err := idx.Search(context.Background(), testBuilder(t).Build(query.NewMention("Jean-Paul Sartre")))
	require.NoError(t, err)
	require.NotEmpty(t, res.Docs)
	assert.Equal(t, "<http://dbpedia.org/resource/Jean-Paul_Sartre>", res.Docs[0].ID)
}

func TestMemoryIndex_AltLabelMatches(t *testing.T) {
	idx := testIndex(t)
	res, err := idx.Search(context.Background(), testBuilder(t).Build(query.NewMention("city of light")))
	require.NoError(t, err)
	require.Len(t, res.Docs, 1)
	assert.Equal(t, "<http://dbpedia.org/resource/Paris>", res.Docs[0].ID)
}

func TestMemoryIndex_RowsAndMaxScore(t *testing.T) {
	idx := testIndex(t)
	req := testBuilder(t).Build(query.NewMention("Paris"))
	req.Rows = 1

	res, err := idx.Search(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Docs, 1)
	assert.Equal(t, res.Docs[0].Score, res.MaxScore)
}

func TestMemoryIndex_NoMatch(t *testing.T) {
	idx := testIndex(t)
	res, err := idx.Search(context.Background(), testBuilder(t).Build(query.NewMention("Zanzibar")))
	require.NoError(t, err)
	assert.Empty(t, res.Docs)
	assert.Equal(t, 0.0, res.MaxScore)
}

func TestMemoryIndex_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testIndex(t).Search(ctx, testBuilder(t).Build(query.NewMention("Paris")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewMemoryIndex_Invalid(t *testing.T) {
	_, err := NewMemoryIndex([]Record{{ID: "", Label: "x"}})
	assert.Error(t, err)

	_, err = NewMemoryIndex([]Record{{ID: "a", Label: "x"}, {ID: "a", Label: "y"}})
	assert.Error(t, err)

	idx, err := NewMemoryIndex(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestReadRecords(t *testing.T) {
	in := `{"id":"a","label":"Alpha","type":"Person"}

{"id":"b","label":"Beta","alt_labels":["B"],"type":"Place","popularity":3}
`
	recs, err := ReadRecords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"B"}, recs[1].AltLabels)
	assert.Equal(t, 3.0, recs[1].Popularity)

	_, err = ReadRecords(strings.NewReader("{\"id\":\"a\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadMemoryIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/entities.jsonl",
		[]byte(`{"id":"a","label":"Alpha","type":"Person"}`+"\n"), 0o644))

	idx, err := LoadMemoryIndex(fs, "/data/entities.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	_, err = LoadMemoryIndex(fs, "/data/missing.jsonl")
	assert.Error(t, err)
}
