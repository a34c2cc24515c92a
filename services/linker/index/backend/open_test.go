// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/index"
	"github.com/AleutianAI/EntityLink/services/linker/query"
	"github.com/AleutianAI/EntityLink/services/linker/secrets"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_Memory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/e.jsonl",
		[]byte(`{"id":"<http://dbpedia.org/resource/Berlin>","label":"Berlin","type":"Place"}`+"\n"), 0o644))

	cfg, err := config.LoadConfig(context.Background(), []byte("index:\n  backend: memory\n  records_path: /e.jsonl\n  rate_limit: 100\n"))
	require.NoError(t, err)

	s, err := Open(context.Background(), cfg, Deps{FS: fs, Logger: discardLogger()})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())
	_, isLimited := s.(*index.RateLimited)
	assert.True(t, isLimited)

	res, err := s.Search(context.Background(), query.NewBuilder(cfg).Build(query.NewMention("Berlin")))
	require.NoError(t, err)
	require.Len(t, res.Docs, 1)
}

func TestOpen_Solr(t *testing.T) {
	cfg, err := config.LoadConfig(context.Background(), nil)
	require.NoError(t, err)

	s, err := Open(context.Background(), cfg, Deps{
		Secrets: secrets.Static{"LINKER_INDEX_USERNAME": "u", "LINKER_INDEX_PASSWORD": "p"},
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	assert.Equal(t, "solr", s.Name())
	_, isInstrumented := s.(*index.Instrumented)
	assert.True(t, isInstrumented)
}

func TestOpen_Weaviate(t *testing.T) {
	cfg, err := config.LoadConfig(context.Background(), []byte("index:\n  backend: weaviate\n  endpoint: http://localhost:8080\n"))
	require.NoError(t, err)

	s, err := Open(context.Background(), cfg, Deps{Logger: discardLogger()})
	require.NoError(t, err)
	assert.Equal(t, "weaviate", s.Name())
}

func TestOpen_MissingRecords(t *testing.T) {
	cfg, err := config.LoadConfig(context.Background(), []byte("index:\n  backend: memory\n  records_path: /nope.jsonl\n"))
	require.NoError(t, err)

	_, err = Open(context.Background(), cfg, Deps{FS: afero.NewMemMapFs(), Logger: discardLogger()})
	assert.Error(t, err)
}
