// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type writeCapture struct {
	mu     sync.Mutex
	bodies []string
	query  []string
}

func (c *writeCapture) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.bodies = append(c.bodies, string(body))
	c.query = append(c.query, r.URL.RawQuery)
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func TestInfluxSink_WritesPoints(t *testing.T) {
	capture := &writeCapture{}
	srv := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxOptions{
		URL: srv.URL, Token: "t", Org: "aleutian", Bucket: "linker",
		Logger: discardLogger(),
	})

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	res := entity.Result{
		Mention: entity.Mention{Raw: "Paris"},
		Outcome: entity.OutcomeMatched,
		Match:   &entity.ScoredMatch{ID: "<http://dbpedia.org/resource/Paris>", Score: 0.75},
	}
	sink.Record(context.Background(), EventFromResult(res, "solr", 12*time.Millisecond, at))
	sink.Record(context.Background(), Event{Mention: "qqq", Outcome: entity.OutcomeNoMatch, Backend: "solr", Time: at})
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	capture.mu.Lock()
	defer capture.mu.Unlock()
	require.Len(t, capture.bodies, 2)
	first := capture.bodies[0]
	assert.True(t, strings.HasPrefix(first, "resolution,"), first)
	assert.Contains(t, first, "backend=solr")
	assert.Contains(t, first, "outcome=matched")
	assert.Contains(t, first, "score=0.75")
	assert.Contains(t, first, `mention="Paris"`)
	assert.Contains(t, first, "duration_ms=12")
	assert.Contains(t, capture.query[0], "bucket=linker")
	assert.Contains(t, capture.query[0], "org=aleutian")
	assert.Contains(t, capture.bodies[1], "outcome=no_match")

	// Events after Close are ignored.
	sink.Record(context.Background(), Event{Outcome: entity.OutcomeMatched})
	assert.Equal(t, int64(0), sink.Dropped())
}

func TestEventFromResult_NoMatch(t *testing.T) {
	ev := EventFromResult(entity.Result{Mention: entity.Mention{Raw: "x"}, Outcome: entity.OutcomeNoMatch}, "memory", time.Second, time.Time{})
	assert.Equal(t, "x", ev.Mention)
	assert.Empty(t, ev.MatchID)
	assert.Equal(t, 0.0, ev.Score)
	assert.Equal(t, "memory", ev.Backend)
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	s.Record(context.Background(), Event{})
	assert.NoError(t, s.Close())
}
