// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package solr

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/EntityLink/services/linker/config"
	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/index"
	"github.com/AleutianAI/EntityLink/services/linker/query"
)

const parisResponse = `{
  "responseHeader": {"status": 0, "QTime": 3},
  "response": {
    "numFound": 2, "start": 0, "maxScore": 12.5,
    "docs": [
      {"id": "<http://dbpedia.org/resource/Paris>", "label_en": "Paris",
       "redirectLabel": ["Paname", "City of Light"], "schemaorgtype": ["Thing", "Place"],
       "inlinks": 90000, "score": 12.5},
      {"id": "<http://dbpedia.org/resource/Paris_Hilton>", "label_en": ["Paris Hilton"],
       "redirectLabel": "Paris Whitney Hilton", "schemaorgtype": "Person", "score": 4.0}
    ]
  }
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request(t *testing.T, raw string) query.Request {
	t.Helper()
	cfg, err := config.LoadConfig(context.Background(), nil)
	require.NoError(t, err)
	return query.NewBuilder(cfg).Build(query.NewMention(raw))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts.Endpoint = srv.URL + "/solr/"
	if opts.Core == "" {
		opts.Core = "dbpedia_en"
	}
	opts.HTTPClient = srv.Client()
	opts.Logger = discardLogger()
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestClient_Search(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, parisResponse)
	}, Options{})

	req := request(t, "Paris")
	res, err := c.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "/solr/dbpedia_en/select", gotPath)
	assert.Equal(t, []string{req.Q}, gotQuery["q"])
	assert.Equal(t, []string{req.FQ}, gotQuery["fq"])
	assert.Equal(t, []string{"* score"}, gotQuery["fl"])
	assert.Equal(t, []string{"5"}, gotQuery["rows"])
	assert.Equal(t, []string{"json"}, gotQuery["wt"])

	assert.Equal(t, 12.5, res.MaxScore)
	require.Len(t, res.Docs, 2)
	assert.Equal(t, entity.Document{
		ID:        "<http://dbpedia.org/resource/Paris>",
		Label:     "Paris",
		AltLabels: []string{"Paname", "City of Light"},
		Type:      entity.TypePlace,
		Score:     12.5,
	}, res.Docs[0])
	assert.Equal(t, "Paris Hilton", res.Docs[1].Label)
	assert.Equal(t, []string{"Paris Whitney Hilton"}, res.Docs[1].AltLabels)
	assert.Equal(t, entity.TypePerson, res.Docs[1].Type)
	assert.Equal(t, "solr", c.Name())
}

func TestClient_BasicAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "reader" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"response":{"numFound":0,"docs":[]}}`)
	}, Options{Username: "reader", Password: "s3cret"})

	res, err := c.Search(context.Background(), request(t, "x"))
	require.NoError(t, err)
	assert.Empty(t, res.Docs)
	assert.Equal(t, 0.0, res.MaxScore)
}

func TestClient_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"msg":"undefined field label_xx","code":400}}`)
	}, Options{})

	_, err := c.Search(context.Background(), request(t, "Paris"))
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrUnavailable)
	assert.Contains(t, err.Error(), "undefined field label_xx")
}

func TestClient_MalformedBodies(t *testing.T) {
	bodies := map[string]string{
		"not json":       `<html>oops</html>`,
		"no response":    `{"responseHeader":{}}`,
		"missing id":     `{"response":{"maxScore":1,"docs":[{"label_en":"x","score":1}]}}`,
		"missing score":  `{"response":{"maxScore":1,"docs":[{"id":"a","label_en":"x"}]}}`,
		"negative score": `{"response":{"maxScore":1,"docs":[{"id":"a","score":-1}]}}`,
		"numeric label":  `{"response":{"maxScore":1,"docs":[{"id":"a","label_en":7,"score":1}]}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}, Options{})
			_, err := c.Search(context.Background(), request(t, "Paris"))
			assert.ErrorIs(t, err, index.ErrMalformedResponse)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c, err := New(Options{Endpoint: endpoint, Core: "dbpedia_en", Logger: discardLogger()})
	require.NoError(t, err)
	_, err = c.Search(context.Background(), request(t, "Paris"))
	assert.ErrorIs(t, err, index.ErrUnavailable)
}

func TestDecodeSelect_MaxScoreRepair(t *testing.T) {
	req := request(t, "x")

	res, err := decodeSelect([]byte(`{"response":{"docs":[{"id":"a","score":3},{"id":"b","score":5}]}}`), req)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.MaxScore)

	res, err = decodeSelect([]byte(`{"response":{"maxScore":2,"docs":[{"id":"a","score":3}]}}`), req)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.MaxScore)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Options{Endpoint: "localhost:8984", Core: "dbpedia_en"})
	assert.Error(t, err)
	_, err = New(Options{Endpoint: "http://localhost:8984/solr"})
	assert.Error(t, err)
}
