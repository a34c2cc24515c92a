// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package weaviate queries a Weaviate class holding the entity index with
// BM25 keyword search.
//
// The class is expected to have the text properties entityId, label,
// altLabels (text[]) and entityType. Relevance comes from
// _additional { score }.
package weaviate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/index"
	"github.com/AleutianAI/EntityLink/services/linker/query"
)

// Property names of the entity class.
const (
	propID        = "entityId"
	propLabel     = "label"
	propAltLabels = "altLabels"
	propType      = "entityType"
)

// Options configures a Client.
type Options struct {
	// Endpoint is the Weaviate base URL, e.g. "http://localhost:8080".
	Endpoint string

	// Class is the Weaviate class name, e.g. "Entity".
	Class string

	// APIKey enables API key auth when set.
	APIKey string

	Logger *slog.Logger
}

// Client runs BM25 queries against one Weaviate class.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	client *weaviate.Client
	class  string
	logger *slog.Logger
}

// New creates a Client. It does not contact the server.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("weaviate: invalid endpoint %q", opts.Endpoint)
	}
	if opts.Class == "" {
		return nil, fmt.Errorf("weaviate: class must not be empty")
	}

	cfg := weaviate.Config{
		Host:   u.Host,
		Scheme: u.Scheme,
	}
	if opts.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: opts.APIKey}
	}
	wc, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{client: wc, class: opts.Class, logger: logger}, nil
}

// Name implements index.Searcher.
func (c *Client) Name() string { return "weaviate" }

// Search implements index.Searcher.
//
// # Description
//
// Runs a BM25 query for the mention text over label and altLabels, keeps
// only objects whose entityType is one of req.Types, and returns up to
// req.Rows hits. Weaviate does not report a max score, so MaxScore is the
// best score returned. Phrase, type and popularity boosts are not applied.
func (c *Client) Search(ctx context.Context, req query.Request) (*entity.SearchResult, error) {
	text := unescape(req.Text)

	bm25 := c.client.GraphQL().Bm25ArgBuilder().
		WithQuery(text).
		WithProperties(propLabel, propAltLabels)

	get := c.client.GraphQL().Get().
		WithClassName(c.class).
		WithFields(
			graphql.Field{Name: propID},
			graphql.Field{Name: propLabel},
			graphql.Field{Name: propAltLabels},
			graphql.Field{Name: propType},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
		).
		WithBM25(bm25).
		WithLimit(req.Rows)

	if len(req.Types) > 0 {
		get = get.WithWhere(filters.Where().
			WithPath([]string{propType}).
			WithOperator(filters.ContainsAny).
			WithValueText(req.Types...))
	}

	resp, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate: %w: %v", index.ErrUnavailable, err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return nil, fmt.Errorf("weaviate: %w: %s", index.ErrUnavailable, strings.Join(msgs, "; "))
	}

	res, err := decodeGet(resp.Data, c.class)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("weaviate bm25",
		slog.String("mention", text),
		slog.Int("hits", len(res.Docs)),
		slog.Float64("max_score", res.MaxScore),
	)
	return res, nil
}

// decodeGet extracts Get.<class>[] from a GraphQL response.
func decodeGet(data map[string]models.JSONObject, class string) (*entity.SearchResult, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("weaviate: %w: missing Get", index.ErrMalformedResponse)
	}
	rawObjects, ok := get[class]
	if !ok || rawObjects == nil {
		return &entity.SearchResult{}, nil
	}
	objects, ok := rawObjects.([]interface{})
	if !ok {
		return nil, fmt.Errorf("weaviate: %w: Get.%s is not a list", index.ErrMalformedResponse, class)
	}

	res := &entity.SearchResult{Docs: make([]entity.Document, 0, len(objects))}
	for i, raw := range objects {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("weaviate: %w: object %d", index.ErrMalformedResponse, i)
		}
		doc, err := decodeObject(obj)
		if err != nil {
			return nil, fmt.Errorf("weaviate: %w: object %d: %v", index.ErrMalformedResponse, i, err)
		}
		if doc.Score > res.MaxScore {
			res.MaxScore = doc.Score
		}
		res.Docs = append(res.Docs, doc)
	}
	return res, nil
}

func decodeObject(obj map[string]interface{}) (entity.Document, error) {
	var doc entity.Document

	id, _ := obj[propID].(string)
	if id == "" {
		return doc, fmt.Errorf("missing %s", propID)
	}
	doc.ID = id
	doc.Label, _ = obj[propLabel].(string)
	if t, ok := obj[propType].(string); ok {
		doc.Type = entity.Type(t)
	}
	if alts, ok := obj[propAltLabels].([]interface{}); ok {
		for _, a := range alts {
			if s, ok := a.(string); ok {
				doc.AltLabels = append(doc.AltLabels, s)
			}
		}
	}

	additional, ok := obj["_additional"].(map[string]interface{})
	if !ok {
		return doc, fmt.Errorf("missing _additional")
	}
	score, err := parseScore(additional["score"])
	if err != nil {
		return doc, err
	}
	doc.Score = score
	return doc, nil
}

// parseScore accepts the score as a number or, as Weaviate sends it, a
// decimal string.
func parseScore(v interface{}) (float64, error) {
	switch s := v.(type) {
	case float64:
		if s < 0 {
			return 0, fmt.Errorf("negative score %v", s)
		}
		return s, nil
	case string:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("score: %v", err)
		}
		if f < 0 {
			return 0, fmt.Errorf("negative score %v", f)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("missing score")
	}
}

// unescape removes the query escape backslashes added by the query builder.
func unescape(s string) string {
	return strings.ReplaceAll(s, `\`, "")
}
