// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package solr queries an Apache Solr core holding the entity index.
package solr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/index"
	"github.com/AleutianAI/EntityLink/services/linker/query"
	"github.com/AleutianAI/EntityLink/services/linker/redact"
)

// maxResponseBytes bounds a select response body.
const maxResponseBytes = 8 << 20

// Options configures a Client.
type Options struct {
	// Endpoint is the Solr base URL, e.g. "http://localhost:8984/solr".
	Endpoint string

	// Core is the core name, e.g. "dbpedia_en".
	Core string

	// Timeout bounds each request. Zero means no client timeout.
	Timeout time.Duration

	// Username and Password enable basic auth when Username is set.
	Username string
	Password string

	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client runs select queries against one Solr core.
//
// # Thread Safety
//
// Safe for concurrent use; http.Client pools connections.
type Client struct {
	selectURL string
	username  string
	password  string
	http      *http.Client
	logger    *slog.Logger
}

// New creates a Client.
//
// # Inputs
//
//   - opts: Endpoint and Core are required.
//
// # Outputs
//
//   - *Client: Ready to use.
//   - error: Non-nil when the endpoint is not an absolute URL or Core is empty.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.Endpoint, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("solr: invalid endpoint %q", redact.String(opts.Endpoint))
	}
	if opts.Core == "" {
		return nil, fmt.Errorf("solr: core must not be empty")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		selectURL: base.String() + "/" + url.PathEscape(opts.Core) + "/select",
		username:  opts.Username,
		password:  opts.Password,
		http:      hc,
		logger:    logger,
	}, nil
}

// Name implements index.Searcher.
func (c *Client) Name() string { return "solr" }

// Search implements index.Searcher.
//
// # Description
//
// Sends GET <endpoint>/<core>/select with q, fq, fl, rows and wt. Non-200
// answers wrap index.ErrUnavailable and carry Solr's error message when it
// sent one. Bodies that do not decode wrap index.ErrMalformedResponse.
func (c *Client) Search(ctx context.Context, req query.Request) (*entity.SearchResult, error) {
	u := c.selectURL + "?" + req.Values().Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("solr: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.username != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("solr: %w: %v", index.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("solr: %w: reading response: %v", index.ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solr: %w: status %d: %s", index.ErrUnavailable, resp.StatusCode, errorMessage(body))
	}

	res, err := decodeSelect(body, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("solr select",
		slog.String("mention", req.Text),
		slog.Int("hits", len(res.Docs)),
		slog.Float64("max_score", res.MaxScore),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}
