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
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/index"
	"github.com/AleutianAI/EntityLink/services/linker/query"
)

type selectResponse struct {
	Response *selectBody `json:"response"`
	Error    *solrError  `json:"error"`
}

type selectBody struct {
	NumFound int                          `json:"numFound"`
	MaxScore *float64                     `json:"maxScore"`
	Docs     []map[string]json.RawMessage `json:"docs"`
}

type solrError struct {
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

// decodeSelect turns a select response into a SearchResult.
//
// Field names come from req so the language-specific label field is read.
// Multi-valued fields are accepted wherever a single value is expected;
// the first value wins, except for the type field where the first allowed
// type wins. A missing maxScore is taken from the best hit, and a maxScore
// below some hit's score is raised to it.
func decodeSelect(body []byte, req query.Request) (*entity.SearchResult, error) {
	var sr selectResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("solr: %w: %v", index.ErrMalformedResponse, err)
	}
	if sr.Response == nil {
		if sr.Error != nil {
			return nil, fmt.Errorf("solr: %w: %s", index.ErrUnavailable, sr.Error.Msg)
		}
		return nil, fmt.Errorf("solr: %w: missing response", index.ErrMalformedResponse)
	}

	res := &entity.SearchResult{Docs: make([]entity.Document, 0, len(sr.Response.Docs))}
	for i, raw := range sr.Response.Docs {
		doc, err := decodeDoc(raw, req)
		if err != nil {
			return nil, fmt.Errorf("solr: %w: doc %d: %v", index.ErrMalformedResponse, i, err)
		}
		res.Docs = append(res.Docs, doc)
	}

	if sr.Response.MaxScore != nil {
		res.MaxScore = *sr.Response.MaxScore
	}
	for _, d := range res.Docs {
		if d.Score > res.MaxScore {
			res.MaxScore = d.Score
		}
	}
	return res, nil
}

func decodeDoc(raw map[string]json.RawMessage, req query.Request) (entity.Document, error) {
	var doc entity.Document

	ids, err := stringValues(raw["id"])
	if err != nil || len(ids) == 0 || ids[0] == "" {
		return doc, fmt.Errorf("missing id")
	}
	doc.ID = ids[0]

	scoreRaw, ok := raw["score"]
	if !ok {
		return doc, fmt.Errorf("missing score")
	}
	if err := json.Unmarshal(scoreRaw, &doc.Score); err != nil {
		return doc, fmt.Errorf("score: %v", err)
	}
	if doc.Score < 0 {
		return doc, fmt.Errorf("negative score %v", doc.Score)
	}

	labels, err := stringValues(raw[req.LabelField])
	if err != nil {
		return doc, fmt.Errorf("%s: %v", req.LabelField, err)
	}
	if len(labels) > 0 {
		doc.Label = labels[0]
	}

	if doc.AltLabels, err = stringValues(raw[req.AltLabelField]); err != nil {
		return doc, fmt.Errorf("%s: %v", req.AltLabelField, err)
	}

	types, err := stringValues(raw[req.TypeField])
	if err != nil {
		return doc, fmt.Errorf("%s: %v", req.TypeField, err)
	}
	doc.Type = pickType(types, req.Types)

	return doc, nil
}

// stringValues decodes a string, an array of strings, or null.
func stringValues(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func pickType(values, allowed []string) entity.Type {
	for _, v := range values {
		if slices.Contains(allowed, v) {
			return entity.Type(v)
		}
	}
	if len(values) > 0 {
		return entity.Type(values[0])
	}
	return ""
}

// errorMessage extracts Solr's error message from a failed response body.
func errorMessage(body []byte) string {
	var sr selectResponse
	if err := json.Unmarshal(body, &sr); err == nil && sr.Error != nil && sr.Error.Msg != "" {
		return sr.Error.Msg
	}
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
