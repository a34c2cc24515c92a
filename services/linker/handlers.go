// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package linker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	// DefaultMaxBatchSize caps POST /v1/link/batch when no limit is set.
	DefaultMaxBatchSize = 1000

	streamWriteTimeout = 10 * time.Second
	streamReadLimit    = 64 << 10
)

// =============================================================================
// Request and Response Types
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// LinkResponse is the resolution of one mention as served over HTTP.
//
// P, Name and ID are set only on a match. Link is set on a match whose
// identifier passes the strfmt "uri" format; other identifiers are still
// reported in ID. Closest may be set either way.
type LinkResponse struct {
	NE      string          `json:"ne"`
	Link    strfmt.URI      `json:"link,omitempty"`
	P       *float64        `json:"p,omitempty"`
	Name    string          `json:"name,omitempty"`
	ID      string          `json:"id,omitempty"`
	Outcome entity.Outcome  `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`
	Closest *entity.Closest `json:"closest,omitempty"`
}

// NewLinkResponse converts res for the wire.
func NewLinkResponse(mention string, res entity.Result) LinkResponse {
	out := LinkResponse{
		NE:      mention,
		Outcome: res.Outcome,
		Reason:  res.Reason,
		Closest: res.Closest,
	}
	if res.Matched() {
		p := res.Match.Score
		if link := entity.URI(res.Match.ID); strfmt.Default.Validates("uri", link) {
			out.Link = strfmt.URI(link)
		}
		out.P = &p
		out.Name = res.Match.Label
		out.ID = res.Match.ID
	}
	return out
}

// BatchRequest is the body of POST /v1/link/batch.
type BatchRequest struct {
	Mentions []string `json:"mentions" binding:"required,min=1"`
}

// BatchResponse lists one LinkResponse per distinct mention, in first-seen
// order.
type BatchResponse struct {
	Results []LinkResponse `json:"results"`
}

// SimilarityRequest is the body of POST /v1/similarity.
type SimilarityRequest struct {
	A string `json:"a" binding:"required"`
	B string `json:"b" binding:"required"`
}

// StreamRequest is one text frame received on /v1/link/stream.
type StreamRequest struct {
	NE string `json:"ne"`
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers serves the linker HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	linker       Linker
	backend      string
	maxBatchSize int
	upgrader     websocket.Upgrader
}

// NewHandlers creates Handlers.
//
// Inputs:
//
//	linker - Resolves mentions. Usually a *Resolver, possibly wrapped by a cache.
//	backend - Index backend name reported by the health endpoint.
//	maxBatchSize - Largest accepted batch. Values below 1 use DefaultMaxBatchSize.
func NewHandlers(linker Linker, backend string, maxBatchSize int) *Handlers {
	if maxBatchSize < 1 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Handlers{
		linker:       linker,
		backend:      backend,
		maxBatchSize: maxBatchSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// HandleLink handles GET /link and GET /v1/link.
//
// Query Parameters:
//
//	ne: The mention to resolve (required)
//
// Response:
//
//	200 OK: LinkResponse (also for no_match and lookup_failure)
//	400 Bad Request: Missing ne
func (h *Handlers) HandleLink(c *gin.Context) {
	logger := requestLogger(c, "HandleLink")

	ne, ok := c.GetQuery("ne")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: `no fitting argument ("ne=...") given`,
			Code:  "MISSING_MENTION",
		})
		return
	}

	res := h.linker.Resolve(c.Request.Context(), ne)
	logger.Debug("link served", slog.String("outcome", string(res.Outcome)))
	c.JSON(http.StatusOK, NewLinkResponse(ne, res))
}

// HandleBatch handles POST /v1/link/batch.
//
// Response:
//
//	200 OK: BatchResponse
//	400 Bad Request: Malformed body or empty mentions
//	413 Request Entity Too Large: More than maxBatchSize mentions
//	503 Service Unavailable: Request cancelled before the batch finished
func (h *Handlers) HandleBatch(c *gin.Context) {
	logger := requestLogger(c, "HandleBatch")

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	if len(req.Mentions) > h.maxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "too many mentions in one batch",
			Code:  "BATCH_TOO_LARGE",
		})
		return
	}

	results, err := h.linker.ResolveBatch(c.Request.Context(), req.Mentions)
	if err != nil {
		logger.Warn("batch not finished",
			slog.Int("mentions", len(req.Mentions)),
			slog.Int("finished", len(results)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "BATCH_CANCELLED"})
		return
	}

	unique := Distinct(req.Mentions)
	resp := BatchResponse{Results: make([]LinkResponse, 0, len(unique))}
	for _, m := range unique {
		resp.Results = append(resp.Results, NewLinkResponse(m, results[m]))
	}
	logger.Info("batch served", slog.Int("distinct", len(unique)))
	c.JSON(http.StatusOK, resp)
}

// HandleStream handles GET /v1/link/stream.
//
// Description:
//
//	Upgrades to a WebSocket. Every text frame holding a StreamRequest is
//	answered with one LinkResponse frame, in order. A frame that is not
//	valid JSON or lacks ne is answered with an ErrorResponse frame and the
//	connection stays open.
func (h *Handlers) HandleStream(c *gin.Context) {
	logger := requestLogger(c, "HandleStream")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(streamReadLimit)

	ctx := c.Request.Context()
	served := 0
	for {
		var req StreamRequest
		if err := conn.ReadJSON(&req); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || errors.Is(err, context.Canceled) {
				break
			}
			if !isDecodeError(err) {
				logger.Debug("stream read ended", slog.String("error", err.Error()))
				break
			}
			if !writeFrame(conn, ErrorResponse{Error: err.Error(), Code: "INVALID_FRAME"}) {
				break
			}
			continue
		}
		if req.NE == "" {
			if !writeFrame(conn, ErrorResponse{Error: "ne must not be empty", Code: "MISSING_MENTION"}) {
				break
			}
			continue
		}

		res := h.linker.Resolve(ctx, req.NE)
		if !writeFrame(conn, NewLinkResponse(req.NE, res)) {
			break
		}
		served++
	}
	logger.Debug("stream closed", slog.Int("served", served))
}

// isDecodeError reports whether err came from decoding a frame rather than
// from the connection.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

func writeFrame(conn *websocket.Conn, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(v) == nil
}

// HandleSimilarity handles POST /v1/similarity.
//
// Response:
//
//	200 OK: similarity.Report
//	400 Bad Request: Missing a or b
func (h *Handlers) HandleSimilarity(c *gin.Context) {
	var req SimilarityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	report, err := similarity.Compare(req.A, req.B)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_INPUT"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Backend: h.backend})
}

// =============================================================================
// Helpers
// =============================================================================

// getOrCreateRequestID returns the caller's X-Request-ID or a new UUID, and
// echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	return id
}

func requestLogger(c *gin.Context, handler string) *slog.Logger {
	logger := slog.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler),
	)
	return loggerFor(c.Request.Context(), logger)
}
