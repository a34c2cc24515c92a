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
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/EntityLink/services/linker/redact"
)

// Measurement is the InfluxDB measurement of every point.
const Measurement = "resolution"

const (
	defaultQueueSize = 1024
	writeTimeout     = 5 * time.Second
)

// InfluxOptions configures NewInfluxSink.
type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// QueueSize bounds pending events. Zero uses 1024.
	QueueSize int

	Logger *slog.Logger
}

// InfluxSink writes events to InfluxDB 2.x from a background goroutine.
//
// # Description
//
// Record enqueues and returns. A single writer drains the queue with the
// blocking write API so points arrive in order. When the queue is full the
// event is dropped and counted; audit never slows down resolution.
//
// Point layout:
//
//	measurement  resolution
//	tags         outcome, backend
//	fields       mention, match_id, score, duration_ms
//
// # Thread Safety
//
// Safe for concurrent use.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	logger *slog.Logger

	// mu guards closed against sends racing Close.
	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64
}

// NewInfluxSink creates the sink and starts its writer.
func NewInfluxSink(opts InfluxOptions) *InfluxSink {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := influxdb2.NewClient(opts.URL, opts.Token)
	s := &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(opts.Org, opts.Bucket),
		logger: logger,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Record implements Sink.
func (s *InfluxSink) Record(_ context.Context, ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
			s.logger.Warn("audit queue full, dropping events", slog.Int64("dropped", n))
		}
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (s *InfluxSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close drains the queue, waits for the writer and closes the client.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	s.client.Close()
	return nil
}

func (s *InfluxSink) run() {
	defer close(s.done)
	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.writer.WritePoint(ctx, point(ev)); err != nil {
			s.logger.Warn("audit write failed",
				slog.String("outcome", string(ev.Outcome)),
				slog.String("error", redact.String(err.Error())),
			)
		}
		cancel()
	}
}

func point(ev Event) *write.Point {
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	return influxdb2.NewPoint(Measurement,
		map[string]string{
			"outcome": string(ev.Outcome),
			"backend": ev.Backend,
		},
		map[string]interface{}{
			"mention":     ev.Mention,
			"match_id":    ev.MatchID,
			"score":       ev.Score,
			"duration_ms": float64(ev.Duration.Microseconds()) / 1000,
		},
		at,
	)
}
