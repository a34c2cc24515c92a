// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit records one time-series point per resolution.
package audit

import (
	"context"
	"time"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
)

// Event describes one finished resolution.
type Event struct {
	Mention  string
	Outcome  entity.Outcome
	Backend  string
	MatchID  string
	Score    float64
	Duration time.Duration
	Time     time.Time
}

// EventFromResult builds an Event for res.
func EventFromResult(res entity.Result, backend string, took time.Duration, at time.Time) Event {
	ev := Event{
		Mention:  res.Mention.Raw,
		Outcome:  res.Outcome,
		Backend:  backend,
		Duration: took,
		Time:     at,
	}
	if res.Match != nil {
		ev.MatchID = res.Match.ID
		ev.Score = res.Match.Score
	}
	return ev
}

// Sink receives resolution events.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Record must not block
// on the network.
type Sink interface {
	Record(ctx context.Context, ev Event)
	Close() error
}

// NopSink discards events.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, Event) {}

// Close implements Sink.
func (NopSink) Close() error { return nil }
