// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package similarity provides string distance, string similarity and phonetic
// encoding functions used to compare entity mentions against entity labels.
//
// All functions are pure and operate on Unicode code points, never bytes.
// Contract violations (empty input, mismatched lengths, out of range
// parameters) are reported as errors wrapping one of the sentinel errors
// below; callers are expected to treat them as programmer errors.
//
// Thread Safety: every function in this package is safe for concurrent use.
package similarity

import "errors"

var (
	// ErrInvalidInput indicates an empty or unencodable input string.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLengthMismatch indicates inputs that must have equal length do not.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrInvalidParameter indicates a numeric parameter outside its domain.
	ErrInvalidParameter = errors.New("invalid parameter")
)
