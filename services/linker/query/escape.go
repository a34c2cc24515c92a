// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"strings"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
	"github.com/AleutianAI/EntityLink/services/linker/similarity"
)

// metaEscaper prefixes every Lucene query metacharacter with a backslash.
// The two-character operators are escaped once, on their first character.
var metaEscaper = strings.NewReplacer(
	"+", `\+`,
	"-", `\-`,
	"&&", `\&&`,
	"||", `\||`,
	"!", `\!`,
	"(", `\(`,
	")", `\)`,
	"{", `\{`,
	"}", `\}`,
	"[", `\[`,
	"]", `\]`,
	"^", `\^`,
	`"`, `\"`,
	"~", `\~`,
	"*", `\*`,
	"?", `\?`,
	":", `\:`,
)

// Escape trims surrounding whitespace and backslash-escapes the query
// metacharacters + - && || ! ( ) { } [ ] ^ " ~ * ? :
//
// A lone & or | is not an operator and passes through unchanged.
func Escape(s string) string {
	return metaEscaper.Replace(strings.TrimSpace(s))
}

// NewMention lower-cases and escapes raw.
//
// The cleaned form is used both as the query text and as the left-hand side
// of every similarity comparison, so escape backslashes take part in
// scoring. Lower-casing matches label normalization (similarity.Lower).
func NewMention(raw string) entity.Mention {
	return entity.Mention{
		Raw:     raw,
		Cleaned: Escape(similarity.Lower(raw)),
	}
}
