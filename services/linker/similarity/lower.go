// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package similarity

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Lower applies the Unicode default full lower-case mapping (final sigma,
// dotted capital I). Mentions and labels must both go through it, otherwise
// identical names stop comparing equal.
func Lower(s string) string {
	// cases.Caser is stateful and not safe for concurrent use.
	return cases.Lower(language.Und).String(s)
}
