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
	"fmt"
	"strings"
)

// ColognePhonetic returns the Kölner Phonetik code of name.
//
// # Description
//
// Each letter maps to a digit depending on its neighbours (for example C is
// 4 before A, H, K, O, Q, U, X and 8 elsewhere). Umlauts are treated as their
// base vowels and ß as S. Consecutive duplicate digits collapse to one and
// every 0 except a leading one is dropped. The code is not truncated.
//
// # Inputs
//
//   - name: Name to encode, typically German.
//
// # Outputs
//
//   - string: Digit code, e.g. "3412" for "Wikipedia".
//   - error: ErrInvalidInput on empty or unencodable input.
func ColognePhonetic(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: ColognePhonetic: name must not be empty", ErrInvalidInput)
	}

	w := make([]rune, 0, len(name))
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z':
			w = append(w, r)
		case r == 'Ä':
			w = append(w, 'A')
		case r == 'Ö':
			w = append(w, 'O')
		case r == 'Ü':
			w = append(w, 'U')
		case r == 'ß' || r == 'ẞ':
			w = append(w, 'S')
		}
	}
	if len(w) == 0 {
		return "", fmt.Errorf("%w: ColognePhonetic: %q has no encodable letters", ErrInvalidInput, name)
	}

	raw := make([]byte, 0, len(w)+2)
	for i, c := range w {
		prev, next := letterAt(w, i-1), letterAt(w, i+1)
		switch c {
		case 'A', 'E', 'I', 'J', 'O', 'U', 'Y':
			raw = append(raw, '0')
		case 'H':
		case 'B':
			raw = append(raw, '1')
		case 'P':
			if next == 'H' {
				raw = append(raw, '3')
			} else {
				raw = append(raw, '1')
			}
		case 'D', 'T':
			if oneOf(next, "CSZ") {
				raw = append(raw, '8')
			} else {
				raw = append(raw, '2')
			}
		case 'F', 'V', 'W':
			raw = append(raw, '3')
		case 'G', 'K', 'Q':
			raw = append(raw, '4')
		case 'C':
			raw = append(raw, cologneC(i == 0, prev, next))
		case 'X':
			if oneOf(prev, "CKQ") {
				raw = append(raw, '8')
			} else {
				raw = append(raw, '4', '8')
			}
		case 'L':
			raw = append(raw, '5')
		case 'M', 'N':
			raw = append(raw, '6')
		case 'R':
			raw = append(raw, '7')
		case 'S', 'Z':
			raw = append(raw, '8')
		}
	}

	code := make([]byte, 0, len(raw))
	for i, d := range raw {
		if i > 0 && raw[i-1] == d {
			continue
		}
		if d == '0' && len(code) > 0 {
			continue
		}
		code = append(code, d)
	}
	return string(code), nil
}

func cologneC(initial bool, prev, next rune) byte {
	if initial {
		if oneOf(next, "AHKLOQRUX") {
			return '4'
		}
		return '8'
	}
	if oneOf(prev, "SZ") {
		return '8'
	}
	if oneOf(next, "AHKOQUX") {
		return '4'
	}
	return '8'
}
