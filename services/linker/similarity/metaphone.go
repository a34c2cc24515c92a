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

import "fmt"

// DefaultMetaphoneLength is the conventional Metaphone code length.
const DefaultMetaphoneLength = 4

// Metaphone returns the original Metaphone code of name, at most length
// characters long.
//
// Description:
//
//	Follows Michael Kuhn's reading of Lawrence Philips' rules. Non-letters
//	are dropped and doubled letters other than C collapse to one. Vowels
//	are kept only in first position. "0" encodes TH.
//
// Inputs:
//   - name: Name to encode. Must contain at least one ASCII letter.
//   - length: Maximum code length. Must be > 0.
//
// Outputs:
//   - string: The code, e.g. "NT" for "Knight", "SM0" for "Smith".
//   - error: ErrInvalidParameter for length <= 0, ErrInvalidInput for
//     empty or unencodable names.
func Metaphone(name string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: Metaphone: length must be > 0 (got %d)", ErrInvalidParameter, length)
	}
	w, err := asciiLetters("Metaphone", name)
	if err != nil {
		return "", err
	}
	w = metaphoneInitial(w)

	out := make([]rune, 0, length+1)
	for i := 0; i < len(w) && len(out) < length; i++ {
		c := w[i]
		prev, next, after := letterAt(w, i-1), letterAt(w, i+1), letterAt(w, i+2)
		if c != 'C' && c == prev {
			continue
		}

		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				out = append(out, c)
			}
		case 'B':
			if !(i == len(w)-1 && prev == 'M') {
				out = append(out, 'B')
			}
		case 'C':
			switch {
			case next == 'I' && after == 'A':
				out = append(out, 'X')
			case next == 'H':
				if prev == 'S' {
					out = append(out, 'K')
				} else {
					out = append(out, 'X')
				}
			case oneOf(next, "IEY"):
				if prev != 'S' {
					out = append(out, 'S')
				}
			default:
				out = append(out, 'K')
			}
		case 'D':
			if next == 'G' && oneOf(after, "EIY") {
				out = append(out, 'J')
			} else {
				out = append(out, 'T')
			}
		case 'G':
			switch {
			case next == 'H' && after != 0 && !isVowel(after):
				// silent, as in "night"
			case next == 'N' && (i+2 == len(w) || (i+4 == len(w) && after == 'E' && letterAt(w, i+3) == 'D')):
				// silent, as in "sign" and "signed"
			case prev == 'D' && oneOf(next, "EIY"):
				// silent, as in "edge"; the D already gave J
			case oneOf(next, "IEY") && prev != 'G':
				out = append(out, 'J')
			default:
				out = append(out, 'K')
			}
		case 'H':
			if (isVowel(prev) && !isVowel(next)) || oneOf(prev, "CSPTG") {
				continue
			}
			out = append(out, 'H')
		case 'K':
			if prev != 'C' {
				out = append(out, 'K')
			}
		case 'P':
			if next == 'H' {
				out = append(out, 'F')
			} else {
				out = append(out, 'P')
			}
		case 'Q':
			out = append(out, 'K')
		case 'S':
			switch {
			case next == 'H':
				out = append(out, 'X')
			case next == 'I' && oneOf(after, "OA"):
				out = append(out, 'X')
			default:
				out = append(out, 'S')
			}
		case 'T':
			switch {
			case next == 'I' && oneOf(after, "OA"):
				out = append(out, 'X')
			case next == 'H':
				out = append(out, '0')
			case next == 'C' && after == 'H':
				// silent, as in "watch"
			default:
				out = append(out, 'T')
			}
		case 'V':
			out = append(out, 'F')
		case 'W', 'Y':
			if isVowel(next) {
				out = append(out, c)
			}
		case 'X':
			out = append(out, 'K', 'S')
		case 'Z':
			out = append(out, 'S')
		default:
			out = append(out, c)
		}
	}

	if len(out) > length {
		out = out[:length]
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%w: Metaphone: %q is not encodable", ErrInvalidInput, name)
	}
	return string(out), nil
}

// metaphoneInitial applies the word-initial transformations.
func metaphoneInitial(w []rune) []rune {
	if len(w) < 2 {
		if len(w) == 1 && w[0] == 'X' {
			return []rune{'S'}
		}
		return w
	}
	first, second := w[0], w[1]
	switch {
	case first == 'A' && second == 'E':
		return w[1:]
	case (first == 'G' || first == 'K' || first == 'P') && second == 'N':
		return w[1:]
	case first == 'W' && second == 'R':
		return w[1:]
	case first == 'W' && second == 'H':
		return append([]rune{'W'}, w[2:]...)
	case first == 'X':
		out := append([]rune{'S'}, w[1:]...)
		return out
	}
	return w
}
