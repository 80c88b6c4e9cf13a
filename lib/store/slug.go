// Copyright 2026 The LittleCI Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"strings"
	"unicode"
)

// Slugify derives a repository slug from its name: the words of the
// name, lowercased and joined with "-". Words are runs of letters and
// digits; a lower-to-upper case change also starts a new word, so
// "LittleCI Website" becomes "little-ci-website" and "HTTPServer"
// becomes "http-server". Returns "" when the name has no letters or
// digits.
func Slugify(name string) string {
	var words []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = current[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(current) > 0 && unicode.IsUpper(r) {
			previous := current[len(current)-1]
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(previous) || unicode.IsDigit(previous) ||
				(unicode.IsUpper(previous) && nextIsLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()

	return strings.Join(words, "-")
}
