package statestore

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes to NFD, strips combining marks, and recomposes.
// "Çiğli" becomes "Cigli".
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeStation canonicalizes a station name for use in state keys.
// Diacritics are folded and the result is upper-cased, so "Çiğli",
// "çiğli", and "CIGLI" all map to "CIGLI". Applied uniformly at key
// construction time: reads and writes can never disagree on the key.
func NormalizeStation(name string) string {
	name = strings.TrimSpace(name)
	// Dotless ı and dotted İ carry no combining mark, so fold them by hand
	// before the transform.
	name = strings.Map(func(r rune) rune {
		switch r {
		case 'ı':
			return 'i'
		case 'İ':
			return 'I'
		}
		return r
	}, name)
	if folded, _, err := transform.String(foldDiacritics, name); err == nil {
		name = folded
	}
	return strings.ToUpper(name)
}
