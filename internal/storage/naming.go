package storage

import (
	"strings"
)

const maxStoreNameRunes = 50

// unsafeNameChars are stripped from seed phrases before they become file names.
const unsafeNameChars = `\/:*?"<>|`

// NormalizePhrase collapses whitespace runs to a single space and trims the ends.
func NormalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}

// StoreName derives the store file name for a seed phrase. The same seed
// always maps to the same name so repeated runs resume one store.
func StoreName(seed string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeNameChars, r) {
			return -1
		}
		return r
	}, seed)

	cleaned = strings.ReplaceAll(strings.TrimSpace(cleaned), " ", "_")

	runes := []rune(cleaned)
	if len(runes) > maxStoreNameRunes {
		runes = runes[:maxStoreNameRunes]
	}
	if len(runes) == 0 {
		return "", ErrInvalidSeed
	}

	return string(runes) + ".db", nil
}
