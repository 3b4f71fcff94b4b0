package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/conorfennell/tarottimer/internal/domain"
)

// Normalize renders the card's identifying content as one canonical string.
// Each text part is trimmed, lowercased, and has its line endings normalized
// before the parts are joined.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	locales := card.Locales()
	sort.Strings(locales)
	names := make([]string, 0, len(locales))
	for _, tag := range locales {
		names = append(names, tag+"="+normalizePart(card.Names[tag]))
	}

	parts := []string{
		strconv.Itoa(card.ID),
		strings.Join(names, ","),
		string(card.Arcana),
		normalizePart(card.Suit),
		strconv.Itoa(card.Number),
		normalizePart(card.Upright),
		normalizePart(card.Reversed),
	}

	// Joined with newlines so adjacent fields cannot run together,
	// e.g. suit "cups" and number "2" becoming "cups2".
	return strings.Join(parts, "\n")
}

// Hash returns the SHA-256 of the normalized card as a hex string.
func Hash(card domain.Card) string {
	hashBytes := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", hashBytes)
}

// Deck fingerprints a whole source deck. Order matters, since the daily
// shuffle depends on it.
func Deck(cards []domain.Card) string {
	h := sha256.New()
	for _, c := range cards {
		h.Write([]byte(Hash(c)))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
