package domain

import "strings"

// Arcana classifies a card as part of the major or minor arcana.
type Arcana string

const (
	Major Arcana = "major"
	Minor Arcana = "minor"
)

// DefaultLocale is the locale every card must carry a display name for.
const DefaultLocale = "en"

// Card represents a single entry in the reference deck. Cards are loaded once
// at startup and never mutated afterwards.
type Card struct {
	ID       int
	Names    map[string]string // display name keyed by BCP-47 tag
	Arcana   Arcana
	Suit     string // empty for the major arcana
	Number   int
	Upright  string
	Reversed string
	Keywords []string
}

// Name returns the display name for locale, falling back to English.
func (c Card) Name(locale string) string {
	if n, ok := c.Names[strings.ToLower(locale)]; ok && n != "" {
		return n
	}
	return c.Names[DefaultLocale]
}

// Locales lists the tags this card has a display name for.
func (c Card) Locales() []string {
	tags := make([]string, 0, len(c.Names))
	for tag := range c.Names {
		tags = append(tags, tag)
	}
	return tags
}
