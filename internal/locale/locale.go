package locale

import (
	"sort"

	"golang.org/x/text/language"

	"github.com/conorfennell/tarottimer/internal/domain"
)

// Matcher picks the best available card-name locale for a requested one.
type Matcher struct {
	tags    []string
	matcher language.Matcher
}

// NewMatcher builds a matcher over the given locale tags. The default locale
// is always offered first so unmatched requests fall back to it.
func NewMatcher(available []string) *Matcher {
	seen := map[string]bool{domain.DefaultLocale: true}
	tags := []string{domain.DefaultLocale}

	rest := make([]string, 0, len(available))
	for _, t := range available {
		if !seen[t] {
			seen[t] = true
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	tags = append(tags, rest...)

	parsed := make([]language.Tag, len(tags))
	for i, t := range tags {
		parsed[i] = language.Make(t)
	}
	return &Matcher{tags: tags, matcher: language.NewMatcher(parsed)}
}

// ForCards collects every locale the cards carry names for.
func ForCards(cards []domain.Card) *Matcher {
	var all []string
	for _, c := range cards {
		all = append(all, c.Locales()...)
	}
	return NewMatcher(all)
}

// Match returns the available tag closest to requested, which may be any
// BCP-47 string or an Accept-Language header value.
func (m *Matcher) Match(requested ...string) string {
	_, idx := language.MatchStrings(m.matcher, requested...)
	return m.tags[idx]
}

// Available lists the offered tags, default first.
func (m *Matcher) Available() []string {
	return append([]string(nil), m.tags...)
}
