package deck

import (
	"errors"
	"fmt"

	"github.com/conorfennell/tarottimer/internal/domain"
)

var (
	// ErrInsufficientDeckSize means the source deck cannot fill every hour.
	// It is a configuration error; no partial deck is ever returned.
	ErrInsufficientDeckSize = errors.New("source deck has fewer than 24 distinct cards")
	// ErrInvalidDate is returned for the zero date.
	ErrInvalidDate = errors.New("calendar date is not set")
)

// Parameters of the seeded generator. These match the shuffle the mobile
// client and the old backend used, so a device without a cached record can
// rebuild the same deck.
const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// Seed encodes a calendar date as year*10000 + month*100 + day.
func Seed(date domain.CalendarDate) int64 {
	return int64(date.Year)*10000 + int64(date.Month)*100 + int64(date.Day)
}

// Generate produces the 24-card deck for date from source. The result depends
// only on the date and the order of source.
func Generate(date domain.CalendarDate, source []domain.Card) (domain.DailyDeck, error) {
	if date.IsZero() {
		return domain.DailyDeck{}, ErrInvalidDate
	}
	shuffled := unique(source)
	if len(shuffled) < domain.HoursPerDay {
		return domain.DailyDeck{}, fmt.Errorf("%w: got %d", ErrInsufficientDeckSize, len(shuffled))
	}
	shuffle(shuffled, Seed(date))

	cards := make([]domain.Card, domain.HoursPerDay)
	copy(cards, shuffled[:domain.HoursPerDay])
	return domain.DailyDeck{Date: date, Cards: cards}, nil
}

// shuffle is a Fisher-Yates pass driven by a small linear congruential
// generator. All arithmetic stays well inside int64 for years 1900-2999.
func shuffle(cards []domain.Card, seed int64) {
	state := seed
	for i := len(cards) - 1; i > 0; i-- {
		state = (state*lcgMultiplier + lcgIncrement) % lcgModulus
		j := int(state * int64(i+1) / lcgModulus)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// unique copies cards, keeping the first occurrence of each ID so that no
// card can occupy two hours.
func unique(cards []domain.Card) []domain.Card {
	seen := make(map[int]struct{}, len(cards))
	out := make([]domain.Card, 0, len(cards))
	for _, c := range cards {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
