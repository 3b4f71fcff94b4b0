package domain

import (
	"fmt"
	"time"
)

// HoursPerDay is the number of hourly slots in a DailyDeck.
const HoursPerDay = 24

// DailyDeck is the ordered set of cards drawn for one calendar day, indexed
// by hour of day.
type DailyDeck struct {
	Date  CalendarDate
	Cards []Card
}

// CardAt returns the card assigned to hour.
func (d DailyDeck) CardAt(hour int) (Card, error) {
	if hour < 0 || hour >= HoursPerDay {
		return Card{}, fmt.Errorf("hour %d out of range 0-%d", hour, HoursPerDay-1)
	}
	if len(d.Cards) != HoursPerDay {
		return Card{}, fmt.Errorf("deck for %s has %d cards, want %d", d.Date, len(d.Cards), HoursPerDay)
	}
	return d.Cards[hour], nil
}

// DailyRecord is the durable form of a DailyDeck plus the user's journal
// annotations for that day.
type DailyRecord struct {
	ID       string         `json:"id"`
	Date     CalendarDate   `json:"date"`
	CardIDs  []int          `json:"card_ids"`
	Memos    map[int]string `json:"memos,omitempty"`
	Insights string         `json:"insights,omitempty"`
	DeckHash string         `json:"deck_hash"`
	SavedAt  time.Time      `json:"saved_at"`
}

// Deck rebuilds the DailyDeck from the stored card IDs using the reference
// card table.
func (r *DailyRecord) Deck(cards map[int]Card) (DailyDeck, error) {
	if len(r.CardIDs) != HoursPerDay {
		return DailyDeck{}, fmt.Errorf("record %s has %d cards, want %d", r.Date, len(r.CardIDs), HoursPerDay)
	}
	out := make([]Card, HoursPerDay)
	for hour, id := range r.CardIDs {
		c, ok := cards[id]
		if !ok {
			return DailyDeck{}, fmt.Errorf("record %s references unknown card %d at hour %d", r.Date, id, hour)
		}
		out[hour] = c
	}
	return DailyDeck{Date: r.Date, Cards: out}, nil
}

// CardIDs extracts the card identifiers of a deck in hour order.
func CardIDs(d DailyDeck) []int {
	ids := make([]int, len(d.Cards))
	for i, c := range d.Cards {
		ids[i] = c.ID
	}
	return ids
}
