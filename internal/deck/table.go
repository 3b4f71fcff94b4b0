package deck

import (
	"fmt"

	"github.com/conorfennell/tarottimer/internal/domain"
	"github.com/conorfennell/tarottimer/internal/fingerprint"
)

// Table is the loaded reference deck: the shuffle source plus an index by ID
// for rebuilding persisted records.
type Table struct {
	cards []domain.Card
	byID  map[int]domain.Card
	hash  string
}

// NewTable indexes cards. It rejects duplicate IDs and decks too small to
// fill a day.
func NewTable(cards []domain.Card) (*Table, error) {
	byID := make(map[int]domain.Card, len(cards))
	for _, c := range cards {
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %d", c.ID)
		}
		byID[c.ID] = c
	}
	if len(byID) < domain.HoursPerDay {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientDeckSize, len(byID))
	}

	owned := make([]domain.Card, len(cards))
	copy(owned, cards)
	return &Table{
		cards: owned,
		byID:  byID,
		hash:  fingerprint.Deck(owned),
	}, nil
}

// Cards returns a copy of the source deck in its canonical order.
func (t *Table) Cards() []domain.Card {
	out := make([]domain.Card, len(t.cards))
	copy(out, t.cards)
	return out
}

// Len returns the number of cards in the table.
func (t *Table) Len() int { return len(t.cards) }

// Lookup returns the card with the given ID.
func (t *Table) Lookup(id int) (domain.Card, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// Index exposes the ID index for domain.DailyRecord.Deck.
func (t *Table) Index() map[int]domain.Card { return t.byID }

// Hash is the fingerprint of the table, stored with every record drawn from it.
func (t *Table) Hash() string { return t.hash }

// Generate draws the deck for date from this table.
func (t *Table) Generate(date domain.CalendarDate) (domain.DailyDeck, error) {
	return Generate(date, t.cards)
}
