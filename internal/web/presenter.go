package web

import (
	"sync"
	"time"

	"github.com/conorfennell/tarottimer/internal/domain"
)

// Signal is the last rollover notification, as shown to HTTP clients so a
// polling UI can tell its cached deck went stale.
type Signal struct {
	Kind     string               `json:"kind"`
	Date     domain.CalendarDate  `json:"date"`
	Previous *domain.CalendarDate `json:"previous,omitempty"`
	At       time.Time            `json:"at"`
}

// Presenter remembers the latest reconciler signal.
type Presenter struct {
	now func() time.Time

	mu   sync.Mutex
	last *Signal
}

// NewPresenter returns an empty presenter. now may be nil.
func NewPresenter(now func() time.Time) *Presenter {
	if now == nil {
		now = time.Now
	}
	return &Presenter{now: now}
}

func (p *Presenter) DeckReady(deck domain.DailyDeck) {
	p.set(Signal{Kind: "ready", Date: deck.Date})
}

func (p *Presenter) DeckStale(previous, next domain.CalendarDate) {
	p.set(Signal{Kind: "stale", Date: next, Previous: &previous})
}

func (p *Presenter) DeckUnavailable(date domain.CalendarDate) {
	p.set(Signal{Kind: "unavailable", Date: date})
}

// Last returns the most recent signal, or nil before the first one.
func (p *Presenter) Last() *Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	s := *p.last
	return &s
}

func (p *Presenter) set(s Signal) {
	s.At = p.now()
	p.mu.Lock()
	p.last = &s
	p.mu.Unlock()
}
