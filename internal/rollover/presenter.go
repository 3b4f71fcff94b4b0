package rollover

import (
	"log/slog"

	"github.com/conorfennell/tarottimer/internal/domain"
)

// Presenter receives the reconciler's outbound signals. Signals are delivered
// after the reconciler released its lock, so a presenter may call back into
// the reconciler.
type Presenter interface {
	DeckReady(deck domain.DailyDeck)
	DeckStale(previous, next domain.CalendarDate)
	DeckUnavailable(date domain.CalendarDate)
}

type signal func(Presenter)

// NopPresenter ignores every signal.
type NopPresenter struct{}

func (NopPresenter) DeckReady(domain.DailyDeck)                         {}
func (NopPresenter) DeckStale(domain.CalendarDate, domain.CalendarDate) {}
func (NopPresenter) DeckUnavailable(domain.CalendarDate)                {}

// Presenters fans each signal out in order.
type Presenters []Presenter

func (ps Presenters) DeckReady(deck domain.DailyDeck) {
	for _, p := range ps {
		p.DeckReady(deck)
	}
}

func (ps Presenters) DeckStale(previous, next domain.CalendarDate) {
	for _, p := range ps {
		p.DeckStale(previous, next)
	}
}

func (ps Presenters) DeckUnavailable(date domain.CalendarDate) {
	for _, p := range ps {
		p.DeckUnavailable(date)
	}
}

// LogPresenter traces signals at debug level.
type LogPresenter struct {
	Logger *slog.Logger
}

func (p LogPresenter) DeckReady(deck domain.DailyDeck) {
	p.Logger.Debug("deck ready", "date", deck.Date.String(), "cards", len(deck.Cards))
}

func (p LogPresenter) DeckStale(previous, next domain.CalendarDate) {
	p.Logger.Debug("deck stale", "previous", previous.String(), "next", next.String())
}

func (p LogPresenter) DeckUnavailable(date domain.CalendarDate) {
	p.Logger.Debug("deck not drawn", "date", date.String())
}
