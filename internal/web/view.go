package web

import (
	"time"

	"github.com/conorfennell/tarottimer/internal/domain"
)

type cardView struct {
	Hour     int      `json:"hour"`
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Arcana   string   `json:"arcana"`
	Suit     string   `json:"suit,omitempty"`
	Upright  string   `json:"upright"`
	Reversed string   `json:"reversed,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Memo     string   `json:"memo,omitempty"`
}

type dayView struct {
	Date     domain.CalendarDate `json:"date"`
	RecordID string              `json:"record_id,omitempty"`
	Cards    []cardView          `json:"cards"`
	Insights string              `json:"insights,omitempty"`
	SavedAt  *time.Time          `json:"saved_at,omitempty"`
}

type todayView struct {
	State         string              `json:"state"`
	Date          domain.CalendarDate `json:"date"`
	Drawn         bool                `json:"drawn"`
	CurrentHour   int                 `json:"current_hour"`
	UntilMidnight int64               `json:"until_midnight_seconds"`
	NextReminder  *time.Time          `json:"next_reminder,omitempty"`
	Cards         []cardView          `json:"cards,omitempty"`
	Insights      string              `json:"insights,omitempty"`
	LastSignal    *Signal             `json:"last_signal,omitempty"`
}

func newDayView(dd domain.DailyDeck, rec *domain.DailyRecord, loc string) dayView {
	view := dayView{Date: dd.Date, Cards: make([]cardView, len(dd.Cards))}
	for hour, c := range dd.Cards {
		view.Cards[hour] = cardView{
			Hour:     hour,
			ID:       c.ID,
			Name:     c.Name(loc),
			Arcana:   string(c.Arcana),
			Suit:     c.Suit,
			Upright:  c.Upright,
			Reversed: c.Reversed,
			Keywords: c.Keywords,
		}
	}
	if rec != nil {
		view.RecordID = rec.ID
		view.Insights = rec.Insights
		if !rec.SavedAt.IsZero() {
			saved := rec.SavedAt
			view.SavedAt = &saved
		}
		for hour, memo := range rec.Memos {
			if hour >= 0 && hour < len(view.Cards) {
				view.Cards[hour].Memo = memo
			}
		}
	}
	return view
}
