package schedule

import (
	"fmt"
	"time"
)

// DefaultReminderHour is the morning hour the draw reminder targets.
const DefaultReminderHour = 8

// HourSlot returns the deck slot (0-23) that t falls into.
func HourSlot(t time.Time) int {
	return t.Hour()
}

// NextHour returns the start of the hour after t in t's location.
func NextHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour()+1, 0, 0, 0, t.Location())
}

// NextMidnight returns the start of the next calendar day in t's location.
// On DST transition days the result is still local midnight, not t+24h.
func NextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// UntilMidnight returns how long remains of t's calendar day.
func UntilMidnight(t time.Time) time.Duration {
	return NextMidnight(t).Sub(t)
}

// QuietHours silences reminders between Start (inclusive) and End
// (exclusive). A window with Start > End wraps past midnight, e.g. 22-8.
type QuietHours struct {
	Enabled bool `koanf:"enabled"`
	Start   int  `koanf:"start" validate:"gte=0,lte=23"`
	End     int  `koanf:"end" validate:"gte=0,lte=23"`
}

// Contains reports whether hour is inside the quiet window.
func (q QuietHours) Contains(hour int) bool {
	if !q.Enabled {
		return false
	}
	if q.Start > q.End {
		return hour >= q.Start || hour < q.End
	}
	return hour >= q.Start && hour < q.End
}

func (q QuietHours) String() string {
	if !q.Enabled {
		return "off"
	}
	return fmt.Sprintf("%02d:00-%02d:00", q.Start, q.End)
}

// NextReminder returns when the daily draw reminder should fire after now.
// A target hour that falls inside an overnight quiet window is pushed to the
// window's end. If today's target already passed, tomorrow's is used.
func NextReminder(now time.Time, hour int, quiet QuietHours) time.Time {
	target := hour
	if quiet.Enabled && quiet.Start > quiet.End && target < quiet.End {
		target = quiet.End
	}

	y, m, d := now.Date()
	at := time.Date(y, m, d, target, 0, 0, 0, now.Location())
	if now.Hour() >= target {
		at = time.Date(y, m, d+1, target, 0, 0, 0, now.Location())
	}
	return at
}
