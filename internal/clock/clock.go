package clock

import (
	"errors"
	"sync"
	"time"

	"github.com/conorfennell/tarottimer/internal/domain"
)

// ErrUnavailable is returned by clocks that cannot currently tell the time.
var ErrUnavailable = errors.New("clock unavailable")

// Clock reports the current wall-clock time in the device's local zone.
type Clock interface {
	Now() (time.Time, error)
}

// Today resolves the local calendar date from c.
func Today(c Clock) (domain.CalendarDate, error) {
	now, err := c.Now()
	if err != nil {
		return domain.CalendarDate{}, err
	}
	return domain.DateOf(now), nil
}

// System is the real clock, pinned to a location.
type System struct {
	Location *time.Location
}

// NewSystem returns a system clock for loc, or the process local zone if loc
// is nil.
func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.Local
	}
	return System{Location: loc}
}

func (s System) Now() (time.Time, error) {
	return time.Now().In(s.Location), nil
}

// Fake is a settable clock for tests and simulations.
type Fake struct {
	mu  sync.Mutex
	now time.Time
	err error
}

// NewFake returns a fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.now, nil
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Fail makes subsequent reads return err until it is cleared with nil.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
