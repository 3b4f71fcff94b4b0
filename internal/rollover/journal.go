package rollover

import (
	"context"
	"errors"
	"fmt"

	"github.com/conorfennell/tarottimer/internal/domain"
	"github.com/conorfennell/tarottimer/internal/storage"
)

// ErrInvalidHour is returned for memo hours outside 0-23.
var ErrInvalidHour = errors.New("hour out of range")

// Draw draws the deck for the active date when none exists yet. Drawing an
// already drawn day returns the stored deck unchanged, memos intact.
func (r *Reconciler) Draw(ctx context.Context) (domain.DailyDeck, error) {
	return r.draw(ctx, false)
}

// Redraw replaces the active date's record with a fresh one, clearing memos
// and insights. The cards are the same ones Draw would produce.
func (r *Reconciler) Redraw(ctx context.Context) (domain.DailyDeck, error) {
	return r.draw(ctx, true)
}

func (r *Reconciler) draw(ctx context.Context, replace bool) (domain.DailyDeck, error) {
	// Catch a midnight that passed since the last tick before drawing for
	// what may already be yesterday.
	r.reconcile(ctx, triggerDraw)

	r.mu.Lock()
	if r.state != Active {
		r.mu.Unlock()
		return domain.DailyDeck{}, ErrNotActive
	}
	if r.activeDate.IsZero() {
		// No pass has committed a date yet; report what kept it from doing so.
		err := r.lastErr
		r.mu.Unlock()
		if err == nil {
			err = ErrClockUnavailable
		}
		return domain.DailyDeck{}, err
	}
	if r.deck != nil && !replace {
		dd := *r.deck
		r.mu.Unlock()
		return dd, nil
	}

	var (
		rec *domain.DailyRecord
		dd  *domain.DailyDeck
		err error
	)
	if !replace {
		// Another process sharing the store may have drawn today since the
		// last pass; adopt its record rather than overwriting its memos.
		rec, dd, err = r.adopt(ctx, r.activeDate)
		if err != nil {
			r.mu.Unlock()
			return domain.DailyDeck{}, err
		}
	}
	if dd == nil {
		rec, dd, err = r.drawLocked(ctx, r.activeDate)
		if err != nil {
			r.mu.Unlock()
			return domain.DailyDeck{}, err
		}
	}
	r.record = rec
	r.deck = dd
	r.loaded = true
	ready := *dd
	r.mu.Unlock()

	r.presenter.DeckReady(ready)
	return ready, nil
}

// adopt loads date's record when the store already holds one. It returns a
// nil deck when there is none, or when the stored one is unusable.
func (r *Reconciler) adopt(ctx context.Context, date domain.CalendarDate) (*domain.DailyRecord, *domain.DailyDeck, error) {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()
	exists, err := r.store.Exists(opCtx, storage.Key(date))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	if !exists {
		return nil, nil, nil
	}
	rec, dd, err := r.load(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	if dd != nil {
		r.logger.Info("adopted deck drawn elsewhere", "date", date.String(), "record_id", rec.ID)
	}
	return rec, dd, nil
}

// UpdateMemo stores text against hour on today's record. Empty text removes
// the memo.
func (r *Reconciler) UpdateMemo(ctx context.Context, hour int, text string) error {
	if hour < 0 || hour >= domain.HoursPerDay {
		return fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	return r.update(ctx, func(rec *domain.DailyRecord) {
		if text == "" {
			delete(rec.Memos, hour)
			return
		}
		rec.Memos[hour] = text
	})
}

// UpdateInsights replaces the day's free-form reflection.
func (r *Reconciler) UpdateInsights(ctx context.Context, text string) error {
	return r.update(ctx, func(rec *domain.DailyRecord) {
		rec.Insights = text
	})
}

// update applies fn to a copy of today's record and commits it only once the
// store accepted the write.
func (r *Reconciler) update(ctx context.Context, fn func(*domain.DailyRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return ErrNotActive
	}
	if r.record == nil {
		return ErrDeckNotDrawn
	}

	next := copyRecord(r.record)
	fn(&next)
	if now, err := r.clock.Now(); err == nil {
		next.SavedAt = now
	}

	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()
	if err := r.store.Set(opCtx, storage.Key(next.Date), &next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	r.record = &next
	return nil
}

// Lookup reads the record for any date, past ones included. It never
// generates; a missing record yields ErrDeckNotDrawn.
func (r *Reconciler) Lookup(ctx context.Context, date domain.CalendarDate) (domain.DailyRecord, domain.DailyDeck, error) {
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	rec, err := r.store.Get(opCtx, storage.Key(date))
	if err != nil {
		return domain.DailyRecord{}, domain.DailyDeck{}, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	if rec == nil {
		return domain.DailyRecord{}, domain.DailyDeck{}, ErrDeckNotDrawn
	}
	dd, err := rec.Deck(r.source.Index())
	if err != nil {
		return domain.DailyRecord{}, domain.DailyDeck{}, err
	}
	return copyRecord(rec), dd, nil
}
