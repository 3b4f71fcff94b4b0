package rollover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/tarottimer/internal/clock"
	"github.com/conorfennell/tarottimer/internal/deck"
	"github.com/conorfennell/tarottimer/internal/domain"
	"github.com/conorfennell/tarottimer/internal/storage"
)

var (
	// ErrNotActive is returned while the session is idle or suspended.
	ErrNotActive = errors.New("session is not active")
	// ErrDeckNotDrawn means today's deck has not been drawn yet.
	ErrDeckNotDrawn = errors.New("deck not drawn for today")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("reconciler already started")
	// ErrPersistenceUnavailable wraps transient store failures.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrClockUnavailable wraps transient clock failures.
	ErrClockUnavailable = errors.New("clock unavailable")
)

// State is the session state of a Reconciler.
type State int

const (
	Idle State = iota
	Active
	Suspended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Store is the key-value persistence the reconciler needs.
// Get returns nil, nil for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (*domain.DailyRecord, error)
	Set(ctx context.Context, key string, rec *domain.DailyRecord) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Source draws daily decks and resolves stored card IDs. *deck.Table
// satisfies it.
type Source interface {
	Generate(date domain.CalendarDate) (domain.DailyDeck, error)
	Index() map[int]domain.Card
	Hash() string
}

// Config holds reconciler behaviour switches.
type Config struct {
	// AutoDraw draws the new day's deck during rollover instead of
	// signalling DeckUnavailable and waiting for the user.
	AutoDraw bool
	// OpTimeout bounds each persistence call.
	OpTimeout time.Duration
}

type trigger string

const (
	triggerStart  trigger = "start"
	triggerTick   trigger = "tick"
	triggerResume trigger = "resume"
	triggerDraw   trigger = "draw"
)

// Reconciler keeps the loaded deck in step with the local calendar date.
// All signals funnel into one reconciliation routine; at most one pass runs
// at a time and signals arriving during a pass are dropped. A dropped resume
// is the exception: the pass holding the guard runs it before letting go, so
// a suspend that landed meanwhile cannot strand the session.
type Reconciler struct {
	store     Store
	clock     clock.Clock
	source    Source
	presenter Presenter
	logger    *slog.Logger
	cfg       Config
	newID     func() string

	inProgress    atomic.Bool
	resumePending atomic.Bool

	mu          sync.Mutex
	state       State
	activeDate  domain.CalendarDate
	loaded      bool  // lookup for activeDate succeeded
	lastErr     error // why the latest pass could not commit
	record      *domain.DailyRecord
	deck        *domain.DailyDeck
	suspendedAt time.Time
}

// New wires a Reconciler. It starts Idle.
func New(store Store, clk clock.Clock, source Source, presenter Presenter, logger *slog.Logger, cfg Config) *Reconciler {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}
	return &Reconciler{
		store:     store,
		clock:     clk,
		source:    source,
		presenter: presenter,
		logger:    logger,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

// Start moves IDLE -> ACTIVE and loads today's record if one exists.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Idle {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.mu.Unlock()

	r.reconcile(ctx, triggerStart)
	return nil
}

// Tick re-checks the local date while active. Ticks while idle or
// suspended are ignored. It reports whether a pass ran.
func (r *Reconciler) Tick(ctx context.Context) bool {
	return r.reconcile(ctx, triggerTick)
}

// Suspend moves ACTIVE -> SUSPENDED, remembering when it happened.
func (r *Reconciler) Suspend() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return
	}
	r.state = Suspended
	r.suspendedAt, _ = r.clock.Now()
	r.logger.Info("session suspended", "active_date", r.activeDate.String())
}

// Resume moves SUSPENDED -> ACTIVE. The date is re-read now, since the
// process may have been suspended for any length of time; the session only
// becomes readable again after that check finished. It reports whether a
// pass ran here; false when another pass was in flight, in which case that
// pass performs the resume before it returns.
func (r *Reconciler) Resume(ctx context.Context) bool {
	return r.reconcile(ctx, triggerResume)
}

// State returns the current session state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ActiveDate returns the date the session is currently tracking.
func (r *Reconciler) ActiveDate() domain.CalendarDate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeDate
}

// Current returns today's loaded deck. It waits for an in-flight
// reconciliation to finish.
func (r *Reconciler) Current() (domain.DailyDeck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return domain.DailyDeck{}, ErrNotActive
	}
	if r.deck == nil {
		return domain.DailyDeck{}, ErrDeckNotDrawn
	}
	return *r.deck, nil
}

// Record returns a copy of today's persisted record, memos included.
func (r *Reconciler) Record() (domain.DailyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active {
		return domain.DailyRecord{}, ErrNotActive
	}
	if r.record == nil {
		return domain.DailyRecord{}, ErrDeckNotDrawn
	}
	return copyRecord(r.record), nil
}

// reconcile runs one guarded pass and then delivers the resulting signals.
func (r *Reconciler) reconcile(ctx context.Context, t trigger) bool {
	// The flag is raised before trying the guard so that an owner releasing
	// it concurrently is sure to see the request.
	if t == triggerResume {
		r.resumePending.Store(true)
	}
	if !r.inProgress.CompareAndSwap(false, true) {
		r.logger.Debug("reconciliation already in progress; dropping signal", "trigger", string(t))
		return false
	}
	if t == triggerResume {
		r.resumePending.Store(false)
	}

	ran := r.pass(ctx, t)
	r.release(ctx)
	return ran
}

func (r *Reconciler) pass(ctx context.Context, t trigger) bool {
	r.mu.Lock()
	signals, ran := r.reconcileLocked(ctx, t)
	r.mu.Unlock()

	r.emit(signals)
	return ran
}

// release drops the guard, first running any resume that was dropped while
// it was held.
func (r *Reconciler) release(ctx context.Context) {
	for {
		for r.resumePending.Swap(false) {
			r.logger.Debug("running resume dropped during previous pass")
			r.pass(ctx, triggerResume)
		}
		r.inProgress.Store(false)
		if !r.resumePending.Load() || !r.inProgress.CompareAndSwap(false, true) {
			return
		}
	}
}

func (r *Reconciler) reconcileLocked(ctx context.Context, t trigger) ([]signal, bool) {
	switch t {
	case triggerStart:
		if r.state != Idle {
			return nil, false
		}
	case triggerResume:
		if r.state != Suspended {
			return nil, false
		}
	case triggerTick, triggerDraw:
		if r.state != Active {
			return nil, false
		}
	}
	if t == triggerStart || t == triggerResume {
		// Transient failures below keep the last-known-good deck, and the
		// session stays readable while the next tick retries.
		defer func() { r.state = Active }()
	}
	if t == triggerResume && !r.suspendedAt.IsZero() {
		if now, err := r.clock.Now(); err == nil {
			r.logger.Info("session resumed", "active_date", r.activeDate.String(), "suspended_for", now.Sub(r.suspendedAt).Round(time.Second))
		}
	}

	today, err := clock.Today(r.clock)
	if err != nil {
		r.lastErr = fmt.Errorf("%w: %w", ErrClockUnavailable, err)
		r.logger.Warn("skipping reconciliation", "trigger", string(t), "error", r.lastErr)
		return nil, true
	}

	if r.loaded && today.Equal(r.activeDate) {
		r.lastErr = nil
		return nil, true
	}

	prev := r.activeDate
	rec, dd, err := r.load(ctx, today)
	if err != nil {
		r.lastErr = err
		r.logger.Warn("keeping previous deck", "trigger", string(t), "date", today.String(), "error", err)
		return nil, true
	}

	if rec == nil && r.cfg.AutoDraw {
		rec, dd, err = r.drawLocked(ctx, today)
		if err != nil {
			if errors.Is(err, deck.ErrInsufficientDeckSize) {
				r.logger.Error("cannot auto-draw deck", "date", today.String(), "error", err)
			} else {
				r.lastErr = err
				r.logger.Warn("keeping previous deck", "trigger", string(t), "date", today.String(), "error", err)
				return nil, true
			}
		}
	}

	r.activeDate = today
	r.loaded = true
	r.lastErr = nil
	r.record = rec
	r.deck = dd

	var signals []signal
	if !prev.IsZero() && !prev.Equal(today) {
		r.logger.Info("date rollover", "trigger", string(t), "from", prev.String(), "to", today.String())
		signals = append(signals, func(p Presenter) { p.DeckStale(prev, today) })
	}
	if dd != nil {
		ready := *dd
		signals = append(signals, func(p Presenter) { p.DeckReady(ready) })
	} else {
		signals = append(signals, func(p Presenter) { p.DeckUnavailable(today) })
	}
	return signals, true
}

// load reads the record for date. A record whose embedded date does not match
// its key, or that cannot be resolved against the source deck, is treated as
// absent.
func (r *Reconciler) load(ctx context.Context, date domain.CalendarDate) (*domain.DailyRecord, *domain.DailyDeck, error) {
	key := storage.Key(date)
	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()

	rec, err := r.store.Get(opCtx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	if rec == nil {
		return nil, nil, nil
	}
	if !rec.Date.Equal(date) {
		r.logger.Warn("ignoring record with mismatched date", "key", key, "record_date", rec.Date.String())
		return nil, nil, nil
	}
	dd, err := rec.Deck(r.source.Index())
	if err != nil {
		r.logger.Warn("ignoring unreadable record", "key", key, "error", err)
		return nil, nil, nil
	}
	if rec.DeckHash != "" && rec.DeckHash != r.source.Hash() {
		r.logger.Info("record was drawn from a different source deck", "key", key, "record_hash", rec.DeckHash, "deck_hash", r.source.Hash())
	}
	return rec, &dd, nil
}

// drawLocked generates and persists the deck for date.
func (r *Reconciler) drawLocked(ctx context.Context, date domain.CalendarDate) (*domain.DailyRecord, *domain.DailyDeck, error) {
	dd, err := r.source.Generate(date)
	if err != nil {
		return nil, nil, err
	}

	now, err := r.clock.Now()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrClockUnavailable, err)
	}
	rec := &domain.DailyRecord{
		ID:       r.newID(),
		Date:     date,
		CardIDs:  domain.CardIDs(dd),
		Memos:    map[int]string{},
		DeckHash: r.source.Hash(),
		SavedAt:  now,
	}

	opCtx, cancel := context.WithTimeout(ctx, r.cfg.OpTimeout)
	defer cancel()
	if err := r.store.Set(opCtx, storage.Key(date), rec); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPersistenceUnavailable, err)
	}
	r.logger.Info("daily deck drawn", "date", date.String(), "record_id", rec.ID)
	return rec, &dd, nil
}

func (r *Reconciler) emit(signals []signal) {
	for _, s := range signals {
		s(r.presenter)
	}
}

func copyRecord(rec *domain.DailyRecord) domain.DailyRecord {
	out := *rec
	out.CardIDs = append([]int(nil), rec.CardIDs...)
	out.Memos = make(map[int]string, len(rec.Memos))
	for h, m := range rec.Memos {
		out.Memos[h] = m
	}
	return out
}
