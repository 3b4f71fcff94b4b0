package rollover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/conorfennell/tarottimer/internal/clock"
	"github.com/conorfennell/tarottimer/internal/deck"
	"github.com/conorfennell/tarottimer/internal/domain"
	"github.com/conorfennell/tarottimer/internal/lifecycle"
	"github.com/conorfennell/tarottimer/internal/logging"
	"github.com/conorfennell/tarottimer/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var kst = time.FixedZone("KST", 9*60*60)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, kst)
}

type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.DailyRecord
	err     error

	// When gate is set, Get signals entered and waits for gate to close.
	gate    chan struct{}
	entered chan struct{}
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.DailyRecord)}
}

func (s *memStore) Get(ctx context.Context, key string) (*domain.DailyRecord, error) {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	out := copyRecord(rec)
	return &out, nil
}

func (s *memStore) Set(ctx context.Context, key string, rec *domain.DailyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	out := copyRecord(rec)
	s.records[key] = &out
	return nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.records[key]
	return ok, nil
}

func (s *memStore) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *memStore) get(date domain.CalendarDate) *domain.DailyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[storage.Key(date)]
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) DeckReady(d domain.DailyDeck) { r.add("ready:" + d.Date.String()) }
func (r *recorder) DeckStale(prev, next domain.CalendarDate) {
	r.add("stale:" + prev.String() + ">" + next.String())
}
func (r *recorder) DeckUnavailable(d domain.CalendarDate) { r.add("unavailable:" + d.String()) }

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// take returns and clears the recorded events.
func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func testTable(t *testing.T) *deck.Table {
	t.Helper()
	cards := make([]domain.Card, 30)
	for i := range cards {
		cards[i] = domain.Card{
			ID:     i,
			Names:  map[string]string{"en": fmt.Sprintf("Card %d", i)},
			Arcana: domain.Major,
			Number: i % 22,
		}
	}
	table, err := deck.NewTable(cards)
	require.NoError(t, err)
	return table
}

type harness struct {
	store *memStore
	clock *clock.Fake
	pres  *recorder
	table *deck.Table
	rec   *Reconciler
}

func newHarness(t *testing.T, now time.Time, cfg Config) *harness {
	t.Helper()
	h := &harness{
		store: newMemStore(),
		clock: clock.NewFake(now),
		pres:  &recorder{},
		table: testTable(t),
	}
	h.rec = h.reconciler(cfg)
	return h
}

// reconciler builds a fresh reconciler over the harness store, as after a
// process restart.
func (h *harness) reconciler(cfg Config) *Reconciler {
	return New(h.store, h.clock, h.table, h.pres, logging.Discard(), cfg)
}

func TestStart_NoRecord(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	ctx := context.Background()

	require.NoError(t, h.rec.Start(ctx))

	assert.Equal(t, Active, h.rec.State())
	assert.Equal(t, domain.NewDate(2025, 10, 20), h.rec.ActiveDate())
	assert.Equal(t, []string{"unavailable:2025-10-20"}, h.pres.take())

	_, err := h.rec.Current()
	assert.ErrorIs(t, err, ErrDeckNotDrawn)

	assert.ErrorIs(t, h.rec.Start(ctx), ErrAlreadyStarted)
}

func TestStart_ExistingRecord(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	ctx := context.Background()

	require.NoError(t, h.rec.Start(ctx))
	drawn, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	h.pres.take()

	restarted := h.reconciler(Config{})
	require.NoError(t, restarted.Start(ctx))
	assert.Equal(t, []string{"ready:2025-10-20"}, h.pres.take())

	cur, err := restarted.Current()
	require.NoError(t, err)
	assert.Equal(t, domain.CardIDs(drawn), domain.CardIDs(cur))
}

func TestStart_RecordWithMismatchedDate(t *testing.T) {
	h := newHarness(t, at(2025, 10, 21, 9, 0), Config{})
	today := domain.NewDate(2025, 10, 21)

	stale := &domain.DailyRecord{ID: "x", Date: domain.NewDate(2025, 10, 20), CardIDs: make([]int, 24)}
	require.NoError(t, h.store.Set(context.Background(), storage.Key(today), stale))

	require.NoError(t, h.rec.Start(context.Background()))
	assert.Equal(t, []string{"unavailable:2025-10-21"}, h.pres.take())
}

func TestTick_RolloverWhileActive(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 59), Config{})
	ctx := context.Background()

	require.NoError(t, h.rec.Start(ctx))
	_, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	h.pres.take()

	h.clock.Set(at(2025, 10, 21, 0, 0))
	assert.True(t, h.rec.Tick(ctx))
	assert.Equal(t, []string{"stale:2025-10-20>2025-10-21", "unavailable:2025-10-21"}, h.pres.take())
	assert.Equal(t, domain.NewDate(2025, 10, 21), h.rec.ActiveDate())

	_, err = h.rec.Current()
	assert.ErrorIs(t, err, ErrDeckNotDrawn)

	// Yesterday's record stays readable by its own key.
	assert.NotNil(t, h.store.get(domain.NewDate(2025, 10, 20)))
}

func TestTick_Idempotent(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 59), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	h.pres.take()

	h.clock.Set(at(2025, 10, 21, 0, 1))
	h.rec.Tick(ctx)
	first := h.pres.take()
	require.Len(t, first, 2)

	for i := 0; i < 3; i++ {
		h.clock.Advance(time.Minute)
		h.rec.Tick(ctx)
	}
	assert.Empty(t, h.pres.take())
	assert.Equal(t, domain.NewDate(2025, 10, 21), h.rec.ActiveDate())
}

func TestResume_AfterMidnight(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 58), Config{})
	ctx := context.Background()

	require.NoError(t, h.rec.Start(ctx))
	_, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	h.pres.take()

	h.rec.Suspend()
	assert.Equal(t, Suspended, h.rec.State())
	_, err = h.rec.Current()
	assert.ErrorIs(t, err, ErrNotActive)

	h.clock.Set(at(2025, 10, 21, 0, 5))

	// Ticks are frozen while suspended.
	assert.False(t, h.rec.Tick(ctx))
	assert.Equal(t, domain.NewDate(2025, 10, 20), h.rec.ActiveDate())
	assert.Empty(t, h.pres.take())

	assert.True(t, h.rec.Resume(ctx))
	assert.Equal(t, Active, h.rec.State())
	assert.Equal(t, []string{"stale:2025-10-20>2025-10-21", "unavailable:2025-10-21"}, h.pres.take())

	_, err = h.rec.Current()
	assert.ErrorIs(t, err, ErrDeckNotDrawn, "the 20th's deck must not be served on the 21st")
}

func TestResume_SameDay(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 10, 0), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	_, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	h.pres.take()

	h.rec.Suspend()
	h.clock.Advance(3 * time.Hour)
	h.rec.Resume(ctx)

	assert.Empty(t, h.pres.take())
	_, err = h.rec.Current()
	assert.NoError(t, err)
}

func TestResume_WhenNotSuspendedIsNoop(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 10, 0), Config{})
	require.NoError(t, h.rec.Start(context.Background()))
	h.pres.take()

	assert.False(t, h.rec.Resume(context.Background()))
	assert.Empty(t, h.pres.take())
}

func TestFreshReconcilerAfterTermination(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 22, 0), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	_, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	h.pres.take()

	// The process dies and is relaunched the next morning.
	h.clock.Set(at(2025, 10, 21, 7, 30))
	relaunched := h.reconciler(Config{})
	require.NoError(t, relaunched.Start(ctx))

	assert.Equal(t, []string{"unavailable:2025-10-21"}, h.pres.take())
	assert.Equal(t, domain.NewDate(2025, 10, 21), relaunched.ActiveDate())
}

func TestClockFailureKeepsDeck(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 59), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	drawn, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	h.pres.take()

	h.clock.Set(at(2025, 10, 21, 0, 1))
	h.clock.Fail(clock.ErrUnavailable)
	h.rec.Tick(ctx)

	assert.Empty(t, h.pres.take())
	cur, err := h.rec.Current()
	require.NoError(t, err)
	assert.Equal(t, drawn.Date, cur.Date)

	h.clock.Fail(nil)
	h.rec.Tick(ctx)
	assert.Equal(t, []string{"stale:2025-10-20>2025-10-21", "unavailable:2025-10-21"}, h.pres.take())
}

func TestStoreFailureKeepsDeckAndRetries(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 59), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	_, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	h.pres.take()

	h.clock.Set(at(2025, 10, 21, 0, 1))
	h.store.fail(errors.New("disk full"))
	h.rec.Tick(ctx)

	assert.Empty(t, h.pres.take())
	assert.Equal(t, domain.NewDate(2025, 10, 20), h.rec.ActiveDate())

	h.store.fail(nil)
	h.rec.Tick(ctx)
	assert.Equal(t, []string{"stale:2025-10-20>2025-10-21", "unavailable:2025-10-21"}, h.pres.take())
}

func TestStart_ClockFailureRetriedOnTick(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	ctx := context.Background()

	h.clock.Fail(clock.ErrUnavailable)
	require.NoError(t, h.rec.Start(ctx))
	assert.Equal(t, Active, h.rec.State())
	assert.True(t, h.rec.ActiveDate().IsZero())
	assert.Empty(t, h.pres.take())

	h.clock.Fail(nil)
	h.rec.Tick(ctx)
	assert.Equal(t, []string{"unavailable:2025-10-20"}, h.pres.take())
}

func TestConcurrentResumeIsCoalesced(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 58), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	_, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	h.rec.Suspend()
	h.pres.take()

	h.clock.Set(at(2025, 10, 21, 0, 5))
	h.store.mu.Lock()
	h.store.gate = make(chan struct{})
	h.store.entered = make(chan struct{}, 1)
	h.store.mu.Unlock()

	first := make(chan bool)
	go func() { first <- h.rec.Resume(ctx) }()
	<-h.store.entered

	assert.False(t, h.rec.Resume(ctx), "second resume should be dropped")

	current := make(chan error)
	go func() {
		_, err := h.rec.Current()
		current <- err
	}()

	h.store.mu.Lock()
	close(h.store.gate)
	h.store.gate = nil
	h.store.mu.Unlock()

	assert.True(t, <-first)
	assert.ErrorIs(t, <-current, ErrDeckNotDrawn)
	assert.Equal(t, []string{"stale:2025-10-20>2025-10-21", "unavailable:2025-10-21"}, h.pres.take())
}

func TestAutoDraw(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 59), Config{AutoDraw: true})
	ctx := context.Background()

	require.NoError(t, h.rec.Start(ctx))
	assert.Equal(t, []string{"ready:2025-10-20"}, h.pres.take())
	require.NotNil(t, h.store.get(domain.NewDate(2025, 10, 20)))

	h.clock.Set(at(2025, 10, 21, 0, 0))
	h.rec.Tick(ctx)
	assert.Equal(t, []string{"stale:2025-10-20>2025-10-21", "ready:2025-10-21"}, h.pres.take())

	cur, err := h.rec.Current()
	require.NoError(t, err)
	want, err := h.table.Generate(domain.NewDate(2025, 10, 21))
	require.NoError(t, err)
	assert.Equal(t, domain.CardIDs(want), domain.CardIDs(cur))
}

func TestDraw(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	h.pres.take()

	drawn, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	assert.Len(t, drawn.Cards, domain.HoursPerDay)
	assert.Equal(t, []string{"ready:2025-10-20"}, h.pres.take())

	stored := h.store.get(domain.NewDate(2025, 10, 20))
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ID)
	assert.Empty(t, stored.Memos)
	assert.Equal(t, h.table.Hash(), stored.DeckHash)

	require.NoError(t, h.rec.UpdateMemo(ctx, 9, "coffee"))

	again, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CardIDs(drawn), domain.CardIDs(again))
	assert.Equal(t, stored.ID, h.store.get(domain.NewDate(2025, 10, 20)).ID)
	assert.Empty(t, h.pres.take(), "drawing a drawn day changes nothing")

	redrawn, err := h.rec.Redraw(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CardIDs(drawn), domain.CardIDs(redrawn))
	replaced := h.store.get(domain.NewDate(2025, 10, 20))
	assert.NotEqual(t, stored.ID, replaced.ID)
	assert.Empty(t, replaced.Memos)
}

func TestDraw_CatchesMissedMidnight(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 59), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	h.pres.take()

	h.clock.Set(at(2025, 10, 21, 0, 2))
	drawn, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2025, 10, 21), drawn.Date)
	assert.Nil(t, h.store.get(domain.NewDate(2025, 10, 20)))
}

func TestDraw_NotActive(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	_, err := h.rec.Draw(context.Background())
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestUpdateMemoAndInsights(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))

	assert.ErrorIs(t, h.rec.UpdateMemo(ctx, 3, "x"), ErrDeckNotDrawn)

	_, err := h.rec.Draw(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, h.rec.UpdateMemo(ctx, 24, "x"), ErrInvalidHour)
	assert.ErrorIs(t, h.rec.UpdateMemo(ctx, -1, "x"), ErrInvalidHour)

	require.NoError(t, h.rec.UpdateMemo(ctx, 9, "coffee"))
	require.NoError(t, h.rec.UpdateInsights(ctx, "calm"))

	stored := h.store.get(domain.NewDate(2025, 10, 20))
	assert.Equal(t, "coffee", stored.Memos[9])
	assert.Equal(t, "calm", stored.Insights)

	rec, err := h.rec.Record()
	require.NoError(t, err)
	assert.Equal(t, "coffee", rec.Memos[9])

	require.NoError(t, h.rec.UpdateMemo(ctx, 9, ""))
	_, ok := h.store.get(domain.NewDate(2025, 10, 20)).Memos[9]
	assert.False(t, ok)

	h.store.fail(errors.New("locked"))
	err = h.rec.UpdateInsights(ctx, "lost")
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	rec, err = h.rec.Record()
	require.NoError(t, err)
	assert.Equal(t, "calm", rec.Insights, "failed write must not change the loaded record")
}

func TestLookup(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	drawn, err := h.rec.Draw(ctx)
	require.NoError(t, err)

	h.clock.Set(at(2025, 10, 21, 9, 0))
	h.rec.Tick(ctx)

	rec, dd, err := h.rec.Lookup(ctx, domain.NewDate(2025, 10, 20))
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2025, 10, 20), rec.Date)
	assert.Equal(t, domain.CardIDs(drawn), domain.CardIDs(dd))

	_, _, err = h.rec.Lookup(ctx, domain.NewDate(2025, 10, 21))
	assert.ErrorIs(t, err, ErrDeckNotDrawn)
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 59), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.rec.Start(ctx))
	h.pres.take()

	done := make(chan error)
	go func() { done <- h.rec.Run(ctx, 5*time.Millisecond) }()

	h.clock.Set(at(2025, 10, 21, 0, 0))
	assert.Eventually(t, func() bool {
		return h.rec.ActiveDate().Equal(domain.NewDate(2025, 10, 21))
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestAttach(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 58), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	h.pres.take()

	c := lifecycle.New(lifecycle.Options{Logger: logging.Discard()})
	detach := h.rec.Attach(c, 10, 0)

	c.Dispatch(ctx, lifecycle.Background)
	assert.Equal(t, Suspended, h.rec.State())

	h.clock.Set(at(2025, 10, 21, 0, 5))
	res := c.Dispatch(ctx, lifecycle.Foreground)
	assert.Equal(t, []string{"rollover.resume"}, res.Ran)
	assert.Equal(t, Active, h.rec.State())
	assert.Equal(t, []string{"stale:2025-10-20>2025-10-21", "unavailable:2025-10-21"}, h.pres.take())

	detach()
	c.Dispatch(ctx, lifecycle.Background)
	assert.Equal(t, Active, h.rec.State())
}

func TestAttach_DebounceNeverStrandsSuspendedSession(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 58), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))
	h.pres.take()

	var mu sync.Mutex
	now := time.Unix(1000, 0)
	c := lifecycle.New(lifecycle.Options{
		Logger: logging.Discard(),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
	})
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	defer h.rec.Attach(c, 10, time.Second)()

	c.Dispatch(ctx, lifecycle.Background)
	c.Dispatch(ctx, lifecycle.Foreground)
	require.Equal(t, Active, h.rec.State())

	advance(300 * time.Millisecond)
	c.Dispatch(ctx, lifecycle.Background)
	require.Equal(t, Suspended, h.rec.State())

	advance(300 * time.Millisecond)
	h.clock.Set(at(2025, 10, 21, 0, 5))
	res := c.Dispatch(ctx, lifecycle.Foreground)
	assert.Equal(t, []string{ResumeHandler}, res.Ran)
	assert.Equal(t, Active, h.rec.State())
	assert.Equal(t, domain.NewDate(2025, 10, 21), h.rec.ActiveDate())

	// A repeated foreground without a background in between is still collapsed.
	advance(300 * time.Millisecond)
	res = c.Dispatch(ctx, lifecycle.Foreground)
	assert.Equal(t, []string{ResumeHandler}, res.Debounced)
}

// gatedPresenter blocks inside DeckStale until gate is closed.
type gatedPresenter struct {
	*recorder
	entered chan struct{}
	gate    chan struct{}
}

func (p *gatedPresenter) DeckStale(prev, next domain.CalendarDate) {
	p.entered <- struct{}{}
	<-p.gate
	p.recorder.DeckStale(prev, next)
}

func TestResumeDroppedDuringTickEmitIsHonoured(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 23, 59), Config{})
	pres := &gatedPresenter{recorder: h.pres, entered: make(chan struct{}), gate: make(chan struct{})}
	rec := New(h.store, h.clock, h.table, pres, logging.Discard(), Config{})
	ctx := context.Background()
	require.NoError(t, rec.Start(ctx))
	h.pres.take()

	h.clock.Set(at(2025, 10, 21, 0, 1))
	ticked := make(chan bool)
	go func() { ticked <- rec.Tick(ctx) }()
	<-pres.entered

	// The tick committed and released the lock; it is still delivering.
	rec.Suspend()
	assert.False(t, rec.Resume(ctx), "resume while the tick is in flight is handed to it")
	close(pres.gate)

	assert.True(t, <-ticked)
	assert.Equal(t, Active, rec.State())
	_, err := rec.Current()
	assert.ErrorIs(t, err, ErrDeckNotDrawn)
	assert.Equal(t, []string{"stale:2025-10-20>2025-10-21", "unavailable:2025-10-21"}, h.pres.take())
}

func TestDraw_ReportsPersistenceFailureBeforeFirstDate(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	ctx := context.Background()

	h.store.fail(errors.New("database is locked"))
	require.NoError(t, h.rec.Start(ctx))
	assert.True(t, h.rec.ActiveDate().IsZero())

	_, err := h.rec.Draw(ctx)
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	assert.NotErrorIs(t, err, ErrClockUnavailable)

	h.clock.Fail(clock.ErrUnavailable)
	_, err = h.rec.Draw(ctx)
	assert.ErrorIs(t, err, ErrClockUnavailable)

	h.clock.Fail(nil)
	h.store.fail(nil)
	drawn, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2025, 10, 20), drawn.Date)
}

func TestDraw_AdoptsRecordDrawnElsewhere(t *testing.T) {
	h := newHarness(t, at(2025, 10, 20, 9, 0), Config{})
	ctx := context.Background()
	require.NoError(t, h.rec.Start(ctx))

	// A second process over the same store draws and annotates today.
	other := h.reconciler(Config{})
	require.NoError(t, other.Start(ctx))
	_, err := other.Draw(ctx)
	require.NoError(t, err)
	require.NoError(t, other.UpdateMemo(ctx, 9, "coffee"))
	stored := h.store.get(domain.NewDate(2025, 10, 20))
	h.pres.take()

	drawn, err := h.rec.Draw(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.NewDate(2025, 10, 20), drawn.Date)
	assert.Equal(t, []string{"ready:2025-10-20"}, h.pres.take())

	kept := h.store.get(domain.NewDate(2025, 10, 20))
	assert.Equal(t, stored.ID, kept.ID)
	assert.Equal(t, "coffee", kept.Memos[9])

	rec, err := h.rec.Record()
	require.NoError(t, err)
	assert.Equal(t, "coffee", rec.Memos[9])
}
