package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/conorfennell/tarottimer/internal/clock"
	"github.com/conorfennell/tarottimer/internal/deck"
	"github.com/conorfennell/tarottimer/internal/domain"
	"github.com/conorfennell/tarottimer/internal/lifecycle"
	"github.com/conorfennell/tarottimer/internal/locale"
	"github.com/conorfennell/tarottimer/internal/rollover"
	"github.com/conorfennell/tarottimer/internal/schedule"
)

// Session is the slice of the reconciler the HTTP layer drives.
type Session interface {
	State() rollover.State
	ActiveDate() domain.CalendarDate
	Current() (domain.DailyDeck, error)
	Record() (domain.DailyRecord, error)
	Draw(ctx context.Context) (domain.DailyDeck, error)
	Redraw(ctx context.Context) (domain.DailyDeck, error)
	UpdateMemo(ctx context.Context, hour int, text string) error
	UpdateInsights(ctx context.Context, text string) error
	Lookup(ctx context.Context, date domain.CalendarDate) (domain.DailyRecord, domain.DailyDeck, error)
}

// History lists the dates that have a stored record.
type History interface {
	ListDates(ctx context.Context) ([]domain.CalendarDate, error)
}

// Dispatcher forwards host lifecycle events.
type Dispatcher interface {
	Dispatch(ctx context.Context, event lifecycle.Event) lifecycle.Result
}

// Options holds the dependencies for the HTTP server.
type Options struct {
	Session   Session
	History   History
	Lifecycle Dispatcher
	Presenter *Presenter
	Locales   *locale.Matcher
	Locale    string
	Clock     clock.Clock
	Reminder  Reminder
	Logger    *slog.Logger
}

// Reminder configures the morning draw reminder reported by /api/today.
type Reminder struct {
	Hour  int
	Quiet schedule.QuietHours
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	opts   Options
	router *http.ServeMux
	logger *slog.Logger
}

// NewServer creates and configures a new server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Presenter == nil {
		opts.Presenter = NewPresenter(nil)
	}
	if opts.Locales == nil {
		opts.Locales = locale.NewMatcher(nil)
	}
	s := &Server{
		opts:   opts,
		router: http.NewServeMux(),
		logger: opts.Logger,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(rec, r)
	s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /api/today", s.handleGetToday())
	s.router.HandleFunc("POST /api/draw", s.handlePostDraw())
	s.router.HandleFunc("PUT /api/today/memos/{hour}", s.handlePutMemo())
	s.router.HandleFunc("PUT /api/today/insights", s.handlePutInsights())

	s.router.HandleFunc("GET /api/history", s.handleGetHistory())
	s.router.HandleFunc("GET /api/history/{date}", s.handleGetHistoryDate())

	s.router.HandleFunc("POST /api/lifecycle/{event}", s.handlePostLifecycle())
}

// handleGetToday renders today's deck, or reports that it still needs drawing.
func (s *Server) handleGetToday() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.today(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// handlePostDraw draws today's cards. ?redraw=true replaces an existing draw
// and clears its memos.
func (s *Server) handlePostDraw() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draw := s.opts.Session.Draw
		if redraw, _ := strconv.ParseBool(r.URL.Query().Get("redraw")); redraw {
			draw = s.opts.Session.Redraw
		}
		if _, err := draw(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}

		view, err := s.today(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type textBody struct {
	Text string `json:"text"`
}

// handlePutMemo stores the memo for one hour of today.
func (s *Server) handlePutMemo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hour, err := strconv.Atoi(r.PathValue("hour"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid hour"})
			return
		}
		var body textBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
			return
		}
		if err := s.opts.Session.UpdateMemo(r.Context(), hour, body.Text); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePutInsights stores today's reflection.
func (s *Server) handlePutInsights() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body textBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
			return
		}
		if err := s.opts.Session.UpdateInsights(r.Context(), body.Text); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleGetHistory lists every drawn date, newest first.
func (s *Server) handleGetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dates, err := s.opts.History.ListDates(r.Context())
		if err != nil {
			s.logger.Error("failed to list history", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
			return
		}
		if dates == nil {
			dates = []domain.CalendarDate{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
	}
}

// handleGetHistoryDate renders the stored record of a past (or current) day.
func (s *Server) handleGetHistoryDate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := domain.ParseDate(r.PathValue("date"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid date"})
			return
		}
		rec, dd, err := s.opts.Session.Lookup(r.Context(), date)
		if errors.Is(err, rollover.ErrDeckNotDrawn) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "no cards drawn for " + date.String()})
			return
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newDayView(dd, &rec, s.localeFor(r)))
	}
}

// handlePostLifecycle forwards a host foreground/background event.
func (s *Server) handlePostLifecycle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event := lifecycle.Event(r.PathValue("event"))
		if event != lifecycle.Foreground && event != lifecycle.Background {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown event"})
			return
		}
		res := s.opts.Lifecycle.Dispatch(r.Context(), event)

		errs := make(map[string]string, len(res.Errors))
		for id, err := range res.Errors {
			errs[id] = err.Error()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"event":     event,
			"dropped":   res.Dropped,
			"queued":    res.Queued,
			"ran":       res.Ran,
			"debounced": res.Debounced,
			"errors":    errs,
			"state":     s.opts.Session.State().String(),
		})
	}
}

func (s *Server) today(r *http.Request) (todayView, error) {
	loc := s.localeFor(r)
	view := todayView{
		State:      s.opts.Session.State().String(),
		Date:       s.opts.Session.ActiveDate(),
		LastSignal: s.opts.Presenter.Last(),
	}

	if s.opts.Clock != nil {
		if now, err := s.opts.Clock.Now(); err == nil {
			view.CurrentHour = schedule.HourSlot(now)
			view.UntilMidnight = int64(schedule.UntilMidnight(now) / time.Second)
			next := schedule.NextReminder(now, s.opts.Reminder.Hour, s.opts.Reminder.Quiet)
			view.NextReminder = &next
		}
	}

	dd, err := s.opts.Session.Current()
	if errors.Is(err, rollover.ErrDeckNotDrawn) {
		return view, nil
	}
	if err != nil {
		return view, err
	}
	var rec *domain.DailyRecord
	if got, err := s.opts.Session.Record(); err == nil {
		rec = &got
	}
	day := newDayView(dd, rec, loc)
	view.Drawn = true
	view.Cards = day.Cards
	view.Insights = day.Insights
	return view, nil
}

func (s *Server) localeFor(r *http.Request) string {
	if q := r.URL.Query().Get("locale"); q != "" {
		return s.opts.Locales.Match(q)
	}
	if h := r.Header.Get("Accept-Language"); h != "" {
		return s.opts.Locales.Match(h)
	}
	return s.opts.Locales.Match(s.opts.Locale)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps reconciler errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rollover.ErrNotActive),
		errors.Is(err, rollover.ErrDeckNotDrawn):
		status = http.StatusConflict
	case errors.Is(err, rollover.ErrInvalidHour):
		status = http.StatusBadRequest
	case errors.Is(err, rollover.ErrPersistenceUnavailable),
		errors.Is(err, rollover.ErrClockUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, deck.ErrInsufficientDeckSize):
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
