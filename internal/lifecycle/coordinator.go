// Package lifecycle dispatches host application-state events (foreground,
// background) to registered handlers.
//
// Handlers run one at a time in priority order (lower first). A dispatch of
// the event already running is dropped. A dispatch of the other event is held
// and runs once the current one finished; only the latest held event is kept,
// so the handlers always end on the state the host reported last. Each handler
// may carry a debounce window, tracked as a not-before timestamp per handler
// and checked when the dispatch reaches it.
package lifecycle

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Event is an application-state transition reported by the host.
type Event string

const (
	Foreground Event = "foreground"
	Background Event = "background"
)

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 5 * time.Second

// Handler reacts to an event. Handlers must honour ctx cancellation.
type Handler func(ctx context.Context) error

type registration struct {
	id       string
	event    Event
	priority int
	debounce time.Duration
	seq      uint64
	fn       Handler
}

// Options configures a Coordinator.
type Options struct {
	HandlerTimeout time.Duration
	Logger         *slog.Logger
	// Now overrides the time source used for debouncing.
	Now func() time.Time
}

// Result describes what a single Dispatch did.
type Result struct {
	Dropped   bool // the same event was already running
	Queued    bool // runs once the dispatch in progress finished
	Ran       []string
	Debounced []string
	Errors    map[string]error
}

// Coordinator owns handler registrations for one application instance.
type Coordinator struct {
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	handlers  map[string]registration
	notBefore map[string]time.Time
	seq       uint64

	dmu     sync.Mutex
	running bool
	current Event
	held    *Event
}

// New constructs a Coordinator.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		timeout:   opts.HandlerTimeout,
		logger:    opts.Logger,
		now:       opts.Now,
		handlers:  make(map[string]registration),
		notBefore: make(map[string]time.Time),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultHandlerTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Register adds fn for event under id, replacing any handler already
// registered with that id. The returned func removes the registration; it is
// safe to call more than once.
func (c *Coordinator) Register(event Event, id string, priority int, debounce time.Duration, fn Handler) func() {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.handlers[id] = registration{
		id:       id,
		event:    event,
		priority: priority,
		debounce: debounce,
		seq:      seq,
		fn:       fn,
	}
	delete(c.notBefore, id)
	c.mu.Unlock()

	c.logger.Debug("lifecycle handler registered", "id", id, "event", event, "priority", priority)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A later Register with the same id owns the slot now.
		if cur, ok := c.handlers[id]; ok && cur.seq == seq {
			delete(c.handlers, id)
			delete(c.notBefore, id)
		}
	}
}

// Dispatch runs every handler registered for event, sequentially by
// priority. A failing handler does not stop the ones after it.
func (c *Coordinator) Dispatch(ctx context.Context, event Event) Result {
	c.dmu.Lock()
	if c.running {
		defer c.dmu.Unlock()
		if event == c.current {
			// A held opposite event is superseded by this one, which the
			// running dispatch already covers.
			c.held = nil
			c.logger.Debug("lifecycle dispatch already running; dropping event", "event", event)
			return Result{Dropped: true}
		}
		c.held = &event
		c.logger.Debug("lifecycle dispatch running; holding event", "event", event, "running", c.current)
		return Result{Queued: true}
	}
	c.running = true
	c.current = event
	c.dmu.Unlock()

	res := c.run(ctx, event)
	for {
		c.dmu.Lock()
		if c.held == nil {
			c.running = false
			c.dmu.Unlock()
			return res
		}
		next := *c.held
		c.held = nil
		c.current = next
		c.dmu.Unlock()

		c.logger.Debug("running held lifecycle event", "event", next)
		c.run(ctx, next)
	}
}

// Reset clears the debounce window of handler id, so its next dispatch runs.
func (c *Coordinator) Reset(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.notBefore, id)
}

func (c *Coordinator) run(ctx context.Context, event Event) Result {
	res := Result{Errors: make(map[string]error)}
	for _, h := range c.snapshot(event) {
		if !c.claim(h) {
			res.Debounced = append(res.Debounced, h.id)
			continue
		}

		hctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := h.fn(hctx)
		cancel()

		res.Ran = append(res.Ran, h.id)
		if err != nil {
			res.Errors[h.id] = err
			c.logger.Warn("lifecycle handler failed", "id", h.id, "event", event, "error", err)
		}
	}
	return res
}

// Close removes every registration.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = make(map[string]registration)
	c.notBefore = make(map[string]time.Time)
}

func (c *Coordinator) snapshot(event Event) []registration {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]registration, 0, len(c.handlers))
	for _, h := range c.handlers {
		if h.event == event {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// claim checks the handler's debounce window and, when it is open, starts a
// new one. It reports false when the handler was unregistered meanwhile.
func (c *Coordinator) claim(h registration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.handlers[h.id]; !ok || cur.seq != h.seq {
		return false
	}
	now := c.now()
	if nb, ok := c.notBefore[h.id]; ok && now.Before(nb) {
		return false
	}
	if h.debounce > 0 {
		c.notBefore[h.id] = now.Add(h.debounce)
	}
	return true
}
