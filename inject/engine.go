// CLAUDE:SUMMARY Idempotent toolbar mount loop: debounced mutation/navigation signals, one attempt in flight, marker-based dedup.
// Package inject keeps exactly one toolbar mounted on a pull request view
// while the host page re-renders and navigates client-side. All state lives
// in one Engine and is mutated only by its loop goroutine.
package inject

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/composer"
	"github.com/hazyhaar/prquick/dom"
	"github.com/hazyhaar/prquick/locator"
)

// State of the engine.
type State int

const (
	Idle State = iota
	Armed
	Injecting
	Mounted
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Injecting:
		return "injecting"
	case Mounted:
		return "mounted"
	default:
		return "idle"
	}
}

// MarshalText makes State render by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DefaultNavigationDelay lets the host finish rendering after a navigation
// event before the engine looks at the page.
const DefaultNavigationDelay = 50 * time.Millisecond

// Outcome describes one engine decision.
type Outcome struct {
	State    State            `json:"state"`
	Identity locator.Identity `json:"identity"`
	Anchor   string           `json:"anchor,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	At       time.Time        `json:"at"`
}

// Reasons reported in Outcome.Reason.
const (
	ReasonNotPullView   = "not a pull request view"
	ReasonMarkerLive    = "toolbar already mounted"
	ReasonMarkerGone    = "toolbar removed by host"
	ReasonMarkerUnowned = "unowned toolbar replaced"
	ReasonCollapsed     = "attempt in flight"
	ReasonNoCredential  = "no credential configured"
	ReasonCredError     = "credential check failed"
	ReasonLostRace      = "toolbar mounted concurrently"
	ReasonStale         = "view changed during attempt"
	ReasonInserted      = "inserted"
	ReasonInsertFailed  = "insert failed"
	ReasonPageError     = "page unavailable"
)

// Config configures an Engine.
type Config struct {
	Debounce        time.Duration
	NavigationDelay time.Duration
	ReloadDelay     time.Duration
	Logger          *slog.Logger
	// OnEvaluate is called from the loop goroutine after every decision.
	OnEvaluate func(Outcome)
}

// Engine is the injection state machine.
type Engine struct {
	doc    dom.Document
	ch     action.Channel
	cfg    Config
	logger *slog.Logger

	mutC  chan struct{}
	navC  chan struct{}
	evalC chan struct{}
	doneC chan attemptResult

	deb      *debouncer
	navTimer *time.Timer
	navCh    <-chan time.Time

	// injecting is the reentrancy flag; only the loop goroutine touches it.
	injecting bool

	mu      sync.Mutex
	state   State
	last    Outcome
	toolbar *composer.Composer
}

// New creates an Engine over doc, talking to the agent through ch.
func New(doc dom.Document, ch action.Channel, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NavigationDelay <= 0 {
		cfg.NavigationDelay = DefaultNavigationDelay
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = composer.DefaultReloadDelay
	}
	return &Engine{
		doc:    doc,
		ch:     ch,
		cfg:    cfg,
		logger: cfg.Logger,
		mutC:   make(chan struct{}, 1),
		navC:   make(chan struct{}, 1),
		evalC:  make(chan struct{}, 1),
		doneC:  make(chan attemptResult, 1),
		deb:    newDebouncer(cfg.Debounce),
	}
}

func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

// Mutation reports a DOM subtree change. Never blocks.
func (e *Engine) Mutation() { signal(e.mutC) }

// Navigate reports a host router lifecycle event. Never blocks.
func (e *Engine) Navigate() { signal(e.navC) }

// Start requests one immediate evaluation, as on page load. Never blocks.
func (e *Engine) Start() { signal(e.evalC) }

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Last returns the most recent outcome.
func (e *Engine) Last() Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Gesture routes a user gesture to the mounted toolbar and returns once its
// immediate effect is applied. Any dispatch it starts runs on; the returned
// channel is closed when the gesture is fully handled. Gestures arriving
// with no toolbar mounted are dropped.
func (e *Engine) Gesture(ctx context.Context, g composer.Gesture) <-chan struct{} {
	e.mu.Lock()
	tb := e.toolbar
	e.mu.Unlock()
	if tb == nil {
		e.logger.Debug("inject: gesture without toolbar", "kind", g.Kind)
		done := make(chan struct{})
		close(done)
		return done
	}
	return tb.Accept(ctx, g)
}

// Run is the engine loop. It returns when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer func() {
		e.deb.fire()
		if e.navTimer != nil {
			e.navTimer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.mutC:
			e.deb.add()
		case <-e.navC:
			if e.navTimer != nil {
				e.navTimer.Stop()
			}
			e.navTimer = time.NewTimer(e.cfg.NavigationDelay)
			e.navCh = e.navTimer.C
		case <-e.navCh:
			e.navTimer, e.navCh = nil, nil
			e.deb.fire()
			e.evaluate(ctx)
		case <-e.deb.timerC():
			n := e.deb.fire()
			e.logger.Debug("inject: debounced", "signals", n)
			e.evaluate(ctx)
		case <-e.evalC:
			e.evaluate(ctx)
		case res := <-e.doneC:
			e.finish(ctx, res)
		}
	}
}

// boundTo reports whether the mounted toolbar drives pull request id.
func (e *Engine) boundTo(id locator.Identity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toolbar != nil && e.toolbar.Identity().Equal(id)
}

func (e *Engine) setState(s State, o Outcome) {
	e.transition(s, o, nil)
}

// transition records a new state. A mounted toolbar is kept across Mounted
// outcomes unless tb replaces it, and dropped on any other state.
func (e *Engine) transition(s State, o Outcome, tb *composer.Composer) {
	o.State = s
	o.At = time.Now()
	e.mu.Lock()
	e.state = s
	e.last = o
	switch {
	case s != Mounted:
		e.toolbar = nil
	case tb != nil:
		e.toolbar = tb
	}
	e.mu.Unlock()
	if e.cfg.OnEvaluate != nil {
		e.cfg.OnEvaluate(o)
	}
}

// evaluate is the single entry point for every signal.
func (e *Engine) evaluate(ctx context.Context) {
	path, err := e.doc.Path(ctx)
	if err != nil {
		e.logger.Warn("inject: read location", "error", err)
		if !e.injecting {
			e.setState(Idle, Outcome{Reason: ReasonPageError})
		}
		return
	}
	id, ok := locator.Locate(path)
	if !ok {
		if !e.injecting {
			e.setState(Idle, Outcome{Reason: ReasonNotPullView})
		}
		return
	}

	live, err := e.doc.Exists(ctx, dom.Target{Selector: composer.MarkerSelector})
	if err != nil {
		e.logger.Warn("inject: marker check", "error", err)
		return
	}
	if live {
		if e.injecting {
			return
		}
		if e.boundTo(id) {
			if e.State() != Mounted {
				e.setState(Mounted, Outcome{Identity: id, Reason: ReasonMarkerLive})
			}
			return
		}
		// A toolbar this engine does not drive: restored from the host's page
		// cache, left by an earlier session, or still showing another pull
		// request. Replace it.
		e.logger.Info("inject: replacing unowned toolbar", "pr", id.String())
		if err := e.doc.Remove(ctx, composer.MarkerSelector); err != nil {
			e.logger.Warn("inject: remove unowned toolbar", "error", err)
			return
		}
		if err := e.doc.Remove(ctx, composer.ModalSelector); err != nil {
			e.logger.Warn("inject: remove unowned modal", "error", err)
		}
		e.setState(Armed, Outcome{Identity: id, Reason: ReasonMarkerUnowned})
	}
	if e.State() == Mounted {
		e.setState(Armed, Outcome{Identity: id, Reason: ReasonMarkerGone})
	}

	if e.injecting {
		if e.cfg.OnEvaluate != nil {
			e.cfg.OnEvaluate(Outcome{State: Injecting, Identity: id, Reason: ReasonCollapsed, At: time.Now()})
		}
		return
	}

	if e.State() == Idle {
		e.setState(Armed, Outcome{Identity: id})
	}
	e.injecting = true
	e.setState(Injecting, Outcome{Identity: id})
	go func() {
		e.doneC <- e.attempt(ctx, id)
	}()
}

type attemptResult struct {
	state     State
	outcome   Outcome
	toolbar   *composer.Composer
	retrigger bool
}

// attempt runs off the loop goroutine. It reads the page and the channel
// but never touches engine state; finish applies its result.
func (e *Engine) attempt(ctx context.Context, id locator.Identity) attemptResult {
	idle := func(reason string) attemptResult {
		return attemptResult{state: Idle, outcome: Outcome{Identity: id, Reason: reason}}
	}

	hasCred, err := action.HasCredential(ctx, e.ch)
	if err != nil {
		e.logger.Info("inject: credential check failed", "pr", id.String(), "error", err)
		return idle(ReasonCredError)
	}
	if !hasCred {
		e.logger.Info("inject: no credential configured, toolbar not mounted", "pr", id.String())
		return idle(ReasonNoCredential)
	}

	if live, err := e.doc.Exists(ctx, dom.Target{Selector: composer.MarkerSelector}); err != nil || live {
		return idle(ReasonLostRace)
	}

	var vs *action.ViewState
	if res := e.ch.Dispatch(ctx, action.For(action.VerbGetViewState, id)); res.OK {
		var v action.ViewState
		if err := res.Decode(&v); err == nil {
			vs = &v
		} else {
			e.logger.Warn("inject: view state undecodable", "pr", id.String(), "error", err)
		}
	} else {
		e.logger.Warn("inject: view state unavailable", "pr", id.String(), "error", res.ErrorMessage)
	}

	a, err := findAnchor(ctx, e.doc)
	if err != nil {
		e.logger.Warn("inject: anchor lookup", "pr", id.String(), "error", err)
		return idle(ReasonPageError)
	}

	tb := composer.New(id, e.ch, e.doc,
		composer.WithReloadDelay(e.cfg.ReloadDelay),
		composer.WithLogger(e.logger))
	html, err := tb.Render(vs, a.name == floating.name)
	if err != nil {
		e.logger.Error("inject: render", "pr", id.String(), "error", err)
		return idle(ReasonInsertFailed)
	}

	path, err := e.doc.Path(ctx)
	if err != nil {
		return idle(ReasonPageError)
	}
	if now, ok := locator.Locate(path); !ok || !now.Equal(id) {
		return attemptResult{state: Armed, outcome: Outcome{Identity: id, Reason: ReasonStale}, retrigger: true}
	}
	if live, err := e.doc.Exists(ctx, dom.Target{Selector: composer.MarkerSelector}); err != nil || live {
		return idle(ReasonLostRace)
	}

	if err := e.doc.Insert(ctx, a.at, a.where, html); err != nil {
		e.logger.Warn("inject: insert", "pr", id.String(), "anchor", a.name, "error", err)
		return idle(ReasonInsertFailed)
	}
	e.logger.Info("inject: toolbar mounted", "pr", id.String(), "anchor", a.name)
	return attemptResult{
		state:   Mounted,
		outcome: Outcome{Identity: id, Anchor: a.name, Reason: ReasonInserted},
		toolbar: tb,
	}
}

func (e *Engine) finish(ctx context.Context, res attemptResult) {
	e.injecting = false
	e.transition(res.state, res.outcome, res.toolbar)
	if res.retrigger {
		e.evaluate(ctx)
	}
}
