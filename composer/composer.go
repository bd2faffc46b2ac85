// CLAUDE:SUMMARY Toolbar behaviour for one mounted PR: menus, review modal, confirm gates, dispatch and reload.
// Package composer renders the quick-actions toolbar and reacts to the user
// gestures the page reports for it. A Composer is bound to one pull request
// and one mount; it talks to the page through dom.Surface and to the agent
// through action.Channel only.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/dom"
	"github.com/hazyhaar/prquick/locator"
)

// GestureKind names a user interaction reported by the page.
type GestureKind string

const (
	// GestureMenuToggle: a menu trigger was clicked. Target is the menu name.
	GestureMenuToggle GestureKind = "menu-toggle"
	// GestureOutsideClick: a click landed outside every toolbar menu.
	GestureOutsideClick GestureKind = "outside-click"
	// GestureReviewPick: a review menu entry. Value is the review event.
	GestureReviewPick GestureKind = "review-pick"
	// GestureActionPick: an actions menu entry. Value is an Item* constant.
	GestureActionPick GestureKind = "action-pick"
	// GestureModalSubmit: submit button or Ctrl/Cmd+Enter. Value is the text.
	GestureModalSubmit GestureKind = "modal-submit"
	// GestureModalDismiss: close button, cancel button or backdrop click.
	GestureModalDismiss GestureKind = "modal-dismiss"
	GestureEscape       GestureKind = "escape"
)

// Menu names.
const (
	MenuReview  = "review"
	MenuActions = "actions"
)

// Gesture is one interaction event.
type Gesture struct {
	Kind   GestureKind `json:"kind"`
	Target string      `json:"target,omitempty"`
	Value  string      `json:"value,omitempty"`
}

// ModalState is the lifecycle of the review modal.
type ModalState int

const (
	ModalClosed ModalState = iota
	ModalOpen
	ModalSubmitting
)

func (s ModalState) String() string {
	switch s {
	case ModalOpen:
		return "open"
	case ModalSubmitting:
		return "submitting"
	default:
		return "closed"
	}
}

// DefaultReloadDelay is how long a success toast shows before the page reloads.
const DefaultReloadDelay = time.Second

// Option configures a Composer.
type Option func(*Composer)

// WithReloadDelay overrides DefaultReloadDelay.
func WithReloadDelay(d time.Duration) Option {
	return func(c *Composer) { c.reloadDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// WithScheduler replaces time.AfterFunc for the reload timer.
func WithScheduler(after func(time.Duration, func())) Option {
	return func(c *Composer) { c.after = after }
}

// Composer holds the UI state of one mounted toolbar.
type Composer struct {
	pr      locator.Identity
	ch      action.Channel
	surface dom.Surface

	reloadDelay time.Duration
	after       func(time.Duration, func())
	logger      *slog.Logger

	mu          sync.Mutex
	openMenu    string
	modal       ModalState
	modalReview review
	actionsBusy bool
	autoMerge   bool
}

// New creates a Composer for pr.
func New(pr locator.Identity, ch action.Channel, surface dom.Surface, opts ...Option) *Composer {
	c := &Composer{
		pr:          pr,
		ch:          ch,
		surface:     surface,
		reloadDelay: DefaultReloadDelay,
		after:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Identity returns the pull request this toolbar acts on.
func (c *Composer) Identity() locator.Identity { return c.pr }

// Render renders the toolbar and remembers the auto-merge state it shows.
func (c *Composer) Render(vs *action.ViewState, floating bool) (string, error) {
	c.mu.Lock()
	c.autoMerge = vs != nil && vs.AutoMergeEnabled
	c.mu.Unlock()
	return RenderToolbar(c.pr.String(), vs, floating)
}

// OpenMenu returns the name of the open menu, or "".
func (c *Composer) OpenMenu() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openMenu
}

// Modal returns the modal state.
func (c *Composer) Modal() ModalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modal
}

// Handle reacts to one gesture and returns once it is fully handled,
// including any dispatch it triggers.
func (c *Composer) Handle(ctx context.Context, g Gesture) {
	if rest := c.apply(ctx, g); rest != nil {
		rest()
	}
}

// Accept applies the immediate effect of g and returns without waiting for
// the agent. A review submission or an action (with its confirmation)
// continues in the background; the returned channel is closed when it ends.
// Gestures accepted in order see each other's state changes in that order.
func (c *Composer) Accept(ctx context.Context, g Gesture) <-chan struct{} {
	done := make(chan struct{})
	rest := c.apply(ctx, g)
	if rest == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		rest()
	}()
	return done
}

// apply performs the synchronous part of a gesture and returns the part
// that waits on the user or the agent, if any.
func (c *Composer) apply(ctx context.Context, g Gesture) func() {
	switch g.Kind {
	case GestureMenuToggle:
		c.toggleMenu(ctx, g.Target)
	case GestureOutsideClick:
		c.mu.Lock()
		c.closeMenuLocked(ctx)
		c.mu.Unlock()
	case GestureReviewPick:
		c.openModal(ctx, action.ReviewEvent(g.Value))
	case GestureModalDismiss, GestureEscape:
		c.dismissModal(ctx)
	case GestureModalSubmit:
		return c.submitReview(ctx, g.Value)
	case GestureActionPick:
		return c.runAction(ctx, g.Value)
	default:
		c.logger.Debug("composer: unknown gesture", "kind", g.Kind)
	}
	return nil
}

func (c *Composer) toggleMenu(ctx context.Context, menu string) {
	if menu != MenuReview && menu != MenuActions {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openMenu == menu {
		c.closeMenuLocked(ctx)
		return
	}
	c.closeMenuLocked(ctx)
	c.openMenu = menu
	c.warn(c.surface.SetClass(ctx, menuSelector(menu), openMenuClass, true))
}

func (c *Composer) closeMenuLocked(ctx context.Context) {
	if c.openMenu == "" {
		return
	}
	c.warn(c.surface.SetClass(ctx, menuSelector(c.openMenu), openMenuClass, false))
	c.openMenu = ""
}

func (c *Composer) openModal(ctx context.Context, ev action.ReviewEvent) {
	r, ok := reviewFor(ev)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeMenuLocked(ctx)
	if c.modal == ModalSubmitting {
		return
	}
	html, err := renderModal(r)
	if err != nil {
		c.warn(err)
		return
	}
	c.warn(c.surface.Remove(ctx, ModalSelector))
	if err := c.surface.Insert(ctx, dom.Target{Selector: "body"}, dom.Append, html); err != nil {
		c.warn(err)
		return
	}
	c.modal = ModalOpen
	c.modalReview = r
}

func (c *Composer) dismissModal(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modal != ModalOpen {
		return
	}
	c.warn(c.surface.Remove(ctx, ModalSelector))
	c.modal = ModalClosed
}

// submitReview moves the modal to Submitting and returns the dispatch.
func (c *Composer) submitReview(ctx context.Context, text string) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.modal != ModalOpen {
		return nil
	}
	r := c.modalReview
	body := strings.TrimSpace(text)
	if r.Event == action.ReviewRequestChanges && body == "" {
		c.warn(c.surface.Toast(ctx, dom.ToastError, "Please provide feedback when requesting changes"))
		return nil
	}
	c.modal = ModalSubmitting
	c.warn(c.surface.SetDisabled(ctx, modalSubmit, true))
	c.warn(c.surface.SetText(ctx, modalSubmit, submittingText))

	req := c.request(action.VerbSubmitReview)
	req.ReviewEvent = r.Event
	req.ReviewBody = body
	return func() {
		res := c.ch.Dispatch(ctx, req)

		c.mu.Lock()
		defer c.mu.Unlock()
		if !res.OK {
			c.modal = ModalOpen
			c.warn(c.surface.Toast(ctx, dom.ToastError, res.ErrorMessage))
			c.warn(c.surface.SetDisabled(ctx, modalSubmit, false))
			c.warn(c.surface.SetText(ctx, modalSubmit, r.Submit))
			return
		}
		c.modal = ModalClosed
		c.warn(c.surface.Remove(ctx, ModalSelector))
		c.warn(c.surface.Toast(ctx, dom.ToastSuccess, "Review submitted: "+r.Title))
		c.scheduleReload()
	}
}

type actionDef struct {
	verb    action.Verb
	confirm string
	success string
}

func (c *Composer) actionFor(item string) (actionDef, bool) {
	switch item {
	case ItemMerge:
		return actionDef{action.VerbMergeResource, "Are you sure you want to squash and merge this PR?", "PR merged successfully"}, true
	case ItemAutoMerge:
		if c.autoMerge {
			return actionDef{verb: action.VerbDisableAutoMerge, success: "Auto-merge disabled"}, true
		}
		return actionDef{verb: action.VerbEnableAutoMerge, success: "Auto-merge enabled"}, true
	case ItemClose:
		return actionDef{action.VerbCloseResource, "Are you sure you want to close this PR?", "PR closed successfully"}, true
	}
	return actionDef{}, false
}

// runAction closes the menu and returns the confirm-and-dispatch step.
func (c *Composer) runAction(ctx context.Context, item string) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeMenuLocked(ctx)
	act, ok := c.actionFor(item)
	if !ok || c.actionsBusy {
		return nil
	}
	return func() { c.confirmAndDispatch(ctx, act) }
}

func (c *Composer) confirmAndDispatch(ctx context.Context, act actionDef) {
	if act.confirm != "" {
		yes, err := c.surface.Confirm(ctx, act.confirm)
		if err != nil || !yes {
			c.warn(err)
			return
		}
	}

	c.mu.Lock()
	if c.actionsBusy {
		c.mu.Unlock()
		return
	}
	c.actionsBusy = true
	c.warn(c.surface.SetDisabled(ctx, actionsButton, true))
	c.warn(c.surface.SetText(ctx, actionsButton, workingText))
	c.mu.Unlock()

	req := c.request(act.verb)
	if act.verb == action.VerbMergeResource {
		req.MergeMethod = action.MergeSquash
	}
	res := c.ch.Dispatch(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if res.OK {
		c.warn(c.surface.Toast(ctx, dom.ToastSuccess, act.success))
		c.scheduleReload()
	} else {
		c.warn(c.surface.Toast(ctx, dom.ToastError, res.ErrorMessage))
	}
	c.actionsBusy = false
	c.warn(c.surface.SetDisabled(ctx, actionsButton, false))
	c.warn(c.surface.SetText(ctx, actionsButton, actionsLabel))
}

func (c *Composer) request(verb action.Verb) action.Request {
	return action.Request{
		Verb:       verb,
		Owner:      c.pr.Owner,
		Repo:       c.pr.Repo,
		PullNumber: c.pr.Number,
	}
}

func (c *Composer) scheduleReload() {
	c.after(c.reloadDelay, func() {
		if err := c.surface.Reload(context.Background()); err != nil {
			c.logger.Warn("composer: reload", "pr", c.pr.String(), "error", err)
		}
	})
}

func (c *Composer) warn(err error) {
	if err != nil {
		c.logger.Warn("composer: surface", "pr", c.pr.String(), "error", fmt.Sprint(err))
	}
}
