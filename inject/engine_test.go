package inject

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/composer"
	"github.com/hazyhaar/prquick/dom"
)

const pullPage = `<html><body>
<div class="gh-header-show">
  <div class="gh-header-actions"><button class="edit">Edit</button></div>
  <h1><span class="js-issue-title">Fix the widget</span></h1>
</div>
<div id="discussion"></div>
</body></html>`

// fakeAgent answers channel requests the way a broker would.
type fakeAgent struct {
	mu        sync.Mutex
	calls     map[action.Verb]int
	last      action.Request
	hasCred   bool
	viewState action.Result
	// gate, when set, is consulted before answering checkCredential.
	gate func()
}

func newAgent() *fakeAgent {
	return &fakeAgent{
		calls:     map[action.Verb]int{},
		hasCred:   true,
		viewState: action.Success(action.ViewState{TotalComments: 3, ReviewThreadCount: 2}),
	}
}

func (a *fakeAgent) Dispatch(_ context.Context, req action.Request) action.Result {
	a.mu.Lock()
	a.calls[req.Verb]++
	a.last = req
	gate := a.gate
	a.mu.Unlock()
	switch req.Verb {
	case action.VerbCheckCredential:
		if gate != nil {
			gate()
		}
		return action.Success(action.CredentialStatus{HasCredential: a.hasCred})
	case action.VerbGetViewState:
		return a.viewState
	}
	return action.Success(nil)
}

func (a *fakeAgent) lastRequest() action.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *fakeAgent) count(v action.Verb) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[v]
}

type harness struct {
	doc      *dom.HTMLDocument
	agent    *fakeAgent
	eng      *Engine
	outcomes chan Outcome
}

func start(t *testing.T, path, html string, agent *fakeAgent) *harness {
	t.Helper()
	doc, err := dom.ParseHTML(path, strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{doc: doc, agent: agent, outcomes: make(chan Outcome, 1024)}
	h.eng = New(doc, agent, Config{
		Debounce:        20 * time.Millisecond,
		NavigationDelay: 5 * time.Millisecond,
		OnEvaluate: func(o Outcome) {
			select {
			case h.outcomes <- o:
			default:
			}
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.eng.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) waitFor(t *testing.T, s State, reason string) Outcome {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case o := <-h.outcomes:
			if o.State == s && (reason == "" || o.Reason == reason) {
				return o
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s (%q); engine at %+v", s, reason, h.eng.Last())
		}
	}
}

// settle gives the loop time to process anything still queued.
func settle() { time.Sleep(100 * time.Millisecond) }

func TestMount_HeaderActions(t *testing.T) {
	h := start(t, "/acme/widgets/pull/42", pullPage, newAgent())
	h.eng.Start()

	o := h.waitFor(t, Mounted, ReasonInserted)
	if o.Anchor != "header-actions" || o.Identity.String() != "acme/widgets#42" {
		t.Fatalf("outcome %+v", o)
	}
	if n := h.doc.Count(composer.MarkerSelector); n != 1 {
		t.Fatalf("markers: %d", n)
	}
	parent, first := h.doc.ParentOf(composer.MarkerSelector)
	if parent != ".gh-header-actions" || !first {
		t.Fatalf("toolbar under %q first=%v", parent, first)
	}
	if got := h.doc.Text("#prquick-comment-count"); !strings.HasSuffix(got, "3 comments in files") {
		t.Fatalf("label %q", got)
	}
	if pr, _ := h.doc.Attr(composer.MarkerSelector, "data-prquick-pr"); pr != "acme/widgets#42" {
		t.Fatalf("data-prquick-pr %q", pr)
	}
}

func TestNoCredential_NoMount(t *testing.T) {
	agent := newAgent()
	agent.hasCred = false
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)
	h.eng.Start()

	h.waitFor(t, Idle, ReasonNoCredential)
	if h.doc.Count(composer.MarkerSelector) != 0 {
		t.Fatal("toolbar mounted without credential")
	}
	if agent.count(action.VerbGetViewState) != 0 {
		t.Fatal("view state fetched without credential")
	}
}

func TestNotPullView(t *testing.T) {
	agent := newAgent()
	h := start(t, "/acme/widgets/issues/42", pullPage, agent)
	h.eng.Start()

	h.waitFor(t, Idle, ReasonNotPullView)
	if agent.count(action.VerbCheckCredential) != 0 {
		t.Fatal("channel used outside a pull request view")
	}
}

func TestDebounce_CoalescesMutations(t *testing.T) {
	agent := newAgent()
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)

	for i := 0; i < 50; i++ {
		h.eng.Mutation()
	}
	h.waitFor(t, Mounted, ReasonInserted)
	settle()

	if n := agent.count(action.VerbCheckCredential); n != 1 {
		t.Fatalf("attempts: %d, want 1", n)
	}
}

func TestDuplicateSuppression(t *testing.T) {
	agent := newAgent()
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)
	h.eng.Start()
	h.waitFor(t, Mounted, ReasonInserted)

	for i := 0; i < 5; i++ {
		h.eng.Mutation()
		h.eng.Navigate()
		h.eng.Start()
		time.Sleep(5 * time.Millisecond)
	}
	settle()

	if n := h.doc.Count(composer.MarkerSelector); n != 1 {
		t.Fatalf("markers: %d", n)
	}
	if n := agent.count(action.VerbCheckCredential); n != 1 {
		t.Fatalf("attempts: %d", n)
	}
	if h.eng.State() != Mounted {
		t.Fatalf("state %s", h.eng.State())
	}
}

func TestReentrancy_CollapsesWhileInjecting(t *testing.T) {
	agent := newAgent()
	release := make(chan struct{})
	agent.gate = func() { <-release }
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)

	h.eng.Start()
	h.waitFor(t, Injecting, "")
	h.eng.Start()
	h.waitFor(t, Injecting, ReasonCollapsed)

	close(release)
	h.waitFor(t, Mounted, ReasonInserted)
	settle()
	if n := agent.count(action.VerbCheckCredential); n != 1 {
		t.Fatalf("attempts: %d", n)
	}
	if n := h.doc.Count(composer.MarkerSelector); n != 1 {
		t.Fatalf("markers: %d", n)
	}
}

func TestStaleAttemptRetriggers(t *testing.T) {
	agent := newAgent()
	release := make(chan struct{})
	var once sync.Once
	agent.gate = func() { once.Do(func() { <-release }) }
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)

	h.eng.Start()
	h.waitFor(t, Injecting, "")
	h.doc.SetPath("/acme/widgets/pull/43/files")
	close(release)

	h.waitFor(t, Armed, ReasonStale)
	o := h.waitFor(t, Mounted, ReasonInserted)
	if o.Identity.Number != "43" {
		t.Fatalf("mounted for %s", o.Identity)
	}
	if pr, _ := h.doc.Attr(composer.MarkerSelector, "data-prquick-pr"); pr != "acme/widgets#43" {
		t.Fatalf("toolbar for %q", pr)
	}
	if n := h.doc.Count(composer.MarkerSelector); n != 1 {
		t.Fatalf("markers: %d", n)
	}
}

func TestRemountAfterHostRemoval(t *testing.T) {
	agent := newAgent()
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)
	h.eng.Start()
	h.waitFor(t, Mounted, ReasonInserted)

	h.doc.Remove(context.Background(), composer.MarkerSelector)
	h.eng.Mutation()

	h.waitFor(t, Armed, ReasonMarkerGone)
	h.waitFor(t, Mounted, ReasonInserted)
	if n := h.doc.Count(composer.MarkerSelector); n != 1 {
		t.Fatalf("markers: %d", n)
	}
	if n := agent.count(action.VerbCheckCredential); n != 2 {
		t.Fatalf("attempts: %d", n)
	}
}

func TestViewStateFailureDegrades(t *testing.T) {
	agent := newAgent()
	agent.viewState = action.Failure("Bad credentials")
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)
	h.eng.Start()

	h.waitFor(t, Mounted, ReasonInserted)
	if h.doc.Count("#prquick-comment-count") != 0 {
		t.Fatal("counts shown without view state")
	}
	if got := h.doc.Text(`[data-prquick-value="auto-merge"]`); got != "Enable Auto-Merge" {
		t.Fatalf("auto-merge label %q", got)
	}
	if n := agent.count(action.VerbGetViewState); n != 1 {
		t.Fatalf("view state fetched %d times", n)
	}
}

func TestAnchorStrategies(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		anchor string
		parent string
	}{
		{"header actions", pullPage, "header-actions", ".gh-header-actions"},
		{"header show narrowed",
			`<div class="gh-header-show"><div class="flex-md-row-reverse"><a>x</a></div></div>`,
			"header-show-actions", ".flex-md-row-reverse"},
		{"header show itself",
			`<div class="gh-header-show"><h1>t</h1></div>`,
			"header-show", ".gh-header-show"},
		{"title container",
			`<div class="js-header-wrapper"><h1><span class="js-issue-title">t</span></h1></div>`,
			"title-header", ".js-header-wrapper"},
		{"sticky header",
			`<div class="sticky-header"><span>t</span></div>`,
			"sticky-header", ".sticky-header"},
		{"floating", `<div id="discussion"></div>`, "floating", "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := start(t, "/acme/widgets/pull/42", "<html><body>"+tt.html+"</body></html>", newAgent())
			h.eng.Start()
			o := h.waitFor(t, Mounted, ReasonInserted)
			if o.Anchor != tt.anchor {
				t.Fatalf("anchor %q, want %q", o.Anchor, tt.anchor)
			}
			if parent, _ := h.doc.ParentOf(composer.MarkerSelector); parent != tt.parent {
				t.Fatalf("parent %q, want %q", parent, tt.parent)
			}
			floatingClass := h.doc.HasClass(composer.MarkerSelector, "prquick-toolbar--floating")
			if floatingClass != (tt.anchor == "floating") {
				t.Fatalf("floating class = %v", floatingClass)
			}
		})
	}
}

func TestGestureRouting(t *testing.T) {
	agent := newAgent()
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)
	ctx := context.Background()
	toggle := composer.Gesture{Kind: composer.GestureMenuToggle, Target: composer.MenuActions}

	<-h.eng.Gesture(ctx, toggle)

	h.eng.Start()
	h.waitFor(t, Mounted, ReasonInserted)
	<-h.eng.Gesture(ctx, toggle)
	if !h.doc.HasClass(`#prquick-toolbar [data-prquick-menu="actions"] .prquick-dropdown-menu`, "prquick-dropdown-menu--open") {
		t.Fatal("gesture not routed to mounted toolbar")
	}

	<-h.eng.Gesture(ctx, composer.Gesture{Kind: composer.GestureActionPick, Value: composer.ItemAutoMerge})
	if agent.count(action.VerbEnableAutoMerge) != 1 {
		t.Fatal("auto-merge not dispatched")
	}
}

func TestNavigationSignal(t *testing.T) {
	agent := newAgent()
	h := start(t, "/acme/widgets/pulls", pullPage, agent)
	h.eng.Start()
	h.waitFor(t, Idle, ReasonNotPullView)

	h.doc.SetPath("/acme/widgets/pull/42")
	h.eng.Navigate()
	h.waitFor(t, Mounted, ReasonInserted)
}

func TestReturnToView_RebindsRestoredToolbar(t *testing.T) {
	agent := newAgent()
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)
	h.eng.Start()
	h.waitFor(t, Mounted, ReasonInserted)

	// The host restores its cached page, markup included, on the way back.
	h.doc.SetPath("/acme/widgets/issues")
	h.eng.Navigate()
	h.waitFor(t, Idle, ReasonNotPullView)
	h.doc.SetPath("/acme/widgets/pull/42")
	h.eng.Navigate()

	h.waitFor(t, Armed, ReasonMarkerUnowned)
	h.waitFor(t, Mounted, ReasonInserted)
	if n := h.doc.Count(composer.MarkerSelector); n != 1 {
		t.Fatalf("markers: %d", n)
	}
	<-h.eng.Gesture(context.Background(), composer.Gesture{Kind: composer.GestureMenuToggle, Target: composer.MenuActions})
	if !h.doc.HasClass(`#prquick-toolbar [data-prquick-menu="actions"] .prquick-dropdown-menu`, "prquick-dropdown-menu--open") {
		t.Fatal("restored toolbar does not answer gestures")
	}
}

func TestLeftoverToolbar_Replaced(t *testing.T) {
	page := strings.Replace(pullPage, `<div id="discussion"></div>`,
		`<div id="discussion"></div><div id="prquick-toolbar" data-prquick-pr="acme/widgets#7"></div>`, 1)
	h := start(t, "/acme/widgets/pull/42", page, newAgent())
	h.eng.Start()

	h.waitFor(t, Armed, ReasonMarkerUnowned)
	h.waitFor(t, Mounted, ReasonInserted)
	if n := h.doc.Count(composer.MarkerSelector); n != 1 {
		t.Fatalf("markers: %d", n)
	}
	if pr, _ := h.doc.Attr(composer.MarkerSelector, "data-prquick-pr"); pr != "acme/widgets#42" {
		t.Fatalf("toolbar for %q", pr)
	}
}

func TestToolbarFollowsPullRequest(t *testing.T) {
	agent := newAgent()
	h := start(t, "/acme/widgets/pull/42", pullPage, agent)
	h.eng.Start()
	h.waitFor(t, Mounted, ReasonInserted)

	// Client-side move to another pull request that keeps the header.
	h.doc.SetPath("/acme/widgets/pull/43")
	h.eng.Navigate()
	o := h.waitFor(t, Mounted, ReasonInserted)
	if o.Identity.Number != "43" {
		t.Fatalf("mounted for %s", o.Identity)
	}
	if pr, _ := h.doc.Attr(composer.MarkerSelector, "data-prquick-pr"); pr != "acme/widgets#43" {
		t.Fatalf("toolbar for %q", pr)
	}

	<-h.eng.Gesture(context.Background(), composer.Gesture{Kind: composer.GestureActionPick, Value: composer.ItemAutoMerge})
	if req := agent.lastRequest(); req.Verb != action.VerbEnableAutoMerge || req.PullNumber != "43" {
		t.Fatalf("dispatched %+v", req)
	}
}
