package composer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/dom"
	"github.com/hazyhaar/prquick/locator"
)

var pr = locator.Identity{Owner: "acme", Repo: "widgets", Number: "42"}

type recordingChannel struct {
	mu       sync.Mutex
	requests []action.Request
	reply    func(action.Request) action.Result
}

func (r *recordingChannel) Dispatch(_ context.Context, req action.Request) action.Result {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	reply := r.reply
	r.mu.Unlock()
	if reply == nil {
		return action.Success(nil)
	}
	return reply(req)
}

func (r *recordingChannel) sent() []action.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]action.Request(nil), r.requests...)
}

type manualClock struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (m *manualClock) after(d time.Duration, f func()) {
	m.mu.Lock()
	m.pending = append(m.pending, f)
	m.delays = append(m.delays, d)
	m.mu.Unlock()
}

func (m *manualClock) fire() {
	m.mu.Lock()
	p := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range p {
		f()
	}
}

type fixture struct {
	doc   *dom.HTMLDocument
	ch    *recordingChannel
	clock *manualClock
	c     *Composer
}

func mount(t *testing.T, vs *action.ViewState) *fixture {
	t.Helper()
	doc, err := dom.ParseHTML(pr.Path(), strings.NewReader(`<html><body><div class="gh-header-actions"></div></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{doc: doc, ch: &recordingChannel{}, clock: &manualClock{}}
	f.c = New(pr, f.ch, doc, WithScheduler(f.clock.after))
	html, err := f.c.Render(vs, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Insert(context.Background(), dom.Target{Selector: ".gh-header-actions"}, dom.Prepend, html); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) gesture(kind GestureKind, target, value string) {
	f.c.Handle(context.Background(), Gesture{Kind: kind, Target: target, Value: value})
}

func TestRender_CommentLabel(t *testing.T) {
	tests := []struct {
		vs   *action.ViewState
		want string
	}{
		{nil, ""},
		{&action.ViewState{TotalComments: 0}, ""},
		{&action.ViewState{TotalComments: 1}, "1 comment in files"},
		{&action.ViewState{TotalComments: 3}, "3 comments in files"},
	}
	for _, tt := range tests {
		f := mount(t, tt.vs)
		got := f.doc.Text("#prquick-comment-count")
		if tt.want == "" {
			if f.doc.Count("#prquick-comment-count") != 0 {
				t.Errorf("%+v: unexpected label %q", tt.vs, got)
			}
			continue
		}
		if !strings.HasSuffix(got, tt.want) {
			t.Errorf("%+v: label %q, want suffix %q", tt.vs, got, tt.want)
		}
	}
}

func TestRender_AutoMergeLabelAndFloating(t *testing.T) {
	html, err := RenderToolbar(pr.String(), &action.ViewState{AutoMergeEnabled: true}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "Disable Auto-Merge") || strings.Contains(html, "Enable Auto-Merge") {
		t.Fatal("auto-merge label does not reflect state")
	}
	if !strings.Contains(html, floatingClass) {
		t.Fatal("floating class missing")
	}
	if !strings.Contains(html, `id="prquick-toolbar"`) {
		t.Fatal("marker id missing")
	}
}

func TestMenus_MutualExclusion(t *testing.T) {
	f := mount(t, nil)
	review, actions := menuSelector(MenuReview), menuSelector(MenuActions)

	f.gesture(GestureMenuToggle, MenuReview, "")
	if !f.doc.HasClass(review, openMenuClass) || f.c.OpenMenu() != MenuReview {
		t.Fatal("review menu did not open")
	}

	f.gesture(GestureMenuToggle, MenuActions, "")
	if f.doc.HasClass(review, openMenuClass) {
		t.Fatal("review menu still open after opening actions")
	}
	if !f.doc.HasClass(actions, openMenuClass) {
		t.Fatal("actions menu did not open")
	}

	f.gesture(GestureMenuToggle, MenuActions, "")
	if f.doc.HasClass(actions, openMenuClass) || f.c.OpenMenu() != "" {
		t.Fatal("second toggle did not close")
	}

	f.gesture(GestureMenuToggle, MenuReview, "")
	f.gesture(GestureOutsideClick, "", "")
	if f.doc.HasClass(review, openMenuClass) {
		t.Fatal("outside click did not close")
	}
}

func TestModal_Dismissal(t *testing.T) {
	for _, g := range []Gesture{
		{Kind: GestureModalDismiss, Target: "close"},
		{Kind: GestureModalDismiss, Target: "cancel"},
		{Kind: GestureModalDismiss, Target: "backdrop"},
		{Kind: GestureEscape},
	} {
		f := mount(t, nil)
		f.gesture(GestureReviewPick, "", "APPROVE")
		if f.c.Modal() != ModalOpen || f.doc.Count(ModalSelector) != 1 {
			t.Fatalf("modal not open")
		}
		f.c.Handle(context.Background(), g)
		if f.c.Modal() != ModalClosed || f.doc.Count(ModalSelector) != 0 {
			t.Fatalf("%+v did not close the modal", g)
		}
	}
}

func TestModal_RequestChangesNeedsText(t *testing.T) {
	f := mount(t, nil)
	f.gesture(GestureReviewPick, "", "REQUEST_CHANGES")
	f.gesture(GestureModalSubmit, "", "   \n\t")

	if n := len(f.ch.sent()); n != 0 {
		t.Fatalf("dispatched %d requests", n)
	}
	toasts := f.doc.Toasts()
	if len(toasts) != 1 || toasts[0] != (dom.Toast{Kind: dom.ToastError, Message: "Please provide feedback when requesting changes"}) {
		t.Fatalf("toasts: %+v", toasts)
	}
	if f.c.Modal() != ModalOpen {
		t.Fatal("modal should stay open")
	}
}

func TestModal_ApproveEmptyDispatches(t *testing.T) {
	f := mount(t, nil)
	f.gesture(GestureReviewPick, "", "APPROVE")
	f.gesture(GestureModalSubmit, "", "  ")

	sent := f.ch.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d", len(sent))
	}
	want := action.Request{Verb: action.VerbSubmitReview, Owner: "acme", Repo: "widgets", PullNumber: "42", ReviewEvent: action.ReviewApprove}
	if sent[0] != want {
		t.Fatalf("got %+v, want %+v", sent[0], want)
	}
	if f.c.Modal() != ModalClosed || f.doc.Count(ModalSelector) != 0 {
		t.Fatal("modal not closed after success")
	}
	if got := f.doc.Toasts(); len(got) != 1 || got[0].Message != "Review submitted: Approve" {
		t.Fatalf("toasts: %+v", got)
	}
	if f.doc.Reloads() != 0 {
		t.Fatal("reloaded before delay")
	}
	f.clock.fire()
	if f.doc.Reloads() != 1 {
		t.Fatal("no reload after delay")
	}
	if f.clock.delays[0] != DefaultReloadDelay {
		t.Fatalf("delay %v", f.clock.delays[0])
	}
}

func TestModal_FailureRestores(t *testing.T) {
	f := mount(t, nil)
	f.ch.reply = func(action.Request) action.Result { return action.Failure("Resource not accessible by integration") }
	f.gesture(GestureReviewPick, "", "COMMENT")
	f.gesture(GestureModalSubmit, "", "nit: rename")

	if f.ch.sent()[0].ReviewBody != "nit: rename" {
		t.Fatal("body not forwarded")
	}
	if f.c.Modal() != ModalOpen {
		t.Fatalf("modal %v, want open", f.c.Modal())
	}
	if _, disabled := f.doc.Attr(modalSubmit, "disabled"); disabled {
		t.Fatal("submit still disabled")
	}
	if got := f.doc.Text(modalSubmit); got != "Submit Comment" {
		t.Fatalf("submit label %q", got)
	}
	if got := f.doc.Toasts(); len(got) != 1 || got[0] != (dom.Toast{Kind: dom.ToastError, Message: "Resource not accessible by integration"}) {
		t.Fatalf("toasts: %+v", got)
	}
	f.clock.fire()
	if f.doc.Reloads() != 0 {
		t.Fatal("reload after failure")
	}
}

func TestModal_NotDismissableWhileSubmitting(t *testing.T) {
	f := mount(t, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.ch.reply = func(action.Request) action.Result {
		close(entered)
		<-release
		return action.Success(nil)
	}
	f.gesture(GestureReviewPick, "", "APPROVE")

	done := make(chan struct{})
	go func() {
		f.gesture(GestureModalSubmit, "", "")
		close(done)
	}()
	<-entered

	if f.c.Modal() != ModalSubmitting {
		t.Fatalf("modal %v, want submitting", f.c.Modal())
	}
	if got := f.doc.Text(modalSubmit); got != "Submitting..." {
		t.Fatalf("submit label %q", got)
	}
	f.gesture(GestureEscape, "", "")
	f.gesture(GestureModalDismiss, "backdrop", "")
	f.gesture(GestureModalSubmit, "", "")
	if f.c.Modal() != ModalSubmitting || f.doc.Count(ModalSelector) != 1 {
		t.Fatal("modal dismissed while submitting")
	}

	close(release)
	<-done
	if len(f.ch.sent()) != 1 {
		t.Fatalf("sent %d, want 1", len(f.ch.sent()))
	}
}

func TestActions_ConfirmDeclined(t *testing.T) {
	for _, item := range []string{ItemMerge, ItemClose} {
		f := mount(t, nil)
		f.doc.SetConfirm(false)
		f.gesture(GestureActionPick, "", item)
		if len(f.doc.Confirms()) != 1 {
			t.Fatalf("%s: no confirmation asked", item)
		}
		if len(f.ch.sent()) != 0 {
			t.Fatalf("%s: dispatched without confirmation", item)
		}
	}
}

func TestActions_Success(t *testing.T) {
	tests := []struct {
		item    string
		vs      *action.ViewState
		verb    action.Verb
		confirm bool
		toast   string
	}{
		{ItemMerge, nil, action.VerbMergeResource, true, "PR merged successfully"},
		{ItemClose, nil, action.VerbCloseResource, true, "PR closed successfully"},
		{ItemAutoMerge, nil, action.VerbEnableAutoMerge, false, "Auto-merge enabled"},
		{ItemAutoMerge, &action.ViewState{AutoMergeEnabled: true}, action.VerbDisableAutoMerge, false, "Auto-merge disabled"},
	}
	for _, tt := range tests {
		f := mount(t, tt.vs)
		f.gesture(GestureActionPick, "", tt.item)

		sent := f.ch.sent()
		if len(sent) != 1 || sent[0].Verb != tt.verb {
			t.Fatalf("%s: sent %+v", tt.item, sent)
		}
		if tt.verb == action.VerbMergeResource && sent[0].MergeMethod != action.MergeSquash {
			t.Fatalf("merge method %q", sent[0].MergeMethod)
		}
		if got := len(f.doc.Confirms()) == 1; got != tt.confirm {
			t.Fatalf("%s: confirm asked=%v", tt.item, got)
		}
		if got := f.doc.Toasts(); len(got) != 1 || got[0] != (dom.Toast{Kind: dom.ToastSuccess, Message: tt.toast}) {
			t.Fatalf("%s: toasts %+v", tt.item, got)
		}
		if got := f.doc.Text(actionsButton); got != actionsLabel {
			t.Fatalf("%s: trigger label %q", tt.item, got)
		}
		f.clock.fire()
		if f.doc.Reloads() != 1 {
			t.Fatalf("%s: reloads %d", tt.item, f.doc.Reloads())
		}
	}
}

func TestActions_FailureVerbatim(t *testing.T) {
	f := mount(t, nil)
	f.ch.reply = func(action.Request) action.Result { return action.Failure("Pull Request is not mergeable") }
	f.gesture(GestureActionPick, "", ItemMerge)

	if got := f.doc.Toasts(); len(got) != 1 || got[0] != (dom.Toast{Kind: dom.ToastError, Message: "Pull Request is not mergeable"}) {
		t.Fatalf("toasts %+v", got)
	}
	if _, disabled := f.doc.Attr(actionsButton, "disabled"); disabled {
		t.Fatal("trigger still disabled")
	}
	if got := f.doc.Text(actionsButton); got != actionsLabel {
		t.Fatalf("trigger label %q", got)
	}
	f.clock.fire()
	if f.doc.Reloads() != 0 {
		t.Fatal("reloaded after failure")
	}
}

func TestAccept_AppliesInOrderWithoutWaiting(t *testing.T) {
	f := mount(t, nil)
	release := make(chan struct{})
	f.ch.reply = func(action.Request) action.Result {
		<-release
		return action.Failure("Validation Failed")
	}
	ctx := context.Background()

	<-f.c.Accept(ctx, Gesture{Kind: GestureReviewPick, Value: "COMMENT"})
	submitted := f.c.Accept(ctx, Gesture{Kind: GestureModalSubmit, Value: "nit"})
	if f.c.Modal() != ModalSubmitting {
		t.Fatalf("modal %s after submit was accepted", f.c.Modal())
	}
	// Escape reported while submitting is applied now, not after the reply.
	<-f.c.Accept(ctx, Gesture{Kind: GestureEscape})
	<-f.c.Accept(ctx, Gesture{Kind: GestureMenuToggle, Target: MenuReview})
	if !f.doc.HasClass(menuSelector(MenuReview), openMenuClass) {
		t.Fatal("menu toggle waited behind the dispatch")
	}

	close(release)
	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never completed")
	}
	if f.c.Modal() != ModalOpen || f.doc.Count(ModalSelector) != 1 {
		t.Fatalf("modal %s, want open with the error shown", f.c.Modal())
	}
}
