package dom

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Toast is a notification recorded by HTMLDocument.
type Toast struct {
	Kind    ToastKind
	Message string
}

// HTMLDocument is a Document over a parsed HTML snapshot. Side effects a
// browser would show (toasts, prompts, reloads) are recorded instead.
type HTMLDocument struct {
	mu       sync.Mutex
	doc      *goquery.Document
	path     string
	answer   bool
	toasts   []Toast
	confirms []string
	reloads  int
}

// ParseHTML parses r as the page served at path. Confirm prompts answer yes
// until SetConfirm says otherwise.
func ParseHTML(path string, r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &HTMLDocument{doc: doc, path: path, answer: true}, nil
}

// ParseSanitizedHTML strips scripts, handlers and other active content from r
// before parsing. Class, id and data attributes survive so anchors still
// resolve. Use it for snapshots saved from untrusted pages.
func ParseSanitizedHTML(path string, r io.Reader) (*HTMLDocument, error) {
	return ParseHTML(path, snapshotPolicy().SanitizeReader(r))
}

func snapshotPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("button", "header", "main", "nav", "section", "textarea")
	p.AllowAttrs("class", "id").Globally()
	p.AllowDataAttributes()
	return p
}

func resolve(doc *goquery.Document, t Target) *goquery.Selection {
	sel := doc.Find(t.Selector).First()
	if sel.Length() == 0 {
		return sel
	}
	if t.Within != "" {
		sel = sel.Find(t.Within).First()
		if sel.Length() == 0 {
			return sel
		}
	}
	if t.Closest != "" {
		sel = sel.Closest(t.Closest)
	}
	return sel
}

func (d *HTMLDocument) Path(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path, nil
}

// SetPath simulates a client-side navigation.
func (d *HTMLDocument) SetPath(path string) {
	d.mu.Lock()
	d.path = path
	d.mu.Unlock()
}

func (d *HTMLDocument) Exists(_ context.Context, at Target) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return resolve(d.doc, at).Length() > 0, nil
}

func (d *HTMLDocument) Insert(_ context.Context, at Target, where Placement, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := resolve(d.doc, at)
	if sel.Length() == 0 {
		return fmt.Errorf("dom: insert: no element for %s", at)
	}
	switch where {
	case Prepend:
		sel.PrependHtml(fragment)
	case Append:
		sel.AppendHtml(fragment)
	default:
		return fmt.Errorf("dom: insert: unknown placement %q", where)
	}
	return nil
}

func (d *HTMLDocument) Remove(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).Remove()
	return nil
}

func (d *HTMLDocument) SetClass(_ context.Context, selector, class string, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector)
	if on {
		sel.AddClass(class)
	} else {
		sel.RemoveClass(class)
	}
	return nil
}

func (d *HTMLDocument) SetText(_ context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc.Find(selector).SetText(text)
	return nil
}

func (d *HTMLDocument) SetDisabled(_ context.Context, selector string, disabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector)
	if disabled {
		sel.SetAttr("disabled", "disabled")
	} else {
		sel.RemoveAttr("disabled")
	}
	return nil
}

func (d *HTMLDocument) Confirm(_ context.Context, message string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirms = append(d.confirms, message)
	return d.answer, nil
}

// SetConfirm sets the answer to subsequent Confirm prompts.
func (d *HTMLDocument) SetConfirm(yes bool) {
	d.mu.Lock()
	d.answer = yes
	d.mu.Unlock()
}

func (d *HTMLDocument) Toast(_ context.Context, kind ToastKind, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toasts = append(d.toasts, Toast{Kind: kind, Message: message})
	return nil
}

func (d *HTMLDocument) Reload(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reloads++
	return nil
}

// Toasts returns the notifications shown so far.
func (d *HTMLDocument) Toasts() []Toast {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Toast(nil), d.toasts...)
}

// Confirms returns the prompts shown so far.
func (d *HTMLDocument) Confirms() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.confirms...)
}

// Reloads counts Reload calls.
func (d *HTMLDocument) Reloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reloads
}

// Count returns how many elements match selector.
func (d *HTMLDocument) Count(selector string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).Length()
}

// Text returns the whitespace-trimmed text of the first match of selector.
func (d *HTMLDocument) Text(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

// Attr returns an attribute of the first match of selector.
func (d *HTMLDocument) Attr(selector, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).First().Attr(name)
}

// HasClass reports whether the first match of selector carries class.
func (d *HTMLDocument) HasClass(selector, class string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find(selector).First().HasClass(class)
}

// ParentOf reports the id or first class of the parent of the first match of
// selector, and whether the match is its parent's first element child.
func (d *HTMLDocument) ParentOf(selector string) (parent string, first bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	p := sel.Parent()
	if id, ok := p.Attr("id"); ok && id != "" {
		parent = "#" + id
	} else if cls, ok := p.Attr("class"); ok && cls != "" {
		parent = "." + strings.Fields(cls)[0]
	} else {
		parent = goquery.NodeName(p)
	}
	return parent, p.Children().First().IsSelection(sel)
}

// HTML renders the current document.
func (d *HTMLDocument) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}
