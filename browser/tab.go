package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/prquick/dom"
)

// Tab is a live page. It implements dom.Document by evaluating small
// functions in the page's main world.
type Tab struct {
	Page *rod.Page
}

// OpenTab creates a new tab and navigates it to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return &Tab{Page: page}, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

// resolveJS finds the element a dom.Target names.
const resolveJS = `(sel, within, closest) => {
	let el = document.querySelector(sel);
	if (el && within) el = el.querySelector(within);
	if (el && closest) el = el.closest(closest);
	return el;
}`

func (t *Tab) eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return res, nil
}

func (t *Tab) Path(ctx context.Context) (string, error) {
	res, err := t.eval(ctx, `() => location.pathname`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (t *Tab) Exists(ctx context.Context, at dom.Target) (bool, error) {
	res, err := t.eval(ctx, `(sel, within, closest) => !!(`+resolveJS+`)(sel, within, closest)`,
		at.Selector, at.Within, at.Closest)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (t *Tab) Insert(ctx context.Context, at dom.Target, where dom.Placement, fragment string) error {
	res, err := t.eval(ctx, `(sel, within, closest, where, html) => {
		const el = (`+resolveJS+`)(sel, within, closest);
		if (!el) return false;
		const tpl = document.createElement('template');
		tpl.innerHTML = html;
		if (where === 'prepend') el.insertBefore(tpl.content, el.firstChild);
		else el.appendChild(tpl.content);
		return true;
	}`, at.Selector, at.Within, at.Closest, string(where), fragment)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: insert: no element for %s", at)
	}
	return nil
}

func (t *Tab) Remove(ctx context.Context, selector string) error {
	_, err := t.eval(ctx, `(sel) => document.querySelectorAll(sel).forEach(el => el.remove())`, selector)
	return err
}

func (t *Tab) SetClass(ctx context.Context, selector, class string, on bool) error {
	_, err := t.eval(ctx, `(sel, cls, on) => document.querySelectorAll(sel).forEach(el => el.classList.toggle(cls, on))`,
		selector, class, on)
	return err
}

func (t *Tab) SetText(ctx context.Context, selector, text string) error {
	_, err := t.eval(ctx, `(sel, text) => document.querySelectorAll(sel).forEach(el => { el.textContent = text; })`,
		selector, text)
	return err
}

func (t *Tab) SetDisabled(ctx context.Context, selector string, disabled bool) error {
	_, err := t.eval(ctx, `(sel, off) => document.querySelectorAll(sel).forEach(el => { el.disabled = off; })`,
		selector, disabled)
	return err
}

// Confirm shows the native confirm dialog and waits for the answer.
func (t *Tab) Confirm(ctx context.Context, message string) (bool, error) {
	res, err := t.eval(ctx, `(msg) => window.confirm(msg)`, message)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// Toast shows a notification that dismisses itself after three seconds.
// A newer toast replaces an older one.
func (t *Tab) Toast(ctx context.Context, kind dom.ToastKind, message string) error {
	_, err := t.eval(ctx, `(kind, msg) => {
		document.querySelectorAll('.prquick-toast').forEach(el => el.remove());
		const el = document.createElement('div');
		el.className = 'prquick-toast prquick-toast--' + kind;
		el.textContent = msg;
		document.body.appendChild(el);
		setTimeout(() => el.classList.add('prquick-toast--visible'), 10);
		setTimeout(() => {
			el.classList.remove('prquick-toast--visible');
			setTimeout(() => el.remove(), 300);
		}, 3000);
	}`, string(kind), message)
	return err
}

func (t *Tab) Reload(ctx context.Context) error {
	if err := t.Page.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("browser: reload: %w", err)
	}
	return nil
}

// HTML serialises the current document.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.eval(ctx, `() => document.documentElement.outerHTML`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}
