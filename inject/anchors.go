package inject

import (
	"context"

	"github.com/hazyhaar/prquick/dom"
)

// anchor is one insertion strategy.
type anchor struct {
	name  string
	at    dom.Target
	where dom.Placement
}

// anchors are tried in order; the first whose target resolves wins.
var anchors = []anchor{
	{"header-actions", dom.Target{Selector: ".gh-header-actions"}, dom.Prepend},
	{"header-show-actions", dom.Target{
		Selector: ".gh-header-show",
		Within:   `.flex-md-row-reverse, .gh-header-actions, [class*="header-actions"]`,
	}, dom.Prepend},
	{"header-show", dom.Target{Selector: ".gh-header-show"}, dom.Append},
	{"title-header", dom.Target{
		Selector: ".js-issue-title, [data-hpc] .markdown-title",
		Closest:  `.gh-header, .js-header-wrapper, [class*="header"]`,
	}, dom.Append},
	{"sticky-header", dom.Target{Selector: ".js-sticky-header-wrapper, .sticky-header"}, dom.Append},
}

// floating is the fallback when no anchor resolves.
var floating = anchor{"floating", dom.Target{Selector: "body"}, dom.Append}

// findAnchor returns the first strategy that resolves in doc, or floating.
func findAnchor(ctx context.Context, doc dom.Document) (anchor, error) {
	for _, a := range anchors {
		ok, err := doc.Exists(ctx, a.at)
		if err != nil {
			return anchor{}, err
		}
		if ok {
			return a, nil
		}
	}
	return floating, nil
}
