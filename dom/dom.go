// Package dom is the boundary between the toolbar logic and a rendered page.
// The engine and the composer only see these interfaces; browser.Tab drives a
// live page through CDP and HTMLDocument works on a parsed snapshot.
package dom

import "context"

// Placement says where a fragment goes relative to its anchor's children.
type Placement string

const (
	Prepend Placement = "prepend"
	Append  Placement = "append"
)

// Target locates one element. Selector picks the first match in the
// document; Within then narrows to its first matching descendant; Closest
// then widens to the nearest ancestor (or self) matching it. Empty steps are
// skipped.
type Target struct {
	Selector string `json:"selector"`
	Within   string `json:"within,omitempty"`
	Closest  string `json:"closest,omitempty"`
}

// String renders the target for logs.
func (t Target) String() string {
	s := t.Selector
	if t.Within != "" {
		s += " >> " + t.Within
	}
	if t.Closest != "" {
		s += " ^^ " + t.Closest
	}
	return s
}

// ToastKind is the style of a transient notification.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Surface is what the composer needs from a page.
type Surface interface {
	Insert(ctx context.Context, at Target, where Placement, fragment string) error
	Remove(ctx context.Context, selector string) error
	SetClass(ctx context.Context, selector, class string, on bool) error
	SetText(ctx context.Context, selector, text string) error
	SetDisabled(ctx context.Context, selector string, disabled bool) error
	// Confirm blocks until the user answers a yes/no prompt.
	Confirm(ctx context.Context, message string) (bool, error)
	Toast(ctx context.Context, kind ToastKind, message string) error
	Reload(ctx context.Context) error
}

// Document is what the injection engine needs from a page.
type Document interface {
	Surface
	// Path is the path component of the current location.
	Path(ctx context.Context) (string, error)
	Exists(ctx context.Context, at Target) (bool, error)
}
