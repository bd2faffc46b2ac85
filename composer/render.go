package composer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/hazyhaar/prquick/action"
)

// MarkerID is the element id of a mounted toolbar. At most one element with
// this id exists in a document.
const MarkerID = "prquick-toolbar"

// ModalID is the element id of the review modal overlay.
const ModalID = "prquick-modal"

// Selectors used by the composer to drive the rendered fragments.
const (
	MarkerSelector = "#" + MarkerID
	ModalSelector  = "#" + ModalID

	actionsButton  = MarkerSelector + " .prquick-btn--actions"
	modalSubmit    = ModalSelector + " .prquick-modal-submit"
	openMenuClass  = "prquick-dropdown-menu--open"
	floatingClass  = "prquick-toolbar--floating"
	actionsLabel   = "Actions ▼"
	submittingText = "Submitting..."
	workingText    = "Working..."
)

func menuSelector(menu string) string {
	return fmt.Sprintf(`%s [data-prquick-menu="%s"] .prquick-dropdown-menu`, MarkerSelector, menu)
}

// review describes one review choice.
type review struct {
	Event  action.ReviewEvent
	Label  string
	Class  string
	Title  string
	Submit string
}

var reviews = []review{
	{action.ReviewApprove, "Approve", "approve", "Approve", "Submit Approval"},
	{action.ReviewComment, "Comment", "comment", "Comment", "Submit Comment"},
	{action.ReviewRequestChanges, "Request Changes", "request-changes", "Request Changes", "Submit Request"},
}

func reviewFor(ev action.ReviewEvent) (review, bool) {
	for _, r := range reviews {
		if r.Event == ev {
			return r, true
		}
	}
	return review{}, false
}

// Action menu item values carried by action-pick gestures.
const (
	ItemMerge     = "merge"
	ItemAutoMerge = "auto-merge"
	ItemClose     = "close"
)

type menuItem struct {
	Value string
	Label string
	Class string
}

var toolbarTmpl = template.Must(template.New("toolbar").Parse(`<div id="{{.ID}}" class="prquick-wrapper{{if .Floating}} {{.FloatingClass}}{{end}}" data-prquick-pr="{{.PR}}">` +
	`<div class="prquick-toolbar">` +
	`<div class="prquick-dropdown" data-prquick-menu="review">` +
	`<button class="prquick-btn prquick-btn--review" data-prquick-gesture="menu-toggle" data-prquick-target="review">Review ▼</button>` +
	`<div class="prquick-dropdown-menu">` +
	`{{range .Reviews}}<button class="prquick-dropdown-item prquick-dropdown-item--{{.Class}}" data-prquick-gesture="review-pick" data-prquick-value="{{.Event}}">{{.Label}}</button>{{end}}` +
	`</div></div>` +
	`<div class="prquick-dropdown" data-prquick-menu="actions">` +
	`<button class="prquick-btn prquick-btn--actions" data-prquick-gesture="menu-toggle" data-prquick-target="actions">{{.ActionsLabel}}</button>` +
	`<div class="prquick-dropdown-menu">` +
	`{{range .Actions}}<button class="prquick-dropdown-item prquick-dropdown-item--{{.Class}}" data-prquick-gesture="action-pick" data-prquick-value="{{.Value}}">{{.Label}}</button>{{end}}` +
	`</div></div>` +
	`</div>` +
	`{{if gt .Comments 0}}<span class="prquick-comment-count" id="prquick-comment-count"><span class="prquick-comment-icon">💬</span> {{.Comments}} comment{{if ne .Comments 1}}s{{end}} in files</span>{{end}}` +
	`</div>`))

var modalTmpl = template.Must(template.New("modal").Parse(`<div id="{{.ID}}" class="prquick-modal-overlay" data-prquick-gesture="modal-dismiss" data-prquick-target="backdrop">` +
	`<div class="prquick-modal">` +
	`<div class="prquick-modal-header"><h3>{{.Title}}</h3>` +
	`<button class="prquick-modal-close" data-prquick-gesture="modal-dismiss" data-prquick-target="close">&times;</button></div>` +
	`<div class="prquick-modal-body"><textarea class="prquick-modal-textarea" rows="6" placeholder="Leave a comment (optional for Approve, required for Request Changes)..."></textarea></div>` +
	`<div class="prquick-modal-footer">` +
	`<button class="prquick-btn prquick-modal-cancel" data-prquick-gesture="modal-dismiss" data-prquick-target="cancel">Cancel</button>` +
	`<button class="prquick-btn prquick-btn--{{.Class}} prquick-modal-submit" data-prquick-gesture="modal-submit">{{.Submit}}</button>` +
	`</div></div></div>`))

// RenderToolbar renders the toolbar fragment. vs may be nil when the view
// state could not be fetched; the toolbar then shows no counts and offers
// Enable Auto-Merge.
func RenderToolbar(pr string, vs *action.ViewState, floating bool) (string, error) {
	autoMerge := menuItem{ItemAutoMerge, "Enable Auto-Merge", "auto-merge"}
	var comments uint
	if vs != nil {
		if vs.AutoMergeEnabled {
			autoMerge.Label = "Disable Auto-Merge"
		}
		comments = vs.TotalComments
	}
	data := struct {
		ID            string
		PR            string
		Floating      bool
		FloatingClass string
		ActionsLabel  string
		Reviews       []review
		Actions       []menuItem
		Comments      uint
	}{
		ID:            MarkerID,
		PR:            pr,
		Floating:      floating,
		FloatingClass: floatingClass,
		ActionsLabel:  actionsLabel,
		Reviews:       reviews,
		Actions: []menuItem{
			{ItemMerge, "Squash & Merge", "merge"},
			autoMerge,
			{ItemClose, "Close PR", "close"},
		},
		Comments: comments,
	}
	var buf bytes.Buffer
	if err := toolbarTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("composer: render toolbar: %w", err)
	}
	return buf.String(), nil
}

func renderModal(r review) (string, error) {
	data := struct {
		ID, Title, Class, Submit string
	}{ModalID, r.Title, r.Class, r.Submit}
	var buf bytes.Buffer
	if err := modalTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("composer: render modal: %w", err)
	}
	return buf.String(), nil
}
