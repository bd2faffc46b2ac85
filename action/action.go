// CLAUDE:SUMMARY Wire types of the page/agent channel: verbs, requests, results, view state.
// Package action defines the serializable request/response protocol spoken
// between the page side (toolbar) and the agent side (broker).
//
// Nothing in this package knows about credentials or the remote API: a
// Request carries only a verb and the pull request it targets, and a Result
// carries either data or a plain error message.
package action

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hazyhaar/prquick/locator"
)

// Verb names one broker operation.
type Verb string

const (
	VerbSubmitReview     Verb = "submitReview"
	VerbCloseResource    Verb = "closeResource"
	VerbMergeResource    Verb = "mergeResource"
	VerbEnableAutoMerge  Verb = "enableAutoMerge"
	VerbDisableAutoMerge Verb = "disableAutoMerge"
	VerbGetViewState     Verb = "getViewState"
	VerbCheckCredential  Verb = "checkCredential"
)

// ReviewEvent is the kind of review submitted.
type ReviewEvent string

const (
	ReviewApprove        ReviewEvent = "APPROVE"
	ReviewComment        ReviewEvent = "COMMENT"
	ReviewRequestChanges ReviewEvent = "REQUEST_CHANGES"
)

// Valid reports whether e is one of the three known events.
func (e ReviewEvent) Valid() bool {
	switch e {
	case ReviewApprove, ReviewComment, ReviewRequestChanges:
		return true
	}
	return false
}

// MergeMethod is the merge strategy. The empty value means "absent".
type MergeMethod string

const (
	MergeSquash MergeMethod = "SQUASH"
	MergeMerge  MergeMethod = "MERGE"
	MergeRebase MergeMethod = "REBASE"
)

// UnknownVerbMessage is returned, unchanged, for any verb the broker does not serve.
const UnknownVerbMessage = "Unknown action"

// Request is one user gesture turned into a broker call. Resource fields are
// inlined so the wire shape stays flat.
type Request struct {
	ID          string      `json:"id,omitempty"`
	Verb        Verb        `json:"verb"`
	Owner       string      `json:"owner,omitempty"`
	Repo        string      `json:"repo,omitempty"`
	PullNumber  string      `json:"pullNumber,omitempty"`
	ReviewEvent ReviewEvent `json:"reviewEvent,omitempty"`
	ReviewBody  string      `json:"reviewBody,omitempty"`
	MergeMethod MergeMethod `json:"mergeMethod,omitempty"`
}

// For builds a request for verb targeting id.
func For(verb Verb, id locator.Identity) Request {
	return Request{Verb: verb, Owner: id.Owner, Repo: id.Repo, PullNumber: id.Number}
}

// Identity returns the pull request the request targets.
func (r Request) Identity() locator.Identity {
	return locator.Identity{Owner: r.Owner, Repo: r.Repo, Number: r.PullNumber}
}

// Result is the single reply to a Request.
type Result struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// Success wraps v as a successful Result. A marshal failure becomes a failed Result.
func Success(v any) Result {
	if v == nil {
		return Result{OK: true}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Failure("encode result: " + err.Error())
	}
	return Result{OK: true, Data: data}
}

// Failure builds a failed Result carrying msg verbatim.
func Failure(msg string) Result {
	return Result{OK: false, ErrorMessage: msg}
}

// Decode unmarshals r.Data into v.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// ViewState is the derived summary of a pull request shown in the toolbar.
type ViewState struct {
	AutoMergeEnabled  bool        `json:"autoMergeEnabled"`
	AutoMergeMethod   MergeMethod `json:"autoMergeMethod,omitempty"`
	TotalComments     uint        `json:"totalComments"`
	ReviewThreadCount uint        `json:"reviewThreadCount"`
	ReviewCount       uint        `json:"reviewCount"`
}

// CredentialStatus is the only credential information that crosses the channel.
type CredentialStatus struct {
	HasCredential bool `json:"hasCredential"`
}

// HasCredential asks the agent whether a credential is stored. A failed
// check returns the channel's message as the error.
func HasCredential(ctx context.Context, ch Channel) (bool, error) {
	res := ch.Dispatch(ctx, Request{Verb: VerbCheckCredential})
	if !res.OK {
		return false, errors.New(res.ErrorMessage)
	}
	var cs CredentialStatus
	if err := res.Decode(&cs); err != nil {
		return false, err
	}
	return cs.HasCredential, nil
}

// Channel carries a Request to the agent side and returns its Result.
// Implementations never return a Go error: transport failures come back as
// a failed Result whose message is the channel's own diagnostic.
type Channel interface {
	Dispatch(ctx context.Context, req Request) Result
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, req Request) Result

// Dispatch calls f.
func (f ChannelFunc) Dispatch(ctx context.Context, req Request) Result { return f(ctx, req) }
