// CLAUDE:SUMMARY Agent-side verb dispatcher: the only holder of the credential store and the remote client.
// Package broker serves the fixed verb set of the page/agent channel. It is
// the only package that touches the credential store and the remote client;
// everything it returns is an action.Result, and every failure is flattened
// to its message before it crosses the channel.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/connectivity"
	"github.com/hazyhaar/prquick/guard"
	"github.com/hazyhaar/prquick/kit"
)

// API is the remote surface the broker orchestrates. *remote.Client implements it.
type API interface {
	Call(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error)
	Query(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error)
}

// Credentials reports whether a credential is stored. *credstore.Store implements it.
type Credentials interface {
	Present(ctx context.Context) (bool, error)
}

// Broker dispatches action requests.
type Broker struct {
	creds  Credentials
	api    API
	logger *slog.Logger
}

// New creates a Broker.
func New(creds Credentials, api API, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{creds: creds, api: api, logger: logger}
}

// Handle runs one request. Failures are reported in Result.ErrorMessage.
// An unknown verb fails immediately without any remote work.
func (b *Broker) Handle(ctx context.Context, req action.Request) action.Result {
	if req.ID != "" {
		ctx = kit.WithRequestID(ctx, req.ID)
	}

	op, ok := b.verbs()[req.Verb]
	if !ok {
		b.logger.WarnContext(ctx, "broker: unknown verb", "verb", req.Verb)
		return action.Failure(action.UnknownVerbMessage)
	}

	start := time.Now()
	data, err := op(ctx, req)
	if err != nil {
		b.logger.InfoContext(ctx, "broker: verb failed", append(kit.LogAttrs(ctx),
			"verb", req.Verb, "duration_ms", time.Since(start).Milliseconds(), "error", err)...)
		return action.Failure(err.Error())
	}
	b.logger.DebugContext(ctx, "broker: verb ok", append(kit.LogAttrs(ctx),
		"verb", req.Verb, "duration_ms", time.Since(start).Milliseconds())...)
	return action.Result{OK: true, Data: data}
}

type verbFunc func(ctx context.Context, req action.Request) (json.RawMessage, error)

func (b *Broker) verbs() map[action.Verb]verbFunc {
	return map[action.Verb]verbFunc{
		action.VerbSubmitReview:     b.submitReview,
		action.VerbCloseResource:    b.closeResource,
		action.VerbMergeResource:    b.mergeResource,
		action.VerbEnableAutoMerge:  b.enableAutoMerge,
		action.VerbDisableAutoMerge: b.disableAutoMerge,
		action.VerbGetViewState:     b.viewState,
		action.VerbCheckCredential:  b.checkCredential,
	}
}

// Handler exposes Handle as a connectivity.Handler speaking the JSON wire format.
func (b *Broker) Handler() connectivity.Handler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req action.Request
		if err := json.Unmarshal(payload, &req); err != nil {
			return json.Marshal(action.Failure("broker: malformed request: " + err.Error()))
		}
		out, err := json.Marshal(b.Handle(ctx, req))
		if err != nil {
			b.logger.WarnContext(ctx, "broker: encode result", "verb", req.Verb, "error", err)
			return json.Marshal(action.Failure("broker: encode result: " + err.Error()))
		}
		return out, nil
	}
}

// Register mounts the broker on r under action.BrokerService, behind
// recovery, logging and a per-call timeout.
func (b *Broker) Register(r *connectivity.Router, timeout time.Duration) {
	if timeout <= 0 {
		timeout = action.DefaultDispatchTimeout
	}
	mw := connectivity.Chain(
		connectivity.Recovery(b.logger),
		connectivity.Logging(b.logger, action.BrokerService),
		connectivity.Timeout(action.BrokerService, timeout),
	)
	r.RegisterLocal(action.BrokerService, mw(b.Handler()))
}

// target validates the resource fields of req before anything is put in a URL.
func target(req action.Request) (owner, repo string, number uint64, err error) {
	if err := guard.ValidateSegment(req.Owner); err != nil {
		return "", "", 0, fmt.Errorf("invalid owner: %w", err)
	}
	if err := guard.ValidateSegment(req.Repo); err != nil {
		return "", "", 0, fmt.Errorf("invalid repo: %w", err)
	}
	if err := guard.ValidateNumber(req.PullNumber); err != nil {
		return "", "", 0, fmt.Errorf("invalid pull number: %w", err)
	}
	n, err := req.Identity().PullNumber()
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid pull number: %w", err)
	}
	return req.Owner, req.Repo, n, nil
}
