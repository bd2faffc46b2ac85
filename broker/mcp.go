package broker

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/idgen"
	"github.com/hazyhaar/prquick/kit"
)

// RegisterMCP registers the broker verbs as MCP tools. Every tool returns the
// action.Result JSON; a failed verb is a normal result with ok=false, not a
// tool error.
func (b *Broker) RegisterMCP(srv *mcp.Server) {
	b.registerReviewTool(srv)
	b.registerResourceTool(srv, "prquick_close", "Close a pull request.", action.VerbCloseResource)
	b.registerMergeTool(srv)
	b.registerAutoMergeTool(srv)
	b.registerResourceTool(srv, "prquick_view_state", "Auto-merge status, review thread and comment counts of a pull request.", action.VerbGetViewState)
	b.registerCredentialTool(srv)
}

func resourceProps(extra map[string]any) map[string]any {
	props := map[string]any{
		"owner":  map[string]any{"type": "string", "description": "Repository owner"},
		"repo":   map[string]any{"type": "string", "description": "Repository name"},
		"number": map[string]any{"type": "string", "description": "Pull request number"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

type resourceArgs struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number string `json:"number"`
}

func (a resourceArgs) request(verb action.Verb) action.Request {
	return action.Request{Verb: verb, Owner: a.Owner, Repo: a.Repo, PullNumber: a.Number}
}

func (b *Broker) endpoint() kit.Endpoint {
	handle := func(ctx context.Context, req any) (any, error) {
		return b.Handle(ctx, *req.(*action.Request)), nil
	}
	return kit.Chain(stampID(idgen.Prefixed("mcp_", idgen.UUIDv7())))(handle)
}

// stampID gives tool calls a request ID so their log lines can be correlated
// the same way toolbar dispatches are.
func stampID(gen idgen.Generator) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if r, ok := req.(*action.Request); ok && r.ID == "" {
				r.ID = gen()
			}
			return next(ctx, req)
		}
	}
}

func (b *Broker) registerResourceTool(srv *mcp.Server, name, desc string, verb action.Verb) {
	tool := &mcp.Tool{
		Name:        name,
		Description: desc,
		InputSchema: kit.InputSchema(resourceProps(nil), "owner", "repo", "number"),
	}
	decode := func(args json.RawMessage) (any, error) {
		a, err := kit.DecodeArgs[resourceArgs](args)
		if err != nil {
			return nil, err
		}
		r := a.request(verb)
		return &r, nil
	}
	kit.RegisterMCPTool(srv, tool, b.endpoint(), decode)
}

func (b *Broker) registerReviewTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "prquick_submit_review",
		Description: "Submit a review (APPROVE, COMMENT or REQUEST_CHANGES) on a pull request.",
		InputSchema: kit.InputSchema(resourceProps(map[string]any{
			"event": map[string]any{"type": "string", "enum": []string{"APPROVE", "COMMENT", "REQUEST_CHANGES"}},
			"body":  map[string]any{"type": "string", "description": "Review text"},
		}), "owner", "repo", "number", "event"),
	}
	decode := func(args json.RawMessage) (any, error) {
		a, err := kit.DecodeArgs[struct {
			resourceArgs
			Event string `json:"event"`
			Body  string `json:"body"`
		}](args)
		if err != nil {
			return nil, err
		}
		r := a.request(action.VerbSubmitReview)
		r.ReviewEvent = action.ReviewEvent(a.Event)
		r.ReviewBody = a.Body
		return &r, nil
	}
	kit.RegisterMCPTool(srv, tool, b.endpoint(), decode)
}

func (b *Broker) registerMergeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "prquick_merge",
		Description: "Merge a pull request (default method SQUASH).",
		InputSchema: kit.InputSchema(resourceProps(map[string]any{
			"method": map[string]any{"type": "string", "enum": []string{"SQUASH", "MERGE", "REBASE"}},
		}), "owner", "repo", "number"),
	}
	decode := func(args json.RawMessage) (any, error) {
		a, err := kit.DecodeArgs[struct {
			resourceArgs
			Method string `json:"method"`
		}](args)
		if err != nil {
			return nil, err
		}
		r := a.request(action.VerbMergeResource)
		r.MergeMethod = action.MergeMethod(a.Method)
		return &r, nil
	}
	kit.RegisterMCPTool(srv, tool, b.endpoint(), decode)
}

func (b *Broker) registerAutoMergeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "prquick_auto_merge",
		Description: "Enable (squash) or disable auto-merge on a pull request.",
		InputSchema: kit.InputSchema(resourceProps(map[string]any{
			"enable": map[string]any{"type": "boolean"},
		}), "owner", "repo", "number", "enable"),
	}
	decode := func(args json.RawMessage) (any, error) {
		a, err := kit.DecodeArgs[struct {
			resourceArgs
			Enable bool `json:"enable"`
		}](args)
		if err != nil {
			return nil, err
		}
		verb := action.VerbDisableAutoMerge
		if a.Enable {
			verb = action.VerbEnableAutoMerge
		}
		r := a.request(verb)
		return &r, nil
	}
	kit.RegisterMCPTool(srv, tool, b.endpoint(), decode)
}

func (b *Broker) registerCredentialTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "prquick_credential_status",
		Description: "Report whether a GitHub token is configured. Never returns the token.",
		InputSchema: kit.InputSchema(map[string]any{}),
	}
	decode := func(json.RawMessage) (any, error) {
		return &action.Request{Verb: action.VerbCheckCredential}, nil
	}
	kit.RegisterMCPTool(srv, tool, b.endpoint(), decode)
}
