package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hazyhaar/prquick/action"
)

func (b *Broker) submitReview(ctx context.Context, req action.Request) (json.RawMessage, error) {
	owner, repo, n, err := target(req)
	if err != nil {
		return nil, err
	}
	if !req.ReviewEvent.Valid() {
		return nil, fmt.Errorf("invalid review event %q", req.ReviewEvent)
	}
	body := map[string]string{"event": string(req.ReviewEvent)}
	if req.ReviewBody != "" {
		body["body"] = req.ReviewBody
	}
	return b.api.Call(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", owner, repo, n), body)
}

func (b *Broker) closeResource(ctx context.Context, req action.Request) (json.RawMessage, error) {
	owner, repo, n, err := target(req)
	if err != nil {
		return nil, err
	}
	return b.api.Call(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, n),
		map[string]string{"state": "closed"})
}

func (b *Broker) mergeResource(ctx context.Context, req action.Request) (json.RawMessage, error) {
	owner, repo, n, err := target(req)
	if err != nil {
		return nil, err
	}
	method := req.MergeMethod
	if method == "" {
		method = action.MergeSquash
	}
	switch method {
	case action.MergeSquash, action.MergeMerge, action.MergeRebase:
	default:
		return nil, fmt.Errorf("invalid merge method %q", method)
	}
	return b.api.Call(ctx, http.MethodPut, fmt.Sprintf("/repos/%s/%s/pulls/%d/merge", owner, repo, n),
		map[string]string{"merge_method": strings.ToLower(string(method))})
}

// enableAutoMerge resolves the pull request's node id, then enables
// auto-merge. The two calls are not transactional: a failed mutation after a
// successful lookup returns the mutation's error and nothing is undone.
func (b *Broker) enableAutoMerge(ctx context.Context, req action.Request) (json.RawMessage, error) {
	id, err := b.nodeID(ctx, req)
	if err != nil {
		return nil, err
	}
	return b.api.Query(ctx, mutationEnableAutoMerge, map[string]any{
		"pullRequestId": id,
		"mergeMethod":   string(action.MergeSquash),
	})
}

func (b *Broker) disableAutoMerge(ctx context.Context, req action.Request) (json.RawMessage, error) {
	id, err := b.nodeID(ctx, req)
	if err != nil {
		return nil, err
	}
	return b.api.Query(ctx, mutationDisableAutoMerge, map[string]any{
		"pullRequestId": id,
	})
}

var errPullNotFound = errors.New("pull request not found")

func (b *Broker) nodeID(ctx context.Context, req action.Request) (string, error) {
	owner, repo, n, err := target(req)
	if err != nil {
		return "", err
	}
	raw, err := b.api.Query(ctx, queryNodeID, map[string]any{"owner": owner, "repo": repo, "number": n})
	if err != nil {
		return "", err
	}
	var d struct {
		Repository *struct {
			PullRequest *struct {
				ID string `json:"id"`
			} `json:"pullRequest"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return "", fmt.Errorf("decode node id: %w", err)
	}
	if d.Repository == nil || d.Repository.PullRequest == nil || d.Repository.PullRequest.ID == "" {
		return "", errPullNotFound
	}
	return d.Repository.PullRequest.ID, nil
}

// viewState sums comments across the returned review threads. Missing
// substructures (no auto-merge request, no threads) default to zero values.
func (b *Broker) viewState(ctx context.Context, req action.Request) (json.RawMessage, error) {
	owner, repo, n, err := target(req)
	if err != nil {
		return nil, err
	}
	raw, err := b.api.Query(ctx, queryViewState, map[string]any{"owner": owner, "repo": repo, "number": n})
	if err != nil {
		return nil, err
	}

	var d struct {
		Repository *struct {
			PullRequest *struct {
				AutoMergeRequest *struct {
					MergeMethod string `json:"mergeMethod"`
				} `json:"autoMergeRequest"`
				ReviewThreads *struct {
					TotalCount uint `json:"totalCount"`
					Nodes      []struct {
						Comments *struct {
							TotalCount uint `json:"totalCount"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
				Reviews *struct {
					TotalCount uint `json:"totalCount"`
				} `json:"reviews"`
			} `json:"pullRequest"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode view state: %w", err)
	}
	if d.Repository == nil || d.Repository.PullRequest == nil {
		return nil, errPullNotFound
	}
	pr := d.Repository.PullRequest

	var vs action.ViewState
	if pr.AutoMergeRequest != nil {
		vs.AutoMergeEnabled = true
		vs.AutoMergeMethod = action.MergeMethod(pr.AutoMergeRequest.MergeMethod)
	}
	if pr.ReviewThreads != nil {
		vs.ReviewThreadCount = pr.ReviewThreads.TotalCount
		for _, t := range pr.ReviewThreads.Nodes {
			if t.Comments != nil {
				vs.TotalComments += t.Comments.TotalCount
			}
		}
	}
	if pr.Reviews != nil {
		vs.ReviewCount = pr.Reviews.TotalCount
	}
	return json.Marshal(vs)
}

// checkCredential answers presence only. The credential value never leaves
// the agent side.
func (b *Broker) checkCredential(ctx context.Context, _ action.Request) (json.RawMessage, error) {
	ok, err := b.creds.Present(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(action.CredentialStatus{HasCredential: ok})
}
