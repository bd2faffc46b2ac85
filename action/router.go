package action

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/prquick/connectivity"
	"github.com/hazyhaar/prquick/idgen"
)

// BrokerService is the router service name the broker registers under.
const BrokerService = "broker"

// DefaultDispatchTimeout bounds a dispatch that never gets a reply.
const DefaultDispatchTimeout = 30 * time.Second

// RouterChannel sends requests through a connectivity.Router.
type RouterChannel struct {
	router  *connectivity.Router
	service string
	timeout time.Duration
	newID   idgen.Generator
	logger  *slog.Logger
}

// ChannelOption configures a RouterChannel.
type ChannelOption func(*RouterChannel)

// WithTimeout overrides DefaultDispatchTimeout.
func WithTimeout(d time.Duration) ChannelOption {
	return func(c *RouterChannel) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithService targets a service other than BrokerService.
func WithService(name string) ChannelOption {
	return func(c *RouterChannel) { c.service = name }
}

// WithChannelLogger sets the logger.
func WithChannelLogger(l *slog.Logger) ChannelOption {
	return func(c *RouterChannel) { c.logger = l }
}

// NewRouterChannel returns a Channel backed by r.
func NewRouterChannel(r *connectivity.Router, opts ...ChannelOption) *RouterChannel {
	c := &RouterChannel{
		router:  r,
		service: BrokerService,
		timeout: DefaultDispatchTimeout,
		newID:   idgen.Default,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dispatch implements Channel.
func (c *RouterChannel) Dispatch(ctx context.Context, req Request) Result {
	if req.ID == "" {
		req.ID = c.newID()
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return Failure("channel: encode request: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type reply struct {
		resp []byte
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := c.router.Call(ctx, c.service, payload)
		done <- reply{resp, err}
	}()

	var resp []byte
	select {
	case r := <-done:
		resp, err = r.resp, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.logger.Warn("action: dispatch failed", "verb", req.Verb, "id", req.ID, "error", err)
		return Failure(channelMessage(err))
	}

	var res Result
	if err := json.Unmarshal(resp, &res); err != nil {
		return Failure("channel: decode response: " + err.Error())
	}
	if !res.OK && res.ErrorMessage == "" {
		res.ErrorMessage = "channel: empty error"
	}
	return res
}

func channelMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "channel: no response from agent"
	case errors.Is(err, context.Canceled):
		return "channel: request cancelled"
	}
	return err.Error()
}
