package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/broker"
	"github.com/hazyhaar/prquick/config"
	"github.com/hazyhaar/prquick/connectivity"
	"github.com/hazyhaar/prquick/credstore"
	"github.com/hazyhaar/prquick/remote"
)

// agent is the privileged side of a session: credential store, remote
// client and broker. The page side only ever gets the channel.
type agent struct {
	db     *sql.DB
	store  *credstore.Store
	broker *broker.Broker
	router *connectivity.Router
}

func openAgent(cfg *config.Config, logger *slog.Logger) (*agent, error) {
	store, db, err := credstore.Open(cfg.DBPath, cfg.KeyPath())
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	client := remote.New(remote.Config{BaseURL: cfg.APIBaseURL, Logger: logger}, store)
	b := broker.New(store, client, logger)

	r := connectivity.New(connectivity.WithLogger(logger))
	b.Register(r, cfg.Channel.Timeout)

	return &agent{db: db, store: store, broker: b, router: r}, nil
}

// channel returns the page-side handle onto the broker.
func (a *agent) channel(cfg *config.Config, logger *slog.Logger) action.Channel {
	return action.NewRouterChannel(a.router,
		action.WithTimeout(cfg.Channel.Timeout),
		action.WithChannelLogger(logger))
}

func (a *agent) Close() error {
	return a.db.Close()
}
