package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/dom"
	"github.com/hazyhaar/prquick/inject"
)

func runPreview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	var c common
	c.register(fs)
	htmlPath := fs.String("html", "", "saved page to inject into (required)")
	path := fs.String("path", "", "location path the page was served at, e.g. /o/r/pull/1 (required)")
	offline := fs.Bool("offline", false, "answer the channel locally instead of calling GitHub")
	comments := fs.Uint("comments", 0, "review comment count reported in -offline mode")
	sanitize := fs.Bool("sanitize", false, "strip scripts and handlers from the page before injecting")
	out := fs.String("out", "", "write the resulting HTML here (default stdout)")
	fs.Parse(args)

	if *htmlPath == "" || *path == "" {
		return errors.New("preview: -html and -path are required")
	}
	logger, cfg, err := c.setup()
	if err != nil {
		return err
	}

	f, err := os.Open(*htmlPath)
	if err != nil {
		return err
	}
	defer f.Close()
	parse := dom.ParseHTML
	if *sanitize {
		parse = dom.ParseSanitizedHTML
	}
	doc, err := parse(*path, f)
	if err != nil {
		return err
	}

	var ch action.Channel
	if *offline {
		ch = offlineChannel(*comments)
	} else {
		ag, err := openAgent(cfg, logger)
		if err != nil {
			return err
		}
		defer ag.Close()
		ch = ag.channel(cfg, logger)
	}

	outcome, err := preview(ctx, doc, ch, engineConfig(cfg, logger), 10*time.Second)
	if err != nil {
		return err
	}
	report, _ := json.Marshal(outcome)
	fmt.Fprintln(os.Stderr, string(report))

	html, err := doc.HTML()
	if err != nil {
		return err
	}
	var w io.Writer = os.Stdout
	if *out != "" {
		of, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer of.Close()
		w = of
	}
	_, err = io.WriteString(w, html+"\n")
	return err
}

// preview runs the engine on doc until it settles (mounted or idle).
func preview(ctx context.Context, doc dom.Document, ch action.Channel, cfg inject.Config, timeout time.Duration) (inject.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	settled := make(chan inject.Outcome, 1)
	cfg.OnEvaluate = func(o inject.Outcome) {
		if o.State == inject.Mounted || o.State == inject.Idle {
			select {
			case settled <- o:
			default:
			}
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	eng := inject.New(doc, ch, cfg)
	go eng.Run(ctx)
	eng.Start()

	select {
	case o := <-settled:
		return o, nil
	case <-ctx.Done():
		return eng.Last(), fmt.Errorf("preview: engine did not settle: %w", ctx.Err())
	}
}

// offlineChannel answers as an agent with a stored credential and a pull
// request carrying n review comments.
func offlineChannel(n uint) action.Channel {
	return action.ChannelFunc(func(_ context.Context, req action.Request) action.Result {
		switch req.Verb {
		case action.VerbCheckCredential:
			return action.Success(action.CredentialStatus{HasCredential: true})
		case action.VerbGetViewState:
			return action.Success(action.ViewState{TotalComments: n})
		}
		return action.Failure("offline preview: " + string(req.Verb) + " not available")
	})
}
