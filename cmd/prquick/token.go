package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/hazyhaar/prquick/guard"
	"github.com/hazyhaar/prquick/remote"
)

func runToken(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: prquick token set|clear|status [flags]")
	}
	sub, args := args[0], args[1:]

	fs := flag.NewFlagSet("token "+sub, flag.ExitOnError)
	var c common
	c.register(fs)
	verify := fs.Bool("verify", true, "check the token against GET /user before saving")
	fs.Parse(args)

	logger, cfg, err := c.setup()
	if err != nil {
		return err
	}
	ag, err := openAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer ag.Close()

	switch sub {
	case "set":
		token, err := readToken(os.Stdin)
		if err != nil {
			return err
		}
		if err := guard.ValidateToken(token); err != nil {
			return err
		}
		login := ""
		if *verify {
			client := remote.New(remote.Config{BaseURL: cfg.APIBaseURL, Logger: logger}, ag.store)
			vctx, cancel := context.WithTimeout(ctx, 15*time.Second)
			login, err = client.Viewer(vctx, token)
			cancel()
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
		}
		if err := ag.store.Set(ctx, token); err != nil {
			return err
		}
		if login != "" {
			fmt.Printf("Token %s saved for %s.\n", guard.Redact(token), login)
		} else {
			fmt.Printf("Token %s saved.\n", guard.Redact(token))
		}
		return nil

	case "clear":
		if err := ag.store.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Token cleared.")
		return nil

	case "status":
		token, ok, err := ag.store.Get(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No token configured. Run `prquick token set`.")
			return nil
		}
		at, _, err := ag.store.UpdatedAt(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Token %s configured (updated %s).\n", guard.Redact(token), at.Local().Format(time.RFC3339))
		return nil
	}
	return fmt.Errorf("unknown token command %q", sub)
}

// readToken prompts without echo on a terminal, or reads one line otherwise.
func readToken(in *os.File) (string, error) {
	if term.IsTerminal(int(in.Fd())) {
		fmt.Fprint(os.Stderr, "GitHub token: ")
		b, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
