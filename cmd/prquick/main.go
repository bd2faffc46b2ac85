// CLAUDE:SUMMARY CLI entry point for prquick: browser session, token management, MCP server and offline preview.
// Command prquick adds a quick-actions toolbar to GitHub pull request pages
// in a Chrome window it drives.
//
// Usage:
//
//	prquick run [-config prquick.yaml] [-url https://github.com/o/r/pull/1]
//	prquick token set|clear|status
//	prquick mcp
//	prquick preview -html page.html -path /o/r/pull/1 [-offline] [-sanitize]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/prquick/config"
)

const usage = `usage: prquick <command> [flags]

commands:
  run       open Chrome and keep the toolbar mounted on pull request pages
  token     set, clear or show the stored GitHub token
  mcp       serve the toolbar actions as MCP tools over stdio
  preview   run one injection cycle against a saved HTML page
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "run":
		err = runSession(ctx, args)
	case "token":
		err = runToken(ctx, args)
	case "mcp":
		err = runMCP(ctx, args)
	case "preview":
		err = runPreview(ctx, args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "prquick: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("prquick: fatal", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// common holds the flags every command accepts.
type common struct {
	configPath string
	logLevel   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to prquick.yaml (default $"+config.EnvPath+")")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// setup builds the logger, installs it as default and loads the config.
func (c *common) setup() (*slog.Logger, *config.Config, error) {
	var level slog.Level
	switch c.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return logger, cfg, nil
}
