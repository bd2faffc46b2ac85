package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/admin"
	"github.com/hazyhaar/prquick/browser"
	"github.com/hazyhaar/prquick/config"
	"github.com/hazyhaar/prquick/inject"
)

func runSession(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var c common
	c.register(fs)
	startURL := fs.String("url", "", "page to open (default browser.start_url)")
	fs.Parse(args)

	logger, cfg, err := c.setup()
	if err != nil {
		return err
	}
	if *startURL != "" {
		cfg.Browser.StartURL = *startURL
	}

	ag, err := openAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer ag.Close()

	ch := ag.channel(cfg, logger)
	if ok, err := action.HasCredential(ctx, ch); err != nil {
		return fmt.Errorf("credential check: %w", err)
	} else if !ok {
		logger.Warn("prquick: no GitHub token stored, the toolbar stays hidden until `prquick token set`")
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:   cfg.Browser.Remote,
		Headless:    cfg.Browser.Headless,
		Stealth:     cfg.Browser.StealthEnabled(),
		UserDataDir: cfg.Browser.UserDataDir,
		XvfbDisplay: cfg.Browser.XvfbDisplay,
		Logger:      logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	tab, err := browser.OpenTab(ctx, mgr, cfg.Browser.StartURL)
	if err != nil {
		return err
	}
	defer tab.Close()

	eng := inject.New(tab, ch, engineConfig(cfg, logger))
	go eng.Run(ctx)

	bridge := browser.NewBridge(tab, eng, logger)
	if err := bridge.Install(ctx); err != nil {
		return err
	}
	go bridge.Listen(ctx)
	eng.Start()

	if cfg.Admin.Addr != "" {
		go func() {
			h := admin.NewRouter(eng, ch, logger)
			if err := admin.Serve(ctx, cfg.Admin.Addr, h, logger); err != nil {
				logger.Error("prquick: admin server", "error", err)
			}
		}()
	}

	logger.Info("prquick: session started", "url", cfg.Browser.StartURL)
	<-ctx.Done()
	logger.Info("prquick: shutting down")
	return nil
}

func engineConfig(cfg *config.Config, logger *slog.Logger) inject.Config {
	return inject.Config{
		Debounce:        cfg.Inject.Debounce,
		NavigationDelay: cfg.Inject.NavigationDelay,
		ReloadDelay:     cfg.UI.ReloadDelay,
		Logger:          logger,
	}
}
