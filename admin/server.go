// CLAUDE:SUMMARY Loopback chi server exposing /healthz and /state of the running toolbar session.
// Package admin serves a small read-only HTTP view of a running session:
// liveness, credential presence and the injection engine's last decision.
// It never exposes the channel or the credential value.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/prquick/action"
	"github.com/hazyhaar/prquick/idgen"
	"github.com/hazyhaar/prquick/inject"
)

// Engine is the part of *inject.Engine the admin view reads.
type Engine interface {
	State() inject.State
	Last() inject.Outcome
}

// StateResponse is the /state payload.
type StateResponse struct {
	State   inject.State   `json:"state"`
	Mounted bool           `json:"mounted"`
	Last    inject.Outcome `json:"last"`
}

// NewRouter builds the admin routes. Credential presence is asked of the
// agent through ch, like the toolbar does.
func NewRouter(eng Engine, ch action.Channel, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	started := time.Now()

	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(HeadToGet)
	r.Use(TraceID(logger, idgen.Prefixed("http_", idgen.UUIDv7())))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ok, err := action.HasCredential(r.Context(), ch)
		if err != nil {
			GetLogger(r.Context()).Warn("admin: credential check", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"hasCredential": ok,
			"uptime":        time.Since(started).Round(time.Second).String(),
		})
	})

	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		s := eng.State()
		writeJSON(w, http.StatusOK, StateResponse{State: s, Mounted: s == inject.Mounted, Last: eng.Last()})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// Serve runs h on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("admin: listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("admin: stopped")
	return nil
}
