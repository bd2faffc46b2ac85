package credstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filippo.io/age"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/prquick/dbopen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(dbopen.OpenMemory(t), NewAgeSealer(id))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStore_GetEmpty(t *testing.T) {
	s := newTestStore(t)
	tok, ok, err := s.Get(context.Background())
	if err != nil || ok || tok != "" {
		t.Fatalf("Get on empty store: %q, %v, %v", tok, ok, err)
	}
}

func TestStore_SetGetClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "ghp_first"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "ghp_second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	tok, ok, err := s.Get(ctx)
	if err != nil || !ok || tok != "ghp_second" {
		t.Fatalf("Get: %q, %v, %v", tok, ok, err)
	}
	if present, err := s.Present(ctx); err != nil || !present {
		t.Fatalf("Present: %v, %v", present, err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx); ok {
		t.Fatal("Get after Clear: still present")
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear on empty store: %v", err)
	}
}

func TestStore_NoFormatValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, "not a token at all"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	tok, _, _ := s.Get(ctx)
	if tok != "not a token at all" {
		t.Fatalf("Get: %q", tok)
	}
}

func TestStore_SealedAtRest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, "ghp_plaintextcheck"); err != nil {
		t.Fatal(err)
	}
	var raw string
	if err := s.db.QueryRow(`SELECT sealed FROM credentials`).Scan(&raw); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(raw, "ghp_plaintextcheck") {
		t.Fatal("credential stored in plaintext")
	}
}

func TestStore_UpdatedAt(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	ctx := context.Background()
	if _, ok, _ := s.UpdatedAt(ctx); ok {
		t.Fatal("UpdatedAt on empty store: ok=true")
	}
	if err := s.Set(ctx, "ghp_x"); err != nil {
		t.Fatal(err)
	}
	ts, ok, err := s.UpdatedAt(ctx)
	if err != nil || !ok || ts.Unix() != 1_700_000_000 {
		t.Fatalf("UpdatedAt: %v, %v, %v", ts, ok, err)
	}
}

func TestStore_PersistenceErrorPropagates(t *testing.T) {
	s := newTestStore(t)
	s.db.Close()
	if err := s.Set(context.Background(), "ghp_x"); err == nil {
		t.Fatal("expected error on closed database")
	}
	if _, _, err := s.Get(context.Background()); err == nil {
		t.Fatal("expected error on closed database")
	}
}

func TestOpen_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "prquick.db")
	keyPath := filepath.Join(dir, "prquick.key")
	ctx := context.Background()

	s, db, err := Open(dbPath, keyPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set(ctx, "ghp_persisted"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("identity mode = %o, want 600", perm)
	}

	s2, db2, err := Open(dbPath, keyPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	tok, ok, err := s2.Get(ctx)
	if err != nil || !ok || tok != "ghp_persisted" {
		t.Fatalf("Get after restart: %q, %v, %v", tok, ok, err)
	}
}

func TestOpen_WrongIdentity(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "prquick.db")
	ctx := context.Background()

	s, db, err := Open(dbPath, filepath.Join(dir, "a.key"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "ghp_secret"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s2, db2, err := Open(dbPath, filepath.Join(dir, "b.key"))
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()
	if _, _, err := s2.Get(ctx); err == nil {
		t.Fatal("expected decrypt error with a different identity")
	}
}
