// CLAUDE:SUMMARY Persistent, age-sealed storage of the single GitHub token, backed by SQLite.
// Package credstore keeps the one credential prquick acts with. The value is
// sealed with age before it is written to SQLite and only unsealed on Get.
//
// No format validation happens here. Writes ride out a briefly locked
// database (dbopen.Exec); any other persistence error is returned wrapped.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/prquick/dbopen"
)

// DefaultName is the row the GitHub token is stored under.
const DefaultName = "github_token"

// Schema is the credentials table.
const Schema = `CREATE TABLE IF NOT EXISTS credentials (
	name       TEXT PRIMARY KEY,
	sealed     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store is a named credential slot.
type Store struct {
	db     *sql.DB
	sealer Sealer
	name   string
	now    func() time.Time
}

// New wraps an open database. The schema is applied if missing.
func New(db *sql.DB, sealer Sealer) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("credstore: schema: %w", err)
	}
	return &Store{db: db, sealer: sealer, name: DefaultName, now: time.Now}, nil
}

// Open opens (or creates) the credential database at dbPath, sealing with the
// age identity stored at keyPath.
func Open(dbPath, keyPath string) (*Store, *sql.DB, error) {
	id, err := LoadOrCreateIdentity(keyPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll(), dbopen.WithPrivateFile(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, nil, fmt.Errorf("credstore: %w", err)
	}
	s, err := New(db, NewAgeSealer(id))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, db, nil
}

// Get returns the credential. ok is false when none is stored.
func (s *Store) Get(ctx context.Context) (token string, ok bool, err error) {
	var sealed string
	err = s.db.QueryRowContext(ctx,
		`SELECT sealed FROM credentials WHERE name = ?`, s.name).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("credstore: get: %w", err)
	}
	plain, err := s.sealer.Open(sealed)
	if err != nil {
		return "", false, err
	}
	return string(plain), true, nil
}

// Set stores token, replacing any previous value.
func (s *Store) Set(ctx context.Context, token string) error {
	sealed, err := s.sealer.Seal([]byte(token))
	if err != nil {
		return err
	}
	_, err = dbopen.Exec(ctx, s.db,
		`INSERT INTO credentials (name, sealed, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET sealed = excluded.sealed, updated_at = excluded.updated_at`,
		s.name, sealed, s.now().Unix())
	if err != nil {
		return fmt.Errorf("credstore: set: %w", err)
	}
	return nil
}

// Clear removes the credential. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := dbopen.Exec(ctx, s.db, `DELETE FROM credentials WHERE name = ?`, s.name); err != nil {
		return fmt.Errorf("credstore: clear: %w", err)
	}
	return nil
}

// Present reports whether a credential is stored without unsealing it.
func (s *Store) Present(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE name = ?`, s.name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("credstore: present: %w", err)
	}
	return n > 0, nil
}

// UpdatedAt returns when the credential was last set.
func (s *Store) UpdatedAt(ctx context.Context) (time.Time, bool, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM credentials WHERE name = ?`, s.name).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("credstore: updated_at: %w", err)
	}
	return time.Unix(ts, 0), true, nil
}
