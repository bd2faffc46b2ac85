package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// busyBackoff is the wait before each retry of a locked write.
var busyBackoff = []time.Duration{50 * time.Millisecond, 150 * time.Millisecond, 400 * time.Millisecond}

// IsBusy reports whether err means another connection holds the database
// lock (SQLITE_BUSY or SQLITE_LOCKED, extended codes included).
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "is locked")
}

// Exec runs a write statement, waiting out a locked database a few times
// before giving up. Any other error is returned at once.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	for attempt := 0; ; attempt++ {
		res, err := db.ExecContext(ctx, query, args...)
		if err == nil || !IsBusy(err) || attempt == len(busyBackoff) {
			return res, err
		}
		t := time.NewTimer(busyBackoff[attempt])
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("dbopen: gave up on locked database: %w", ctx.Err())
		case <-t.C:
		}
	}
}
