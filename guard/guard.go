// Package guard holds the input checks and bounded I/O helpers shared by the
// agent side: path segment validation before anything is interpolated into
// a remote endpoint, token shape checks for credential entry, and capped
// response reads.
package guard

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxResponseBody caps remote API response reads (10 MiB).
const MaxResponseBody int64 = 10 << 20

// ErrTooLarge is returned by LimitedReadAll when the limit is exceeded.
var ErrTooLarge = errors.New("guard: response too large")

// ErrTokenFormat is returned for tokens that do not look like a GitHub token.
var ErrTokenFormat = errors.New("guard: invalid token format (expected ghp_, github_pat_ or gho_ prefix)")

// tokenPrefixes are the personal access token and OAuth token prefixes accepted
// at credential entry.
var tokenPrefixes = []string{"ghp_", "github_pat_", "gho_"}

// ValidateSegment rejects owner or repository names that are unsafe to place
// in a URL path. Allows alphanumeric, underscore, hyphen, and dot.
func ValidateSegment(s string) error {
	if s == "" {
		return fmt.Errorf("guard: path segment must not be empty")
	}
	if len(s) > 100 {
		return fmt.Errorf("guard: path segment too long (max 100)")
	}
	if s == "." || s == ".." {
		return fmt.Errorf("guard: invalid path segment %q", s)
	}
	for _, r := range s {
		if !isSegmentChar(r) {
			return fmt.Errorf("guard: invalid character %q in path segment", r)
		}
	}
	return nil
}

// ValidateNumber rejects anything but an unsigned decimal integer.
func ValidateNumber(s string) error {
	if s == "" || len(s) > 19 {
		return fmt.Errorf("guard: invalid number %q", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("guard: invalid number %q", s)
		}
	}
	return nil
}

// ValidateToken checks the shape of a candidate token before it is stored.
func ValidateToken(token string) error {
	if strings.TrimSpace(token) != token || strings.ContainsAny(token, " \t\r\n") {
		return ErrTokenFormat
	}
	for _, p := range tokenPrefixes {
		if strings.HasPrefix(token, p) && len(token) > len(p) {
			return nil
		}
	}
	return ErrTokenFormat
}

// Redact keeps a token's prefix and last four characters for display.
func Redact(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	head := token[:4]
	for _, p := range tokenPrefixes {
		if strings.HasPrefix(token, p) {
			head = p
			break
		}
	}
	return head + "****" + token[len(token)-4:]
}

// LimitedReadAll reads at most maxBytes from r. Returns ErrTooLarge
// if the limit is exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func isSegmentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
