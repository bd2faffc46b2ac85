package guard

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValidateSegment(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"acme", false},
		{"widgets.go", false},
		{"my-repo_2", false},
		{"", true},
		{".", true},
		{"..", true},
		{"a/b", true},
		{"a b", true},
		{"a?b", true},
		{strings.Repeat("a", 101), true},
	}
	for _, tt := range tests {
		err := ValidateSegment(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSegment(%q) error=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
	}
}

func TestValidateNumber(t *testing.T) {
	for _, ok := range []string{"1", "42", "000"} {
		if err := ValidateNumber(ok); err != nil {
			t.Errorf("ValidateNumber(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "-1", "4a", "1.0", "99999999999999999999"} {
		if err := ValidateNumber(bad); err == nil {
			t.Errorf("ValidateNumber(%q): expected error", bad)
		}
	}
}

func TestValidateToken(t *testing.T) {
	for _, ok := range []string{"ghp_abc123", "github_pat_11AAA", "gho_xyz"} {
		if err := ValidateToken(ok); err != nil {
			t.Errorf("ValidateToken(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "ghp_", "token", " ghp_abc", "ghp_abc\n", "ghs_abc"} {
		if err := ValidateToken(bad); !errors.Is(err, ErrTokenFormat) {
			t.Errorf("ValidateToken(%q): got %v, want ErrTokenFormat", bad, err)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("ghp_abcdefghijkl1234"); got != "ghp_****1234" {
		t.Fatalf("Redact: got %q", got)
	}
	if got := Redact("github_pat_AAAABBBBCCCC9999"); got != "github_pat_****9999" {
		t.Fatalf("Redact fine-grained: got %q", got)
	}
	if got := Redact("short"); got != "*****" {
		t.Fatalf("Redact short: got %q", got)
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(bytes.NewReader([]byte("hello")), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("within limit: %q, %v", data, err)
	}
	if _, err := LimitedReadAll(bytes.NewReader([]byte("hello!")), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: got %v, want ErrTooLarge", err)
	}
}
