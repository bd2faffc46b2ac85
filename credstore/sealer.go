package credstore

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// Sealer encrypts the credential before it reaches disk.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// AgeSealer seals to a single age X25519 identity. Ciphertext is base64 so
// it fits a TEXT column.
type AgeSealer struct {
	identity *age.X25519Identity
}

// NewAgeSealer returns a Sealer for identity.
func NewAgeSealer(identity *age.X25519Identity) *AgeSealer {
	return &AgeSealer{identity: identity}
}

// Seal implements Sealer.
func (s *AgeSealer) Seal(plaintext []byte) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("credstore: creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("credstore: writing to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("credstore: finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open implements Sealer.
func (s *AgeSealer) Open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("credstore: decoding sealed value: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return nil, fmt.Errorf("credstore: decrypting: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("credstore: reading plaintext: %w", err)
	}
	return out, nil
}

// LoadOrCreateIdentity reads the age identity at path, generating and writing
// a new one (mode 0600) when the file does not exist yet.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("credstore: parsing identity %s: %w", path, err)
		}
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("credstore: reading identity: %w", err)
	}

	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("credstore: generating identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("credstore: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("credstore: creating identity file: %w", err)
	}
	if _, err := fmt.Fprintln(f, id.String()); err != nil {
		f.Close()
		return nil, fmt.Errorf("credstore: writing identity: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("credstore: closing identity file: %w", err)
	}
	return id, nil
}
