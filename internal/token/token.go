// Package token supplies bearer credentials to the API client and the
// session connector. Storage is behind the Provider interface so the
// session code is testable without touching the filesystem.
package token

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when no credential has been stored yet.
var ErrNoToken = errors.New("token: not logged in")

// Provider yields the bearer token for outgoing requests.
type Provider interface {
	Token() (string, error)
}

// Static is a fixed in-memory token, mostly for tests and one-shot use.
type Static string

func (s Static) Token() (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FileStore keeps the token in a single file under the user's config
// directory. The token is issued by the external login flow; the client
// only stores and replays it.
type FileStore struct {
	path string
}

// NewFileStore returns a store at an explicit path, or the default
// location when path is empty.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("token: resolve config dir: %w", err)
		}
		path = filepath.Join(dir, "gchat", "token")
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Token() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", err
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// Save persists a freshly issued token, replacing any previous one.
func (f *FileStore) Save(tok string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(tok+"\n"), 0o600)
}

// Clear removes the stored token.
func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// UserID extracts the numeric user id from the token's sub claim. The
// signature is not checked; the signing key lives on the server and the
// id is only used to tell own messages apart in the UI.
func UserID(tok string) (int64, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(tok, jwtlib.MapClaims{})
	if err != nil {
		return 0, fmt.Errorf("token: parse: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("token: no sub claim: %w", err)
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token: sub is not a user id: %w", err)
	}
	return id, nil
}
