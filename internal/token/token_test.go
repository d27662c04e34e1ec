package token

import (
	"errors"
	"path/filepath"
	"testing"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": sub,
		"exp": 4102444800, // 2100-01-01
	})
	signed, err := tok.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gchat", "token")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("empty store err = %v, want ErrNoToken", err)
	}
	if err := store.Save("abc.def.ghi"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if got != "abc.def.ghi" {
		t.Fatalf("token = %q", got)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("cleared store err = %v, want ErrNoToken", err)
	}
}

func TestStatic(t *testing.T) {
	got, err := Static("tok").Token()
	if err != nil || got != "tok" {
		t.Fatalf("Static = %q, %v", got, err)
	}
	if _, err := Static("").Token(); !errors.Is(err, ErrNoToken) {
		t.Fatalf("empty Static err = %v, want ErrNoToken", err)
	}
}

func TestUserID(t *testing.T) {
	id, err := UserID(signedToken(t, "42"))
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestUserIDRejectsGarbage(t *testing.T) {
	if _, err := UserID("not-a-jwt"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := UserID(signedToken(t, "alice")); err == nil {
		t.Fatalf("expected non-numeric sub error")
	}
}
