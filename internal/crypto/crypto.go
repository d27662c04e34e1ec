package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// Parameters of the deployed key derivation. Changing either breaks
// compatibility with ciphertext already stored by the service.
const (
	keyIterations = 10000
	keyLength     = 32
)

var (
	ErrBadCiphertext = errors.New("crypto: malformed ciphertext")
	ErrBadPadding    = errors.New("crypto: invalid padding")
)

// DeriveKey derives the conversation key from a password and the
// conversation's distribution key. Deterministic: the same inputs always
// produce the same key bytes.
func DeriveKey(password, salt string) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), keyIterations, keyLength, sha256.New)
}

// Encrypt transforms plaintext into the hex ciphertext the service stores
// and relays. AES in ECB mode with PKCS#7 padding: the wire format carries
// no IV, so identical plaintexts encrypt to identical ciphertexts and
// nothing authenticates the result. Kept as-is for compatibility with the
// deployed counterpart.
func Encrypt(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	padded := pad([]byte(plaintext), block.BlockSize())
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(out[i:], padded[i:])
	}
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. A wrong key usually surfaces as
// ErrBadPadding, but can also yield garbage that happens to unpad
// cleanly; a nil error is not authentication.
func Decrypt(ciphertext string, key []byte) (string, error) {
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", ErrBadCiphertext
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 || len(raw)%block.BlockSize() != 0 {
		return "", ErrBadCiphertext
	}
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += block.BlockSize() {
		block.Decrypt(out[i:], raw[i:])
	}
	plain, err := unpad(out, block.BlockSize())
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}
