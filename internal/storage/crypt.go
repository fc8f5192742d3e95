package storage

import (
	"crypto/rand"
	"fmt"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ccoin/warpz/internal/errs"
)

const (
	saltSize       = 16
	argon2Time     = 1
	argon2Memory   = 64 * 1024 // KiB
	argon2Threads  = 4
	argon2KeyBytes = chacha20poly1305.KeySize
)

// EncryptAtRest encrypts plaintext under a key derived from password via
// argon2id, writing the result to path atomically (write to a temp file,
// then rename) so a crash mid-write never leaves a corrupt store file.
func EncryptAtRest(path, password string, plaintext []byte) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyBytes)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// DecryptAtRest reverses EncryptAtRest, returning errs.ErrBadPassword on
// authentication failure (wrong password or corrupt file — AEAD does not
// distinguish the two).
func DecryptAtRest(path, password string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < saltSize+chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("%w: truncated store file", errs.ErrCorrupt)
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+chacha20poly1305.NonceSize]
	ciphertext := data[saltSize+chacha20poly1305.NonceSize:]

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyBytes)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errs.ErrBadPassword
	}
	return plaintext, nil
}
