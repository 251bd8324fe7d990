// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest password bcrypt hashes without truncation.
const MaxLength = 72

var (
	dummyOnce sync.Once
	dummyHash string
)

// Hash returns the bcrypt hash of plain at the default cost.
func Hash(plain string) (string, error) {
	const op = "password.Hash"
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(h), nil
}

// Compare reports whether plain matches hash. A mismatch is (false, nil); an
// error means the hash itself could not be used.
func Compare(hash, plain string) (bool, error) {
	const op = "password.Compare"
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w", op, err)
	}
}

// DummyHash returns a valid hash that no submitted password matches in
// practice. Comparing against it makes the unknown-account path cost the same
// as a wrong password.
func DummyHash() string {
	dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("taxflow-dummy-password-never-issued"), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("password: dummy hash: %v", err))
		}
		dummyHash = string(h)
	})
	return dummyHash
}
