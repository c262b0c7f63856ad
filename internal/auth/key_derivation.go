package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DerivedKeyLength is the size in bytes of every derived key (HMAC-SHA256 / CSRF auth key).
const DerivedKeyLength = 32

const (
	purposeSessionToken = "eventops-session-token-v1"
	purposeCSRF         = "eventops-csrf-v1"
)

// ErrInvalidMasterSecret is returned when the master secret is empty.
var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives a 32-byte key from masterSecret using HKDF-SHA256 with
// purpose as the info parameter. Different purposes yield independent keys.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	key := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSessionKey derives the HS256 signing key for session tokens.
func DeriveSessionKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeSessionToken)
}

// DeriveCSRFKey derives the gorilla/csrf authentication key.
func DeriveCSRFKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeCSRF)
}
