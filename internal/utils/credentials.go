package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooShort is returned by HashPassword for passwords under
// MinPasswordLen characters.
var ErrPasswordTooShort = errors.New("password too short")

// MinPasswordLen is the shortest accepted account password.
const MinPasswordLen = 8

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) < MinPasswordLen {
		return "", ErrPasswordTooShort
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NewAddress returns a fresh account address: "0x" followed by 20 random
// bytes in lowercase hex.
func NewAddress() (string, error) {
	raw, err := randomHex(20)
	if err != nil {
		return "", err
	}
	return "0x" + raw, nil
}

// NormalizeAddress lower-cases addr and reports whether it is a well formed
// account address.
func NormalizeAddress(addr string) (string, bool) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return "", false
	}
	if _, err := hex.DecodeString(addr[2:]); err != nil {
		return "", false
	}
	return addr, true
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
