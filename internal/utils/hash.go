package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"hash/fnv"

	"golang.org/x/crypto/bcrypt"
)

// HashStringToUint64 gives a stable bucket for a string, used to key per-client
// rate limiters.
func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// TempPassword returns a random credential and its bcrypt hash. The plain value
// is never stored; the account is claimed later through a password reset.
func TempPassword() (plain, hash string, err error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate temp password: %w", err)
	}
	plain = base64.RawURLEncoding.EncodeToString(buf)
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash temp password: %w", err)
	}
	return plain, string(b), nil
}
