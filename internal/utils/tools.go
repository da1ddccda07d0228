package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func EncryptPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

func VerifyPassword(hashedPassword, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		return false, err
	}
	return true, nil
}

// TokenValuePrefix marks auditor token values so they are recognizable in
// configuration and support tickets without being guessable.
const TokenValuePrefix = "adt_"

// MintAuditorToken generates an opaque auditor token value. It returns the
// raw value (shown exactly once), the lookup prefix and the SHA-256 hash
// that gets persisted.
func MintAuditorToken() (raw, prefix, hash string) {
	a := uuid.New()
	b := uuid.New()
	raw = TokenValuePrefix + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
	return raw, raw[:8], HashToken(raw)
}

// HashToken derives the stored lookup hash for a raw token value.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAuditorToken is a cheap format check used before hitting storage.
func LooksLikeAuditorToken(raw string) bool {
	return strings.HasPrefix(raw, TokenValuePrefix) && len(raw) > len(TokenValuePrefix)
}
