package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxKeyLength is the longest input bcrypt hashes without truncation
const maxKeyLength = 72

// GenerateKey returns a random API key
func GenerateKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return "rf_" + hex.EncodeToString(b), nil
}

// HashKey hashes an API key with bcrypt. Only hashes are kept in
// configuration.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key must not be empty")
	}
	if len(key) > maxKeyLength {
		return "", fmt.Errorf("key exceeds maximum length of %d bytes", maxKeyLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckKey reports whether key matches hash
func CheckKey(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// validHash reports whether hash is a bcrypt hash
func validHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}
