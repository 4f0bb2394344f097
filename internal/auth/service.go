package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix starts every generated admin API key.
const KeyPrefix = "iaap_"

// ErrInvalidKey is returned when the provided API key does not match.
var ErrInvalidKey = errors.New("invalid API key")

// Service authenticates admin API keys against a configured bcrypt hash.
type Service struct {
	hash []byte
}

// NewService creates a new auth Service for the given bcrypt hash.
func NewService(hash string) *Service {
	return &Service{hash: []byte(hash)}
}

// GenerateKey creates a new API key. Returns the raw key and its bcrypt hash.
// The raw key is: 32 random bytes -> base64url -> prepend "iaap_".
func GenerateKey(cost int) (rawKey, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	rawKey = KeyPrefix + base64.RawURLEncoding.EncodeToString(b)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawKey), cost)
	if err != nil {
		return "", "", fmt.Errorf("hashing key: %w", err)
	}

	return rawKey, string(hashBytes), nil
}

// Authenticate resolves a raw API key to the admin Identity.
func (s *Service) Authenticate(rawKey string) (*Identity, error) {
	if len(s.hash) == 0 || len(rawKey) < len(KeyPrefix)+8 {
		return nil, ErrInvalidKey
	}

	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(rawKey)); err != nil {
		return nil, ErrInvalidKey
	}

	return &Identity{
		Name:      "admin",
		KeyPrefix: rawKey[:len(KeyPrefix)+4],
	}, nil
}
