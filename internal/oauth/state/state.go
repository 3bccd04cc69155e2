package state

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Payload captures OAuth state metadata.
type Payload struct {
	Provider string `json:"provider"`
	Nonce    string `json:"nonce"`
}

// Encode signs the payload using HS256.
func Encode(secret string, payload Payload, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("oauth state secret missing")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"provider": payload.Provider,
		"nonce":    payload.Nonce,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Decode verifies and extracts the payload.
func Decode(secret string, token string) (*Payload, error) {
	if secret == "" {
		return nil, fmt.Errorf("oauth state secret missing")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("state token invalid")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("state claims invalid")
	}
	return &Payload{
		Provider: claimString(claims, "provider"),
		Nonce:    claimString(claims, "nonce"),
	}, nil
}

// NewNonce returns a random URL-safe nonce.
func NewNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String()
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}
