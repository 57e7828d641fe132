// Package token issues and verifies session stamps: opaque signed claims
// handed out on successful authorization and checked by the transport
// layer on every subsequent request.
package token

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lexora.org/internal/account"
)

const (
	issuer            = "lexora"
	secretEnvVariable = "LEXORA_AUTH_SECRET"

	// DefaultTTL is the fixed validity window of a session stamp.
	DefaultTTL = 72 * time.Hour
)

var (
	errMissingSecret = errors.New("auth secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// ErrInvalidToken indicates the stamp failed validation.
var ErrInvalidToken = errors.New("invalid token")

// FirmContext identifies the firm a session is scoped to.
type FirmContext struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Identity is everything a stamp encodes about its holder.
type Identity struct {
	AccountID   string
	Email       string
	Kind        account.Kind
	Status      account.Status
	Permissions account.PermissionSet
	Firm        *FirmContext
}

// Claims are the verified contents of a session stamp.
type Claims struct {
	Email       string                `json:"email"`
	Kind        account.Kind          `json:"kind"`
	Status      account.Status        `json:"status,omitempty"`
	Permissions account.PermissionSet `json:"permissions"`
	Firm        *FirmContext          `json:"firm,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a session stamp for the given identity using HS256.
func Issue(id Identity, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(id.AccountID) == "" {
		return "", time.Time{}, errors.New("account id is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email:       id.Email,
		Kind:        id.Kind,
		Status:      id.Status,
		Permissions: id.Permissions,
		Firm:        id.Firm,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAndValidate verifies the stamp signature and required claims.
func ParseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := time.Now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	if _, err := account.ParseKind(string(claims.Kind)); err != nil {
		return err
	}
	return nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret.err = errMissingSecret
		secret.ready = true
		return nil, secret.err
	}
	secret.value = []byte(raw)
	secret.err = nil
	secret.ready = true
	return secret.value, nil
}

// ResetSecretForTests clears the cached secret value. Only intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}
