package auth

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/salon-inventory/internal/shared"
)

// Scopes granted to API keys.
const (
	ScopeInventoryView = "inventory.view"
	ScopeInventoryEdit = "inventory.edit"
	ScopeAll           = "*"
)

// APIKey is a tenant credential. Only the bcrypt hash of the secret is stored.
type APIKey struct {
	ID         string
	BusinessID int64
	UserID     int64
	Name       string
	SecretHash []byte
	Scopes     []string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// Active reports whether the key can authenticate.
func (k APIKey) Active() bool {
	return k.RevokedAt == nil
}

// IssuedKey is returned once on creation; Token is never persisted.
type IssuedKey struct {
	Key   APIKey
	Token string
}

var (
	// ErrKeyNotFound indicates an unknown key id.
	ErrKeyNotFound = fmt.Errorf("%w: auth: api key not found", shared.ErrUnauthorized)
	// ErrInvalidCredentials indicates a malformed token or a secret mismatch.
	ErrInvalidCredentials = fmt.Errorf("%w: auth: invalid credentials", shared.ErrUnauthorized)
	// ErrUnknownKey indicates a management call named a key outside the tenant.
	ErrUnknownKey = fmt.Errorf("%w: auth: api key not found", shared.ErrNotFound)
	// ErrKeyRevoked indicates the key was revoked.
	ErrKeyRevoked = fmt.Errorf("%w: auth: api key revoked", shared.ErrUnauthorized)
)
