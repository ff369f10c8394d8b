package domain

import (
	"time"

	"github.com/google/uuid"
)

// Permission is a scope an API key may carry.
type Permission string

const (
	PermissionRead     Permission = "read"
	PermissionDeposit  Permission = "deposit"
	PermissionTransfer Permission = "transfer"
)

// MaxActiveAPIKeys is the quota of non-revoked keys per user.
const MaxActiveAPIKeys = 5

// APIKey is a scoped credential. Only the SHA-256 hex hash of the secret is
// stored; the plaintext is returned exactly once at creation. Revocation is
// one-way and keys are never physically deleted.
type APIKey struct {
	ID          uuid.UUID    `json:"id"`
	KeyHash     string       `json:"-"`
	UserID      uuid.UUID    `json:"user_id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Revoked     bool         `json:"revoked"`
	CreatedAt   time.Time    `json:"created_at"`
}

// IsExpired returns true if the key's expiry is before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt.Before(now)
}

// IsUsable returns true if the key is neither revoked nor expired.
func (k *APIKey) IsUsable(now time.Time) bool {
	return !k.Revoked && !k.IsExpired(now)
}

// HasPermission returns true if the key carries the given scope.
func (k *APIKey) HasPermission(p Permission) bool {
	for _, have := range k.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// ValidPermission reports whether s names a known permission.
func ValidPermission(s string) bool {
	switch Permission(s) {
	case PermissionRead, PermissionDeposit, PermissionTransfer:
		return true
	}
	return false
}
