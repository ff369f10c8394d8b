package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionSignIn      AuditAction = "SIGN_IN"
	AuditActionTransfer    AuditAction = "TRANSFER"
	AuditActionDepositInit AuditAction = "DEPOSIT_INIT"
	AuditActionSettlement  AuditAction = "SETTLEMENT"
	AuditActionKeyCreate   AuditAction = "KEY_CREATE"
	AuditActionKeyRollover AuditAction = "KEY_ROLLOVER"
	AuditActionKeyRevoke   AuditAction = "KEY_REVOKE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
