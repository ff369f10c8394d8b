package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "DEPOSIT"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// TransactionStatus represents the lifecycle state of a transaction.
// Transitions are monotonic: once SUCCESS or FAILED the record is immutable.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Reference suffixes for the two legs of a transfer, derived from one root.
const (
	RefSuffixOut = "_OUT"
	RefSuffixIn  = "_IN"
)

// Transaction is an append-only ledger entry. Amount is signed:
// negative = outgoing, positive = incoming, always in kobo.
type Transaction struct {
	ID        uuid.UUID         `json:"id"`
	Reference string            `json:"reference"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
	Amount    int64             `json:"amount"`
	CreatedAt time.Time         `json:"created_at"`
}

// IsTerminal returns true if the transaction is in a final state.
// This is the settlement idempotency boundary: a callback for a terminal
// transaction must be a no-op.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSuccess || t.Status == TransactionStatusFailed
}

// OutgoingRef derives the sender-leg reference of a transfer root.
func OutgoingRef(root string) string { return root + RefSuffixOut }

// IncomingRef derives the recipient-leg reference of a transfer root.
func IncomingRef(root string) string { return root + RefSuffixIn }
