package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletNumberLength is the fixed length of the numeric wallet number.
const WalletNumberLength = 10

// Wallet holds a user's custodial balance in kobo (smallest currency unit).
// Balance is never negative and is mutated only by the transfer and
// settlement engines inside a database transaction holding the row lock.
type Wallet struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	WalletNumber string    `json:"wallet_number"`
	Balance      int64     `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanDebit returns true if the wallet holds at least amount kobo.
func (w *Wallet) CanDebit(amount int64) bool {
	return amount > 0 && w.Balance >= amount
}
