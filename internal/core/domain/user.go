package domain

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors an identity resolved by the external provider. Users are
// provisioned on first sign-in; a wallet is created in the same act.
type User struct {
	ID        uuid.UUID `json:"id"`
	GoogleID  string    `json:"-"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
