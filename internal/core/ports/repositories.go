package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// locking; balance mutation is only possible while holding the row lock.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByWalletNumber(ctx context.Context, walletNumber string) (*domain.Wallet, error)
	WalletNumberExists(ctx context.Context, walletNumber string) (bool, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	GetByWalletNumberForUpdate(ctx context.Context, tx pgx.Tx, walletNumber string) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64) error
}

// TransactionRepository defines persistence operations for the
// append-only transaction ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	// CreatePending inserts a transaction outside any caller-held transaction;
	// used by deposit initiation, which must commit locally before the
	// gateway call.
	CreatePending(ctx context.Context, transaction *domain.Transaction) error
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	// Finalize persists a terminal status transition, optionally reconciling
	// the stored amount with the gateway-reported one.
	Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, amount int64) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error)
}

// APIKeyRepository defines persistence operations for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	CountActiveByOwner(ctx context.Context, userID uuid.UUID) (int64, error)
	// Revoke flips the one-way revoked flag. Reports whether a row changed.
	Revoke(ctx context.Context, id uuid.UUID) (bool, error)
	// CreateAndRevoke atomically activates the replacement key and revokes
	// its predecessor (rollover).
	CreateAndRevoke(ctx context.Context, newKey *domain.APIKey, revokeID uuid.UUID) error
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
