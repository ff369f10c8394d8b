package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, user_id, wallet_number, balance, created_at, updated_at`

// Create inserts a new wallet.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, wallet_number, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.UserID, w.WalletNumber, w.Balance, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByUserID fetches a wallet by owner (non-locking read).
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, userID), "get wallet by user id")
}

// GetByWalletNumber fetches a wallet by its public number (non-locking read).
func (r *WalletRepo) GetByWalletNumber(ctx context.Context, walletNumber string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE wallet_number = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, walletNumber), "get wallet by number")
}

// WalletNumberExists reports whether a wallet number is already assigned.
func (r *WalletRepo) WalletNumberExists(ctx context.Context, walletNumber string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM wallets WHERE wallet_number = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, walletNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("check wallet number: %w", err)
	}
	return exists, nil
}

// GetByUserIDForUpdate fetches a wallet by owner with a FOR UPDATE row lock.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, userID), "lock wallet by user id")
}

// GetByWalletNumberForUpdate fetches a wallet by number with a FOR UPDATE row lock.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByWalletNumberForUpdate(ctx context.Context, tx pgx.Tx, walletNumber string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE wallet_number = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, walletNumber), "lock wallet by number")
}

// GetByIDForUpdate fetches a wallet by UUID with a FOR UPDATE row lock.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, id), "lock wallet by id")
}

// UpdateBalance sets a wallet's balance. Callers must hold the row lock.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64) error {
	query := `UPDATE wallets SET balance = $2, updated_at = $3 WHERE id = $1`

	tag, err := tx.Exec(ctx, query, walletID, newBalance, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update balance: wallet %s not found", walletID)
	}
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.WalletNumber, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
