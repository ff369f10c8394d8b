package service

import (
	"context"
	"fmt"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// HistoryServiceImpl implements ports.HistoryService.
type HistoryServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
}

// NewHistoryService creates a new HistoryServiceImpl.
func NewHistoryService(walletRepo ports.WalletRepository, txRepo ports.TransactionRepository) *HistoryServiceImpl {
	return &HistoryServiceImpl{walletRepo: walletRepo, txRepo: txRepo}
}

// GetBalance returns the current balance and wallet number for a user.
func (s *HistoryServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int64, string, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, "", apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return 0, "", apperror.ErrWalletNotFound()
	}
	return wallet.Balance, wallet.WalletNumber, nil
}

// ListTransactions returns a page of the user's ledger, newest first.
func (s *HistoryServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	txns, total, err := s.txRepo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}
