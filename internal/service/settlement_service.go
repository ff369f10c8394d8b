package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// gatewayStatusSuccess is the external status value that settles a deposit
// as SUCCESS; every other value settles it as FAILED.
const gatewayStatusSuccess = "success"

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	txRepo     ports.TransactionRepository
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	auditSvc   ports.AuditService
	log        zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		transactor: transactor,
		auditSvc:   auditSvc,
		log:        log,
	}
}

// ProcessCallback settles a deposit exactly once. The transaction row is
// locked FOR UPDATE; if it is already terminal the callback is a replay and
// returns success without touching anything. The status transition and the
// wallet credit commit atomically.
func (s *SettlementServiceImpl) ProcessCallback(ctx context.Context, reference, externalStatus string, reportedAmountKobo int64) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByReferenceForUpdate(ctx, dbTx, reference)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return apperror.ErrUnknownReference()
	}
	if txn.Type != domain.TransactionTypeDeposit {
		return apperror.ErrNotADeposit()
	}

	if txn.IsTerminal() {
		s.log.Info().
			Str("reference", reference).
			Str("status", string(txn.Status)).
			Msg("settlement replay for terminal transaction, ignoring")
		return nil
	}

	// Trust the gateway-reported amount when it carries one.
	amount := txn.Amount
	if reportedAmountKobo > 0 {
		amount = reportedAmountKobo
	}

	status := domain.TransactionStatusFailed
	if strings.EqualFold(externalStatus, gatewayStatusSuccess) {
		status = domain.TransactionStatusSuccess
	}

	if status == domain.TransactionStatusSuccess {
		wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, dbTx, txn.UserID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
		}
		if wallet == nil {
			return apperror.ErrWalletNotFound()
		}
		if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.ID, wallet.Balance+amount); err != nil {
			return apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
		}
	}

	if err := s.txRepo.Finalize(ctx, dbTx, txn.ID, status, amount); err != nil {
		return apperror.InternalError(fmt.Errorf("finalize transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	userID := txn.UserID
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.AuditActionSettlement,
		ResourceType: "transaction",
		ResourceID:   reference,
		Details:      fmt.Sprintf(`{"status":%q,"amount":%d}`, status, amount),
		CreatedAt:    time.Now().UTC(),
	})

	s.log.Info().
		Str("reference", reference).
		Str("status", string(status)).
		Int64("amount", amount).
		Msg("deposit settled")

	return nil
}
