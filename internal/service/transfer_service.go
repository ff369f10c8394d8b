package service

import (
	"context"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	refGen     *ReferenceGenerator
	transactor ports.DBTransactor
	auditSvc   ports.AuditService
	log        zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	refGen *ReferenceGenerator,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		refGen:     refGen,
		transactor: transactor,
		auditSvc:   auditSvc,
		log:        log,
	}
}

// Transfer moves amountKobo from the sender's wallet to the wallet identified
// by recipientWalletNumber. Both balance changes and both ledger entries
// commit in a single database transaction, with the two wallet rows locked
// in deterministic ID order so that opposing transfers cannot deadlock.
func (s *TransferServiceImpl) Transfer(ctx context.Context, senderUserID uuid.UUID, recipientWalletNumber string, amountKobo int64) (*ports.TransferResult, error) {
	if amountKobo <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	// Resolve both wallets before taking any locks.
	sender, err := s.walletRepo.GetByUserID(ctx, senderUserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get sender wallet: %w", err))
	}
	if sender == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	// Early rejection before the recipient lookup. The authoritative check
	// happens again under the row lock below.
	if !sender.CanDebit(amountKobo) {
		return nil, apperror.ErrInsufficientFunds()
	}

	recipient, err := s.walletRepo.GetByWalletNumber(ctx, recipientWalletNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get recipient wallet: %w", err))
	}
	if recipient == nil {
		return nil, apperror.ErrRecipientNotFound()
	}

	if sender.ID == recipient.ID {
		return nil, apperror.ErrSelfTransfer()
	}

	// Unique across both ledger legs.
	reference, err := s.refGen.TransferReference(ctx, s.txRepo.ReferenceExists)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock the two rows in ID order, then re-read state under the locks.
	sender, recipient, err = s.lockPair(ctx, dbTx, sender.ID, recipient.ID)
	if err != nil {
		return nil, err
	}

	if !sender.CanDebit(amountKobo) {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.walletRepo.UpdateBalance(ctx, dbTx, sender.ID, sender.Balance-amountKobo); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit sender: %w", err))
	}
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, recipient.ID, recipient.Balance+amountKobo); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit recipient: %w", err))
	}

	now := time.Now().UTC()
	outTx := &domain.Transaction{
		ID:        uuid.New(),
		Reference: domain.OutgoingRef(reference),
		UserID:    sender.UserID,
		Type:      domain.TransactionTypeTransfer,
		Status:    domain.TransactionStatusSuccess,
		Amount:    -amountKobo,
		CreatedAt: now,
	}
	inTx := &domain.Transaction{
		ID:        uuid.New(),
		Reference: domain.IncomingRef(reference),
		UserID:    recipient.UserID,
		Type:      domain.TransactionTypeTransfer,
		Status:    domain.TransactionStatusSuccess,
		Amount:    amountKobo,
		CreatedAt: now,
	}

	if err := s.txRepo.Create(ctx, dbTx, outTx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create outgoing entry: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, inTx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create incoming entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	senderUID := sender.UserID
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &senderUID,
		Action:       domain.AuditActionTransfer,
		ResourceType: "transaction",
		ResourceID:   reference,
		Details:      fmt.Sprintf(`{"amount":%d,"recipient_wallet":%q}`, amountKobo, recipient.WalletNumber),
		CreatedAt:    now,
	})

	s.log.Info().
		Str("reference", reference).
		Str("sender_wallet", sender.WalletNumber).
		Str("recipient_wallet", recipient.WalletNumber).
		Int64("amount", amountKobo).
		Msg("transfer completed")

	return &ports.TransferResult{
		Reference:     reference,
		OutgoingTx:    outTx,
		IncomingTx:    inTx,
		SenderBalance: sender.Balance - amountKobo,
	}, nil
}

// lockPair acquires FOR UPDATE locks on both wallets in ascending ID order
// and returns the fresh rows as (sender, recipient).
func (s *TransferServiceImpl) lockPair(ctx context.Context, dbTx pgx.Tx, senderID, recipientID uuid.UUID) (*domain.Wallet, *domain.Wallet, error) {
	first, second := senderID, recipientID
	if second.String() < first.String() {
		first, second = second, first
	}

	w1, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, first)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	w2, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, second)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if w1 == nil || w2 == nil {
		return nil, nil, apperror.ErrWalletNotFound()
	}

	if w1.ID == senderID {
		return w1, w2, nil
	}
	return w2, w1, nil
}
