package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DepositServiceImpl implements ports.DepositService.
type DepositServiceImpl struct {
	userRepo ports.UserRepository
	txRepo   ports.TransactionRepository
	gateway  ports.PaymentGateway
	refGen   *ReferenceGenerator
	auditSvc ports.AuditService
	log      zerolog.Logger
}

// NewDepositService creates a new DepositServiceImpl.
func NewDepositService(
	userRepo ports.UserRepository,
	txRepo ports.TransactionRepository,
	gateway ports.PaymentGateway,
	refGen *ReferenceGenerator,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *DepositServiceImpl {
	return &DepositServiceImpl{
		userRepo: userRepo,
		txRepo:   txRepo,
		gateway:  gateway,
		refGen:   refGen,
		auditSvc: auditSvc,
		log:      log,
	}
}

// InitializeDeposit records a PENDING deposit and opens a gateway session.
// The PENDING row is committed before the gateway call: if the gateway times
// out or fails, the row stays PENDING so a late settlement callback can still
// find it. Money only moves at settlement, never here.
func (s *DepositServiceImpl) InitializeDeposit(ctx context.Context, userID uuid.UUID, amountKobo int64) (*ports.DepositIntent, error) {
	if amountKobo <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrUserNotFound()
	}

	reference, err := s.refGen.TransactionReference(ctx, s.txRepo.ReferenceExists)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pending := &domain.Transaction{
		ID:        uuid.New(),
		Reference: reference,
		UserID:    userID,
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusPending,
		Amount:    amountKobo,
		CreatedAt: now,
	}
	if err := s.txRepo.CreatePending(ctx, pending); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create pending deposit: %w", err))
	}

	session, err := s.gateway.Initialize(ctx, amountKobo, user.Email, reference)
	if err != nil {
		// The PENDING row stays either way; settlement decides its fate.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.log.Warn().Str("reference", reference).Msg("gateway initialize timed out, deposit left pending")
			return nil, apperror.ErrGatewayTimeout(err)
		}
		return nil, apperror.ErrGatewayFailure(err)
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.AuditActionDepositInit,
		ResourceType: "transaction",
		ResourceID:   reference,
		Details:      fmt.Sprintf(`{"amount":%d}`, amountKobo),
		CreatedAt:    now,
	})

	s.log.Info().
		Str("reference", reference).
		Int64("amount", amountKobo).
		Msg("deposit initialized")

	return &ports.DepositIntent{
		Reference:        reference,
		AuthorizationURL: session.AuthorizationURL,
	}, nil
}

// GetDepositStatus returns the current state of a caller-owned deposit.
// References belonging to other users read as unknown.
func (s *DepositServiceImpl) GetDepositStatus(ctx context.Context, userID uuid.UUID, reference string) (*ports.DepositStatus, error) {
	txn, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil || txn.UserID != userID {
		return nil, apperror.ErrUnknownReference()
	}
	if txn.Type != domain.TransactionTypeDeposit {
		return nil, apperror.ErrNotADeposit()
	}

	amount := txn.Amount
	if amount < 0 {
		amount = -amount
	}

	return &ports.DepositStatus{
		Reference: txn.Reference,
		Status:    txn.Status,
		Amount:    amount,
	}, nil
}
