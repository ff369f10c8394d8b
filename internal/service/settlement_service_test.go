package service

import (
	"context"
	"testing"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type settlementTestDeps struct {
	svc        *SettlementServiceImpl
	txRepo     *mocks.MockTransactionRepository
	walletRepo *mocks.MockWalletRepository
	transactor *mocks.MockDBTransactor
	auditSvc   *mocks.MockAuditService
	ctrl       *gomock.Controller
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		auditSvc:   mocks.NewMockAuditService(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewSettlementService(
		d.txRepo, d.walletRepo, d.transactor, d.auditSvc, zerolog.Nop(),
	)
	return d
}

func TestSettlementService_ProcessCallback_SuccessCreditsOnce(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	walletID := uuid.New()
	tx := &mockTx{}

	pending := &domain.Transaction{
		ID:        uuid.New(),
		Reference: "DEPREF1234567890",
		UserID:    userID,
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusPending,
		Amount:    25_000,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "DEPREF1234567890").Return(pending, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(
		&domain.Wallet{ID: walletID, UserID: userID, Balance: 10_000}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, int64(35_000)).Return(nil)
	d.txRepo.EXPECT().Finalize(ctx, tx, pending.ID, domain.TransactionStatusSuccess, int64(25_000)).Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	err := d.svc.ProcessCallback(ctx, "DEPREF1234567890", "success", 25_000)
	require.NoError(t, err)
}

func TestSettlementService_ProcessCallback_ReplayIsNoOp(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	settled := &domain.Transaction{
		ID:        uuid.New(),
		Reference: "DEPREF1234567890",
		UserID:    uuid.New(),
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusSuccess,
		Amount:    25_000,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "DEPREF1234567890").Return(settled, nil)
	// No wallet credit, no finalize: the replay returns success untouched.

	err := d.svc.ProcessCallback(ctx, "DEPREF1234567890", "success", 25_000)
	require.NoError(t, err)
}

func TestSettlementService_ProcessCallback_FailedStatusNoCredit(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	pending := &domain.Transaction{
		ID:        uuid.New(),
		Reference: "DEPREF1234567890",
		UserID:    uuid.New(),
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusPending,
		Amount:    25_000,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "DEPREF1234567890").Return(pending, nil)
	d.txRepo.EXPECT().Finalize(ctx, tx, pending.ID, domain.TransactionStatusFailed, int64(25_000)).Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	err := d.svc.ProcessCallback(ctx, "DEPREF1234567890", "abandoned", 25_000)
	require.NoError(t, err)
}

func TestSettlementService_ProcessCallback_ReconcilesReportedAmount(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	walletID := uuid.New()
	tx := &mockTx{}

	pending := &domain.Transaction{
		ID:        uuid.New(),
		Reference: "DEPREF1234567890",
		UserID:    userID,
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusPending,
		Amount:    25_000,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "DEPREF1234567890").Return(pending, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(
		&domain.Wallet{ID: walletID, UserID: userID, Balance: 0}, nil)
	// The gateway reported 30k, not the locally recorded 25k.
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, int64(30_000)).Return(nil)
	d.txRepo.EXPECT().Finalize(ctx, tx, pending.ID, domain.TransactionStatusSuccess, int64(30_000)).Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	err := d.svc.ProcessCallback(ctx, "DEPREF1234567890", "success", 30_000)
	require.NoError(t, err)
}

func TestSettlementService_ProcessCallback_UnknownReference(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "UNKNOWN").Return(nil, nil)

	err := d.svc.ProcessCallback(ctx, "UNKNOWN", "success", 1_000)
	requireAppError(t, err, "DEP_001")
}

func TestSettlementService_ProcessCallback_TransferReferenceRejected(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	transfer := &domain.Transaction{
		ID:        uuid.New(),
		Reference: "TRFREF1234567_OUT",
		UserID:    uuid.New(),
		Type:      domain.TransactionTypeTransfer,
		Status:    domain.TransactionStatusSuccess,
		Amount:    -1_000,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "TRFREF1234567_OUT").Return(transfer, nil)

	err := d.svc.ProcessCallback(ctx, "TRFREF1234567_OUT", "success", 1_000)
	requireAppError(t, err, "DEP_004")
}

func TestSettlementService_ProcessCallback_ZeroReportedAmountKeepsLocal(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	walletID := uuid.New()
	tx := &mockTx{}

	pending := &domain.Transaction{
		ID:        uuid.New(),
		Reference: "DEPREF1234567890",
		UserID:    userID,
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusPending,
		Amount:    25_000,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().GetByReferenceForUpdate(ctx, tx, "DEPREF1234567890").Return(pending, nil)
	d.walletRepo.EXPECT().GetByUserIDForUpdate(ctx, tx, userID).Return(
		&domain.Wallet{ID: walletID, UserID: userID, Balance: 0}, nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, walletID, int64(25_000)).Return(nil)
	d.txRepo.EXPECT().Finalize(ctx, tx, pending.ID, domain.TransactionStatusSuccess, int64(25_000)).Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	err := d.svc.ProcessCallback(ctx, "DEPREF1234567890", "success", 0)
	require.NoError(t, err)
}
