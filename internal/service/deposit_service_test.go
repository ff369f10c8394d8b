package service

import (
	"context"
	"errors"
	"testing"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type depositTestDeps struct {
	svc      *DepositServiceImpl
	userRepo *mocks.MockUserRepository
	txRepo   *mocks.MockTransactionRepository
	gateway  *mocks.MockPaymentGateway
	auditSvc *mocks.MockAuditService
	ctrl     *gomock.Controller
}

func setupDepositService(t *testing.T) *depositTestDeps {
	ctrl := gomock.NewController(t)
	d := &depositTestDeps{
		userRepo: mocks.NewMockUserRepository(ctrl),
		txRepo:   mocks.NewMockTransactionRepository(ctrl),
		gateway:  mocks.NewMockPaymentGateway(ctrl),
		auditSvc: mocks.NewMockAuditService(ctrl),
		ctrl:     ctrl,
	}
	d.svc = NewDepositService(
		d.userRepo, d.txRepo, d.gateway,
		NewReferenceGenerator(zerolog.Nop()), d.auditSvc, zerolog.Nop(),
	)
	return d
}

func TestDepositService_InitializeDeposit_Success(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	user := &domain.User{ID: userID, Email: "ada@example.com"}

	var pendingRef string
	d.userRepo.EXPECT().GetByID(ctx, userID).Return(user, nil)
	d.txRepo.EXPECT().ReferenceExists(ctx, gomock.Any()).Return(false, nil)
	d.txRepo.EXPECT().CreatePending(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, txn *domain.Transaction) error {
			pendingRef = txn.Reference
			assert.Equal(t, domain.TransactionStatusPending, txn.Status)
			assert.Equal(t, domain.TransactionTypeDeposit, txn.Type)
			assert.Equal(t, int64(25_000), txn.Amount)
			return nil
		})
	d.gateway.EXPECT().Initialize(ctx, int64(25_000), "ada@example.com", gomock.Any()).Return(
		&ports.GatewaySession{Reference: "", AuthorizationURL: "https://checkout.example.com/abc"}, nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	intent, err := d.svc.InitializeDeposit(ctx, userID, 25_000)
	require.NoError(t, err)
	assert.Equal(t, pendingRef, intent.Reference)
	assert.Len(t, intent.Reference, 16)
	assert.Equal(t, "https://checkout.example.com/abc", intent.AuthorizationURL)
}

func TestDepositService_InitializeDeposit_InvalidAmount(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.InitializeDeposit(context.Background(), uuid.New(), 0)
	requireAppError(t, err, "WAL_002")
}

func TestDepositService_InitializeDeposit_GatewayTimeout_LeavesPending(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, Email: "a@b.c"}, nil)
	d.txRepo.EXPECT().ReferenceExists(ctx, gomock.Any()).Return(false, nil)
	// The pending row is created and never rolled back.
	d.txRepo.EXPECT().CreatePending(ctx, gomock.Any()).Return(nil)
	d.gateway.EXPECT().Initialize(ctx, int64(5_000), "a@b.c", gomock.Any()).
		Return(nil, context.DeadlineExceeded)

	_, err := d.svc.InitializeDeposit(ctx, userID, 5_000)
	requireAppError(t, err, "DEP_003")
}

func TestDepositService_InitializeDeposit_GatewayFailure(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, Email: "a@b.c"}, nil)
	d.txRepo.EXPECT().ReferenceExists(ctx, gomock.Any()).Return(false, nil)
	d.txRepo.EXPECT().CreatePending(ctx, gomock.Any()).Return(nil)
	d.gateway.EXPECT().Initialize(ctx, int64(5_000), "a@b.c", gomock.Any()).
		Return(nil, errors.New("gateway said no"))

	_, err := d.svc.InitializeDeposit(ctx, userID, 5_000)
	requireAppError(t, err, "DEP_002")
}

func TestDepositService_InitializeDeposit_UnknownUser(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(nil, nil)

	_, err := d.svc.InitializeDeposit(ctx, userID, 5_000)
	requireAppError(t, err, "AUTH_003")
}

func TestDepositService_GetDepositStatus_Success(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	txn := &domain.Transaction{
		Reference: "DEPREF1234567890",
		UserID:    userID,
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusPending,
		Amount:    10_000,
	}
	d.txRepo.EXPECT().GetByReference(ctx, "DEPREF1234567890").Return(txn, nil)

	status, err := d.svc.GetDepositStatus(ctx, userID, "DEPREF1234567890")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, status.Status)
	assert.Equal(t, int64(10_000), status.Amount)
}

func TestDepositService_GetDepositStatus_UnknownReference(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().GetByReference(ctx, "NOPE").Return(nil, nil)

	_, err := d.svc.GetDepositStatus(ctx, uuid.New(), "NOPE")
	requireAppError(t, err, "DEP_001")
}

func TestDepositService_GetDepositStatus_OtherUsersReference(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	txn := &domain.Transaction{
		Reference: "DEPREF1234567890",
		UserID:    uuid.New(),
		Type:      domain.TransactionTypeDeposit,
		Status:    domain.TransactionStatusSuccess,
		Amount:    10_000,
	}
	d.txRepo.EXPECT().GetByReference(ctx, "DEPREF1234567890").Return(txn, nil)

	// A foreign reference reads as unknown, not forbidden.
	_, err := d.svc.GetDepositStatus(ctx, uuid.New(), "DEPREF1234567890")
	requireAppError(t, err, "DEP_001")
}

func TestDepositService_GetDepositStatus_NotADeposit(t *testing.T) {
	d := setupDepositService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	txn := &domain.Transaction{
		Reference: "TRFREF1234567_OUT",
		UserID:    userID,
		Type:      domain.TransactionTypeTransfer,
		Status:    domain.TransactionStatusSuccess,
		Amount:    -10_000,
	}
	d.txRepo.EXPECT().GetByReference(ctx, "TRFREF1234567_OUT").Return(txn, nil)

	_, err := d.svc.GetDepositStatus(ctx, userID, "TRFREF1234567_OUT")
	requireAppError(t, err, "DEP_004")
}
