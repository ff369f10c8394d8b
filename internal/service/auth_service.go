package service

import (
	"context"
	"fmt"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	identity   ports.IdentityVerifier
	tokenSvc   ports.TokenService
	refGen     *ReferenceGenerator
	auditSvc   ports.AuditService
	log        zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	identity ports.IdentityVerifier,
	tokenSvc ports.TokenService,
	refGen *ReferenceGenerator,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		identity:   identity,
		tokenSvc:   tokenSvc,
		refGen:     refGen,
		auditSvc:   auditSvc,
		log:        log,
	}
}

// SignIn exchanges a provider ID token for a session JWT. First contact
// provisions the user and an empty wallet with a fresh 10-digit number.
func (s *AuthServiceImpl) SignIn(ctx context.Context, idToken string) (*ports.SignInResult, error) {
	ident, err := s.identity.Verify(ctx, idToken)
	if err != nil {
		return nil, apperror.ErrIdentityRejected(err)
	}

	user, err := s.userRepo.GetByGoogleID(ctx, ident.Subject)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}

	now := time.Now().UTC()
	if user == nil {
		user = &domain.User{
			ID:        uuid.New(),
			GoogleID:  ident.Subject,
			Email:     ident.Email,
			Name:      ident.Name,
			CreatedAt: now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
		}

		walletNumber, err := s.refGen.WalletNumber(ctx, s.walletRepo.WalletNumberExists)
		if err != nil {
			return nil, err
		}
		wallet := &domain.Wallet{
			ID:           uuid.New(),
			UserID:       user.ID,
			WalletNumber: walletNumber,
			Balance:      0,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.walletRepo.Create(ctx, wallet); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}

		s.log.Info().
			Str("user_id", user.ID.String()).
			Str("wallet_number", walletNumber).
			Msg("provisioned new user and wallet")
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	userID := user.ID
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.AuditActionSignIn,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		CreatedAt:    now,
	})

	return &ports.SignInResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}
