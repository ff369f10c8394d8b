package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
)

// SignatureService verifies inbound settlement callbacks: HMAC-SHA512 over
// the raw body, hex digest, constant-time compare.
type SignatureService interface {
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
}

// TokenService handles JWT session token operations.
type TokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// IdentityVerifier validates an external identity-provider token and
// returns the asserted identity. OAuth mechanics live behind this boundary.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*ExternalIdentity, error)
}

// ExternalIdentity is the provider-asserted identity of a caller.
type ExternalIdentity struct {
	Subject string // provider-scoped stable ID
	Email   string
	Name    string
}

// PaymentGateway opens hosted payment sessions with the external processor.
type PaymentGateway interface {
	// Initialize opens a payment session for the given reference and amount
	// (kobo). The call is time-bounded by the client; a timeout is surfaced
	// distinctly from a gateway-declared failure.
	Initialize(ctx context.Context, amountKobo int64, email, reference string) (*GatewaySession, error)
}

// GatewaySession is the gateway's handle for a hosted payment page.
type GatewaySession struct {
	Reference        string
	AuthorizationURL string
}

// APIKeyCache is a read-through cache for verified API keys, keyed by hash.
type APIKeyCache interface {
	Get(ctx context.Context, keyHash string) (*domain.APIKey, error)
	Set(ctx context.Context, key *domain.APIKey, ttl time.Duration) error
	Invalidate(ctx context.Context, keyHash string) error
}

// --- Service Ports (Business Logic) ---

// TransferService moves money between two wallets atomically.
type TransferService interface {
	Transfer(ctx context.Context, senderUserID uuid.UUID, recipientWalletNumber string, amountKobo int64) (*TransferResult, error)
}

// TransferResult reports the two ledger entries of a completed transfer.
type TransferResult struct {
	Reference     string
	OutgoingTx    *domain.Transaction
	IncomingTx    *domain.Transaction
	SenderBalance int64
}

// DepositService creates pending deposit intents against the gateway.
type DepositService interface {
	InitializeDeposit(ctx context.Context, userID uuid.UUID, amountKobo int64) (*DepositIntent, error)
	GetDepositStatus(ctx context.Context, userID uuid.UUID, reference string) (*DepositStatus, error)
}

// DepositIntent is returned to the caller to complete payment externally.
type DepositIntent struct {
	Reference        string
	AuthorizationURL string
}

// DepositStatus is the read-only state of a deposit.
type DepositStatus struct {
	Reference string
	Status    domain.TransactionStatus
	Amount    int64 // absolute value, kobo
}

// SettlementService reconciles asynchronous gateway callbacks exactly once.
type SettlementService interface {
	ProcessCallback(ctx context.Context, reference, externalStatus string, reportedAmountKobo int64) error
}

// APIKeyService manages the credential lifecycle.
type APIKeyService interface {
	Issue(ctx context.Context, userID uuid.UUID, name, expirySpec string, perms []domain.Permission) (*IssuedKey, error)
	Rollover(ctx context.Context, userID, keyID uuid.UUID, expirySpec string) (*IssuedKey, error)
	Revoke(ctx context.Context, userID, keyID uuid.UUID) error
	Verify(ctx context.Context, plaintext string) (*domain.APIKey, error)
	ListKeys(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
}

// IssuedKey carries the plaintext secret exactly once, at creation.
type IssuedKey struct {
	PlaintextKey string
	Key          *domain.APIKey
}

// AuthService exchanges a provider token for a session, provisioning the
// user and wallet on first contact.
type AuthService interface {
	SignIn(ctx context.Context, idToken string) (*SignInResult, error)
}

// SignInResult is the session handed back after identity verification.
type SignInResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// HistoryService serves read-only balance and ledger queries.
type HistoryService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, string, error) // balance, walletNumber
	ListTransactions(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error)
}

// AuditService records audit entries (best-effort, async).
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
