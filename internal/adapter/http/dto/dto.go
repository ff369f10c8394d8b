package dto

// SignInRequest is the request body for Google sign-in.
type SignInRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// SignInResponse is the session issued after successful sign-in.
type SignInResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	RecipientWalletNumber string `json:"recipient_wallet_number" binding:"required,len=10,numeric"`
	Amount                int64  `json:"amount" binding:"required"`
}

// TransferResponse reports a completed transfer.
type TransferResponse struct {
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"`
	SenderBalance int64  `json:"sender_balance"`
}

// DepositRequest is the request body for initializing a deposit.
type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// DepositResponse carries the gateway checkout handle.
type DepositResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// DepositStatusResponse is the read-only state of a deposit.
type DepositStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

// BalanceResponse is the response for balance query.
type BalanceResponse struct {
	Balance      int64  `json:"balance"`
	WalletNumber string `json:"wallet_number"`
}

// CreateKeyRequest is the request body for issuing an API key.
type CreateKeyRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=100"`
	Expiry      string   `json:"expiry" binding:"required"`
	Permissions []string `json:"permissions" binding:"required,min=1,dive,permission"`
}

// RolloverKeyRequest is the request body for rolling over an expired key.
type RolloverKeyRequest struct {
	Expiry string `json:"expiry" binding:"required"`
}

// APIKeyResponse describes a key without its secret.
type APIKeyResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	ExpiresAt   string   `json:"expires_at"`
	Revoked     bool     `json:"revoked"`
	CreatedAt   string   `json:"created_at"`
}

// IssuedKeyResponse is returned exactly once at creation and carries the
// plaintext secret.
type IssuedKeyResponse struct {
	Key    string         `json:"key"`
	Detail APIKeyResponse `json:"detail"`
}

// TransactionResponse is the response body for a ledger entry.
type TransactionResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	CreatedAt string `json:"created_at"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// WebhookEvent is the gateway callback envelope. Only the fields the
// settlement path consumes are decoded.
type WebhookEvent struct {
	Event string           `json:"event"`
	Data  WebhookEventData `json:"data"`
}

// WebhookEventData is the transaction payload inside a gateway event.
type WebhookEventData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}
