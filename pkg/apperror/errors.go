package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet & Transfer (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New("WAL_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("WAL_002", "Amount must be a positive integer in kobo", http.StatusBadRequest)
}

func ErrRecipientNotFound() *AppError {
	return New("WAL_003", "Recipient wallet not found", http.StatusNotFound)
}

func ErrSelfTransfer() *AppError {
	return New("WAL_004", "Cannot transfer to own wallet", http.StatusConflict)
}

func ErrWalletNotFound() *AppError {
	return New("WAL_005", "Wallet not found", http.StatusNotFound)
}

// ---- Deposit & Settlement (DEP) ----

func ErrUnknownReference() *AppError {
	return New("DEP_001", "Transaction reference not found", http.StatusNotFound)
}

func ErrGatewayFailure(err error) *AppError {
	return Wrap("DEP_002", "Payment gateway rejected the request", http.StatusBadGateway, err)
}

// ErrGatewayTimeout signals that the gateway call timed out. The local
// transaction stays PENDING; this is not a payment failure.
func ErrGatewayTimeout(err error) *AppError {
	return Wrap("DEP_003", "Payment gateway timed out, deposit is pending", http.StatusGatewayTimeout, err)
}

func ErrNotADeposit() *AppError {
	return New("DEP_004", "Transaction is not a deposit", http.StatusBadRequest)
}

// ---- API Key Lifecycle (KEY) ----

func ErrKeyQuotaExceeded() *AppError {
	return New("KEY_001", "Maximum of 5 active API keys allowed per user", http.StatusConflict)
}

func ErrInvalidExpiry() *AppError {
	return New("KEY_002", "Expiry must match {n}{H|D|M|Y}, e.g. 12H, 30D", http.StatusBadRequest)
}

func ErrKeyNotFound() *AppError {
	return New("KEY_003", "API key not found", http.StatusNotFound)
}

func ErrKeyNotExpired() *AppError {
	return New("KEY_004", "API key is not expired; only expired keys can be rolled over", http.StatusConflict)
}

func ErrKeyAlreadyRevoked() *AppError {
	return New("KEY_005", "API key is already revoked", http.StatusConflict)
}

func ErrInvalidAPIKey() *AppError {
	return New("KEY_006", "Invalid, expired or revoked API key", http.StatusUnauthorized)
}

func ErrKeyNotOwned() *AppError {
	return New("KEY_007", "API key does not belong to the caller", http.StatusForbidden)
}

func ErrPermissionDenied(perm string) *AppError {
	return New("KEY_008", fmt.Sprintf("Insufficient permissions, %s required", perm), http.StatusForbidden)
}

// ---- Reference Generation (REF) ----

// ErrReferenceExhausted signals the bounded retry loop ran out of attempts.
// Operationally near-impossible; treated as a retryable internal error.
func ErrReferenceExhausted() *AppError {
	return New("REF_001", "Unable to generate a unique reference", http.StatusInternalServerError)
}

// ---- Security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrMissingSignature() *AppError {
	return New("SEC_002", "Missing webhook signature", http.StatusUnauthorized)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrIdentityRejected(err error) *AppError {
	return Wrap("AUTH_002", "Identity token could not be verified", http.StatusUnauthorized, err)
}

func ErrUserNotFound() *AppError {
	return New("AUTH_003", "User not found", http.StatusNotFound)
}

// ---- Validation (VAL) ----

// Validation returns a generic request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
