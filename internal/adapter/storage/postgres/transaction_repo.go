package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository over the
// append-only transactions table.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txColumns = `id, reference, user_id, type, status, amount, created_at`

// Create inserts a ledger entry inside the caller's transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, reference, user_id, type, status, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Reference, t.UserID, t.Type, t.Status, t.Amount, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// CreatePending inserts a ledger entry outside any caller-held transaction.
// Deposit initiation uses this so the PENDING row is durable before the
// gateway is contacted.
func (r *TransactionRepo) CreatePending(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, reference, user_id, type, status, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.Reference, t.UserID, t.Type, t.Status, t.Amount, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pending transaction: %w", err)
	}
	return nil
}

// GetByReference fetches a transaction by reference (non-locking read).
func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE reference = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, reference), "get transaction by reference")
}

// GetByReferenceForUpdate fetches a transaction with a FOR UPDATE row lock.
// This MUST be called within a transaction; it is the settlement
// idempotency gate.
func (r *TransactionRepo) GetByReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, reference), "lock transaction by reference")
}

// ReferenceExists reports whether a reference is already taken.
func (r *TransactionRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE reference = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return exists, nil
}

// Finalize moves a transaction to a terminal status and reconciles its
// amount. Callers must hold the row lock.
func (r *TransactionRepo) Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, amount int64) error {
	query := `UPDATE transactions SET status = $2, amount = $3 WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, status, amount)
	if err != nil {
		return fmt.Errorf("finalize transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize transaction: %s not found", id)
	}
	return nil
}

// ListByUser returns a page of a user's ledger entries, newest first,
// along with the total count.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE user_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.Reference, &t.UserID, &t.Type, &t.Status, &t.Amount, &t.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, total, nil
}

func scanTransaction(row pgx.Row, op string) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(&t.ID, &t.Reference, &t.UserID, &t.Type, &t.Status, &t.Amount, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}
