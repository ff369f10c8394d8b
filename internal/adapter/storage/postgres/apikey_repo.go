package postgres

import (
	"context"
	"errors"
	"fmt"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// APIKeyRepo implements ports.APIKeyRepository.
type APIKeyRepo struct {
	pool Pool
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(pool Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

const apiKeyColumns = `id, key_hash, user_id, name, permissions, expires_at, revoked, created_at`

const insertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, user_id, name, permissions, expires_at, revoked, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Create inserts a new API key row.
func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	_, err := r.pool.Exec(ctx, insertAPIKeySQL,
		k.ID, k.KeyHash, k.UserID, k.Name, permStrings(k.Permissions),
		k.ExpiresAt, k.Revoked, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetByID fetches a key by UUID.
func (r *APIKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	return scanAPIKey(r.pool.QueryRow(ctx, query, id), "get api key by id")
}

// GetByHash fetches a key by the SHA-256 digest of its secret.
func (r *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`
	return scanAPIKey(r.pool.QueryRow(ctx, query, keyHash), "get api key by hash")
}

// ListByOwner returns every key ever issued to a user, newest first.
func (r *APIKeyRepo) ListByOwner(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var out []domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		var perms []string
		if err := rows.Scan(&k.ID, &k.KeyHash, &k.UserID, &k.Name, &perms,
			&k.ExpiresAt, &k.Revoked, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		k.Permissions = permDomain(perms)
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return out, nil
}

// CountActiveByOwner counts a user's non-revoked keys. Expired keys count
// until revoked or rolled over; the quota is on live credentials, not
// usable ones.
func (r *APIKeyRepo) CountActiveByOwner(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM api_keys WHERE user_id = $1 AND revoked = FALSE`

	var count int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active api keys: %w", err)
	}
	return count, nil
}

// Revoke flips the one-way revoked flag. Reports whether a row changed,
// so a concurrent double revoke surfaces as false.
func (r *APIKeyRepo) Revoke(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE api_keys SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreateAndRevoke atomically inserts the replacement key and revokes its
// predecessor, so the active-key quota never observes both.
func (r *APIKeyRepo) CreateAndRevoke(ctx context.Context, newKey *domain.APIKey, revokeID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rollover tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, insertAPIKeySQL,
		newKey.ID, newKey.KeyHash, newKey.UserID, newKey.Name,
		permStrings(newKey.Permissions), newKey.ExpiresAt, newKey.Revoked, newKey.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert replacement key: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE api_keys SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`, revokeID)
	if err != nil {
		return fmt.Errorf("revoke predecessor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("revoke predecessor: key %s already revoked", revokeID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rollover tx: %w", err)
	}
	return nil
}

func scanAPIKey(row pgx.Row, op string) (*domain.APIKey, error) {
	k := &domain.APIKey{}
	var perms []string
	err := row.Scan(&k.ID, &k.KeyHash, &k.UserID, &k.Name, &perms,
		&k.ExpiresAt, &k.Revoked, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	k.Permissions = permDomain(perms)
	return k, nil
}

func permStrings(perms []domain.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func permDomain(perms []string) []domain.Permission {
	out := make([]domain.Permission, len(perms))
	for i, p := range perms {
		out[i] = domain.Permission(p)
	}
	return out
}
