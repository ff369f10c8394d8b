package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	apiKeyPrefix      = "sk_live_"
	apiKeySecretBytes = 48
	apiKeyCacheTTL    = time.Minute

	rolloverNameSuffix = " (rolled over)"
)

// expirySpecRe matches the expiry grammar: a positive integer followed by a
// unit letter. H=hours, D=days, M=30-day months, Y=365-day years.
var expirySpecRe = regexp.MustCompile(`(?i)^(\d+)([HDMY])$`)

// APIKeyServiceImpl implements ports.APIKeyService. Secrets are stored only
// as SHA-256 hex digests; the hash is deterministic so a presented key can
// be located by a single indexed lookup.
type APIKeyServiceImpl struct {
	keyRepo  ports.APIKeyRepository
	cache    ports.APIKeyCache
	auditSvc ports.AuditService
	log      zerolog.Logger
}

// NewAPIKeyService creates a new APIKeyServiceImpl.
func NewAPIKeyService(
	keyRepo ports.APIKeyRepository,
	cache ports.APIKeyCache,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *APIKeyServiceImpl {
	return &APIKeyServiceImpl{
		keyRepo:  keyRepo,
		cache:    cache,
		auditSvc: auditSvc,
		log:      log,
	}
}

// Issue mints a new API key. The plaintext secret leaves this method exactly
// once, inside the returned IssuedKey; only its hash is persisted.
func (s *APIKeyServiceImpl) Issue(ctx context.Context, userID uuid.UUID, name, expirySpec string, perms []domain.Permission) (*ports.IssuedKey, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.Validation("Key name must not be empty")
	}
	if len(perms) == 0 {
		return nil, apperror.Validation("At least one permission is required")
	}
	for _, p := range perms {
		if !domain.ValidPermission(string(p)) {
			return nil, apperror.Validation(fmt.Sprintf("Unknown permission %q", p))
		}
	}

	ttl, err := parseExpirySpec(expirySpec)
	if err != nil {
		return nil, err
	}

	active, err := s.keyRepo.CountActiveByOwner(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count active keys: %w", err))
	}
	if active >= domain.MaxActiveAPIKeys {
		return nil, apperror.ErrKeyQuotaExceeded()
	}

	plaintext, keyHash, err := newSecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate key secret: %w", err))
	}

	now := time.Now().UTC()
	key := &domain.APIKey{
		ID:          uuid.New(),
		KeyHash:     keyHash,
		UserID:      userID,
		Name:        name,
		Permissions: perms,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := s.keyRepo.Create(ctx, key); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create key: %w", err))
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.AuditActionKeyCreate,
		ResourceType: "api_key",
		ResourceID:   key.ID.String(),
		CreatedAt:    now,
	})

	s.log.Info().
		Str("key_id", key.ID.String()).
		Time("expires_at", key.ExpiresAt).
		Msg("api key issued")

	return &ports.IssuedKey{PlaintextKey: plaintext, Key: key}, nil
}

// Rollover replaces an expired key with a fresh secret carrying the same
// permissions. The predecessor is revoked in the same database transaction
// as the replacement's insert, so the quota never counts both.
func (s *APIKeyServiceImpl) Rollover(ctx context.Context, userID, keyID uuid.UUID, expirySpec string) (*ports.IssuedKey, error) {
	ttl, err := parseExpirySpec(expirySpec)
	if err != nil {
		return nil, err
	}

	old, err := s.keyRepo.GetByID(ctx, keyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get key: %w", err))
	}
	if old == nil {
		return nil, apperror.ErrKeyNotFound()
	}
	if old.UserID != userID {
		return nil, apperror.ErrKeyNotOwned()
	}
	if old.Revoked {
		return nil, apperror.ErrKeyAlreadyRevoked()
	}
	if !old.IsExpired(time.Now().UTC()) {
		return nil, apperror.ErrKeyNotExpired()
	}

	// The expired predecessor still counts as active (non-revoked), so
	// exclude it: rollover swaps a slot rather than consuming one.
	active, err := s.keyRepo.CountActiveByOwner(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("count active keys: %w", err))
	}
	if active-1 >= domain.MaxActiveAPIKeys {
		return nil, apperror.ErrKeyQuotaExceeded()
	}

	plaintext, keyHash, err := newSecret()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate key secret: %w", err))
	}

	name := old.Name
	if !strings.HasSuffix(name, rolloverNameSuffix) {
		name += rolloverNameSuffix
	}

	now := time.Now().UTC()
	replacement := &domain.APIKey{
		ID:          uuid.New(),
		KeyHash:     keyHash,
		UserID:      userID,
		Name:        name,
		Permissions: old.Permissions,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := s.keyRepo.CreateAndRevoke(ctx, replacement, old.ID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("rollover key: %w", err))
	}

	s.invalidateCached(ctx, old.ID, old.KeyHash)

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.AuditActionKeyRollover,
		ResourceType: "api_key",
		ResourceID:   old.ID.String(),
		Details:      fmt.Sprintf(`{"replacement_id":%q}`, replacement.ID),
		CreatedAt:    now,
	})

	return &ports.IssuedKey{PlaintextKey: plaintext, Key: replacement}, nil
}

// Revoke flips the one-way revoked flag. Revoking an already revoked key is
// an error, unlike a settlement replay; an operator repeating a revoke
// should learn the key was already dead.
func (s *APIKeyServiceImpl) Revoke(ctx context.Context, userID, keyID uuid.UUID) error {
	key, err := s.keyRepo.GetByID(ctx, keyID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get key: %w", err))
	}
	if key == nil {
		return apperror.ErrKeyNotFound()
	}
	if key.UserID != userID {
		return apperror.ErrKeyNotOwned()
	}
	if key.Revoked {
		return apperror.ErrKeyAlreadyRevoked()
	}

	changed, err := s.keyRepo.Revoke(ctx, keyID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("revoke key: %w", err))
	}
	if !changed {
		// Lost a race with a concurrent revoke.
		return apperror.ErrKeyAlreadyRevoked()
	}

	s.invalidateCached(ctx, keyID, key.KeyHash)

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.AuditActionKeyRevoke,
		ResourceType: "api_key",
		ResourceID:   keyID.String(),
		CreatedAt:    time.Now().UTC(),
	})

	return nil
}

// Verify authenticates a presented plaintext key. All rejection paths
// collapse into KEY_006 so callers cannot learn which check failed.
//
// Lookups are served from the cache when possible. Revoke and Rollover
// invalidate the cached entry; if both invalidation attempts fail, a dead
// key can keep verifying until the cache entry lapses, at most
// apiKeyCacheTTL after the revocation.
func (s *APIKeyServiceImpl) Verify(ctx context.Context, plaintext string) (*domain.APIKey, error) {
	if !strings.HasPrefix(plaintext, apiKeyPrefix) {
		return nil, apperror.ErrInvalidAPIKey()
	}
	keyHash := hashSecret(plaintext)

	key, err := s.cache.Get(ctx, keyHash)
	if err != nil {
		s.log.Warn().Err(err).Msg("api key cache read failed, falling through to DB")
	}
	if key == nil {
		key, err = s.keyRepo.GetByHash(ctx, keyHash)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get key by hash: %w", err))
		}
		if key == nil {
			return nil, apperror.ErrInvalidAPIKey()
		}
		if err := s.cache.Set(ctx, key, apiKeyCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache api key")
		}
	}

	if !key.IsUsable(time.Now().UTC()) {
		return nil, apperror.ErrInvalidAPIKey()
	}
	return key, nil
}

// ListKeys returns all keys ever issued to the user, revoked ones included.
func (s *APIKeyServiceImpl) ListKeys(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	keys, err := s.keyRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list keys: %w", err))
	}
	return keys, nil
}

// invalidateCached evicts a dead key's cache entry, retrying once. The
// revocation itself is already durable, so a double failure only extends
// the stale-cache window and is logged rather than surfaced.
func (s *APIKeyServiceImpl) invalidateCached(ctx context.Context, keyID uuid.UUID, keyHash string) {
	err := s.cache.Invalidate(ctx, keyHash)
	if err == nil {
		return
	}
	if err = s.cache.Invalidate(ctx, keyHash); err != nil {
		s.log.Warn().Err(err).Str("key_id", keyID.String()).Msg("failed to invalidate dead key in cache")
	}
}

// parseExpirySpec converts an expiry spec like "12H" or "30D" into a
// duration. Months and years are fixed 30 and 365 day approximations.
func parseExpirySpec(spec string) (time.Duration, error) {
	m := expirySpecRe.FindStringSubmatch(strings.TrimSpace(spec))
	if m == nil {
		return 0, apperror.ErrInvalidExpiry()
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, apperror.ErrInvalidExpiry()
	}

	var unit time.Duration
	switch strings.ToUpper(m[2]) {
	case "H":
		unit = time.Hour
	case "D":
		unit = 24 * time.Hour
	case "M":
		unit = 30 * 24 * time.Hour
	case "Y":
		unit = 365 * 24 * time.Hour
	}
	// A huge count would wrap time.Duration and expire the key in the past.
	if n > math.MaxInt64/int64(unit) {
		return 0, apperror.ErrInvalidExpiry()
	}
	return time.Duration(n) * unit, nil
}

// newSecret generates a fresh plaintext key and its storage hash.
func newSecret() (plaintext, hash string, err error) {
	raw := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plaintext = apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)
	return plaintext, hashSecret(plaintext), nil
}

// hashSecret returns the SHA-256 hex digest of a plaintext key.
func hashSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
