package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type apiKeyTestDeps struct {
	svc      *APIKeyServiceImpl
	keyRepo  *mocks.MockAPIKeyRepository
	cache    *mocks.MockAPIKeyCache
	auditSvc *mocks.MockAuditService
	ctrl     *gomock.Controller
}

func setupAPIKeyService(t *testing.T) *apiKeyTestDeps {
	ctrl := gomock.NewController(t)
	d := &apiKeyTestDeps{
		keyRepo:  mocks.NewMockAPIKeyRepository(ctrl),
		cache:    mocks.NewMockAPIKeyCache(ctrl),
		auditSvc: mocks.NewMockAuditService(ctrl),
		ctrl:     ctrl,
	}
	d.svc = NewAPIKeyService(d.keyRepo, d.cache, d.auditSvc, zerolog.Nop())
	return d
}

func TestAPIKeyService_Issue_Success(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.keyRepo.EXPECT().CountActiveByOwner(ctx, userID).Return(int64(2), nil)
	d.keyRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	issued, err := d.svc.Issue(ctx, userID, "ci-pipeline", "30D", []domain.Permission{domain.PermissionRead, domain.PermissionTransfer})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(issued.PlaintextKey, "sk_live_"))
	assert.Equal(t, hashSecret(issued.PlaintextKey), issued.Key.KeyHash)
	assert.Equal(t, "ci-pipeline", issued.Key.Name)
	assert.False(t, issued.Key.Revoked)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), issued.Key.ExpiresAt, time.Minute)
}

func TestAPIKeyService_Issue_QuotaExceeded(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.keyRepo.EXPECT().CountActiveByOwner(ctx, userID).Return(int64(5), nil)

	_, err := d.svc.Issue(ctx, userID, "one-too-many", "30D", []domain.Permission{domain.PermissionRead})
	requireAppError(t, err, "KEY_001")
}

func TestAPIKeyService_Issue_InvalidExpiry(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	for _, spec := range []string{"", "30", "D30", "30W", "-5D", "1.5H", "0D"} {
		_, err := d.svc.Issue(context.Background(), uuid.New(), "k", spec, []domain.Permission{domain.PermissionRead})
		requireAppError(t, err, "KEY_002")
	}
}

func TestAPIKeyService_Issue_ExpiryGrammarCaseInsensitive(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.keyRepo.EXPECT().CountActiveByOwner(ctx, userID).Return(int64(0), nil)
	d.keyRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	issued, err := d.svc.Issue(ctx, userID, "lowercase", "12h", []domain.Permission{domain.PermissionRead})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(12*time.Hour), issued.Key.ExpiresAt, time.Minute)
}

func TestAPIKeyService_Issue_InvalidPermissions(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Issue(context.Background(), uuid.New(), "k", "30D", nil)
	requireAppError(t, err, "VAL_001")

	_, err = d.svc.Issue(context.Background(), uuid.New(), "k", "30D", []domain.Permission{"admin"})
	requireAppError(t, err, "VAL_001")
}

func TestAPIKeyService_Rollover_Success(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	old := &domain.APIKey{
		ID:          uuid.New(),
		KeyHash:     "oldhash",
		UserID:      userID,
		Name:        "ci-pipeline",
		Permissions: []domain.Permission{domain.PermissionRead, domain.PermissionDeposit},
		ExpiresAt:   time.Now().UTC().Add(-time.Hour),
	}

	d.keyRepo.EXPECT().GetByID(ctx, old.ID).Return(old, nil)
	// All 5 slots taken, but one of them is the key being replaced.
	d.keyRepo.EXPECT().CountActiveByOwner(ctx, userID).Return(int64(5), nil)
	d.keyRepo.EXPECT().CreateAndRevoke(ctx, gomock.Any(), old.ID).Return(nil)
	d.cache.EXPECT().Invalidate(ctx, "oldhash").Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	issued, err := d.svc.Rollover(ctx, userID, old.ID, "90D")
	require.NoError(t, err)

	assert.Equal(t, "ci-pipeline (rolled over)", issued.Key.Name)
	assert.Equal(t, old.Permissions, issued.Key.Permissions)
	assert.NotEqual(t, old.ID, issued.Key.ID)
	assert.True(t, strings.HasPrefix(issued.PlaintextKey, "sk_live_"))
}

func TestAPIKeyService_Rollover_NotExpired(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	key := &domain.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	d.keyRepo.EXPECT().GetByID(ctx, key.ID).Return(key, nil)

	_, err := d.svc.Rollover(ctx, userID, key.ID, "30D")
	requireAppError(t, err, "KEY_004")
}

func TestAPIKeyService_Rollover_RevokedKey(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	key := &domain.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
		Revoked:   true,
	}

	d.keyRepo.EXPECT().GetByID(ctx, key.ID).Return(key, nil)

	_, err := d.svc.Rollover(ctx, userID, key.ID, "30D")
	requireAppError(t, err, "KEY_005")
}

func TestAPIKeyService_Rollover_NotOwned(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	key := &domain.APIKey{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}

	d.keyRepo.EXPECT().GetByID(ctx, key.ID).Return(key, nil)

	_, err := d.svc.Rollover(ctx, uuid.New(), key.ID, "30D")
	requireAppError(t, err, "KEY_007")
}

func TestAPIKeyService_Revoke_Success(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	key := &domain.APIKey{ID: uuid.New(), KeyHash: "somehash", UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}

	d.keyRepo.EXPECT().GetByID(ctx, key.ID).Return(key, nil)
	d.keyRepo.EXPECT().Revoke(ctx, key.ID).Return(true, nil)
	d.cache.EXPECT().Invalidate(ctx, "somehash").Return(nil)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	require.NoError(t, d.svc.Revoke(ctx, userID, key.ID))
}

func TestAPIKeyService_Revoke_CacheInvalidationRetried(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	key := &domain.APIKey{ID: uuid.New(), KeyHash: "somehash", UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}

	d.keyRepo.EXPECT().GetByID(ctx, key.ID).Return(key, nil)
	d.keyRepo.EXPECT().Revoke(ctx, key.ID).Return(true, nil)
	// First eviction attempt fails, the second lands. The revoke is durable
	// either way.
	gomock.InOrder(
		d.cache.EXPECT().Invalidate(ctx, "somehash").Return(errors.New("redis down")),
		d.cache.EXPECT().Invalidate(ctx, "somehash").Return(nil),
	)
	d.auditSvc.EXPECT().Log(ctx, gomock.Any())

	require.NoError(t, d.svc.Revoke(ctx, userID, key.ID))
}

func TestAPIKeyService_Revoke_AlreadyRevoked(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	key := &domain.APIKey{ID: uuid.New(), UserID: userID, Revoked: true}

	d.keyRepo.EXPECT().GetByID(ctx, key.ID).Return(key, nil)

	// Unlike a settlement replay, a repeated revoke is an error.
	err := d.svc.Revoke(ctx, userID, key.ID)
	requireAppError(t, err, "KEY_005")
}

func TestAPIKeyService_Revoke_NotFound(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	keyID := uuid.New()

	d.keyRepo.EXPECT().GetByID(ctx, keyID).Return(nil, nil)

	err := d.svc.Revoke(ctx, uuid.New(), keyID)
	requireAppError(t, err, "KEY_003")
}

func TestAPIKeyService_Revoke_LostRace(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	key := &domain.APIKey{ID: uuid.New(), KeyHash: "h", UserID: userID}

	d.keyRepo.EXPECT().GetByID(ctx, key.ID).Return(key, nil)
	d.keyRepo.EXPECT().Revoke(ctx, key.ID).Return(false, nil)

	err := d.svc.Revoke(ctx, userID, key.ID)
	requireAppError(t, err, "KEY_005")
}

func TestAPIKeyService_Verify_Success_CacheMiss(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	plaintext := "sk_live_" + strings.Repeat("a", 64)
	keyHash := hashSecret(plaintext)
	key := &domain.APIKey{
		ID:        uuid.New(),
		KeyHash:   keyHash,
		UserID:    uuid.New(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	d.cache.EXPECT().Get(ctx, keyHash).Return(nil, nil)
	d.keyRepo.EXPECT().GetByHash(ctx, keyHash).Return(key, nil)
	d.cache.EXPECT().Set(ctx, key, apiKeyCacheTTL).Return(nil)

	got, err := d.svc.Verify(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
}

func TestAPIKeyService_Verify_Success_CacheHit(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	plaintext := "sk_live_" + strings.Repeat("b", 64)
	keyHash := hashSecret(plaintext)
	key := &domain.APIKey{
		ID:        uuid.New(),
		KeyHash:   keyHash,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	d.cache.EXPECT().Get(ctx, keyHash).Return(key, nil)
	// No repo lookup on a cache hit.

	got, err := d.svc.Verify(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
}

func TestAPIKeyService_Verify_BadPrefix(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Verify(context.Background(), "pk_live_whatever")
	requireAppError(t, err, "KEY_006")
}

func TestAPIKeyService_Verify_UnknownKey(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	plaintext := "sk_live_" + strings.Repeat("c", 64)
	keyHash := hashSecret(plaintext)

	d.cache.EXPECT().Get(ctx, keyHash).Return(nil, nil)
	d.keyRepo.EXPECT().GetByHash(ctx, keyHash).Return(nil, nil)

	_, err := d.svc.Verify(ctx, plaintext)
	requireAppError(t, err, "KEY_006")
}

func TestAPIKeyService_Verify_ExpiredKey(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	plaintext := "sk_live_" + strings.Repeat("d", 64)
	keyHash := hashSecret(plaintext)
	key := &domain.APIKey{
		ID:        uuid.New(),
		KeyHash:   keyHash,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}

	d.cache.EXPECT().Get(ctx, keyHash).Return(key, nil)

	_, err := d.svc.Verify(ctx, plaintext)
	requireAppError(t, err, "KEY_006")
}

func TestAPIKeyService_Verify_RevokedKey(t *testing.T) {
	d := setupAPIKeyService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	plaintext := "sk_live_" + strings.Repeat("e", 64)
	keyHash := hashSecret(plaintext)
	key := &domain.APIKey{
		ID:        uuid.New(),
		KeyHash:   keyHash,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		Revoked:   true,
	}

	d.cache.EXPECT().Get(ctx, keyHash).Return(key, nil)

	_, err := d.svc.Verify(ctx, plaintext)
	requireAppError(t, err, "KEY_006")
}

func TestParseExpirySpec_Units(t *testing.T) {
	cases := []struct {
		spec string
		want time.Duration
	}{
		{"12H", 12 * time.Hour},
		{"30D", 30 * 24 * time.Hour},
		{"2M", 60 * 24 * time.Hour},
		{"1Y", 365 * 24 * time.Hour},
		{"1y", 365 * 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := parseExpirySpec(tc.spec)
		require.NoError(t, err, tc.spec)
		assert.Equal(t, tc.want, got, tc.spec)
	}
}

func TestParseExpirySpec_Rejected(t *testing.T) {
	for _, spec := range []string{
		"", "H", "12", "0D", "-3H", "1W",
		// Counts whose duration would wrap time.Duration.
		"9999999H",
		"9223372036854775807Y",
	} {
		got, err := parseExpirySpec(spec)
		requireAppError(t, err, "KEY_002")
		assert.Zero(t, got, spec)
	}
}
