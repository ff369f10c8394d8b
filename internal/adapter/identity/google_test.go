package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"custodial-wallet/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "wallet-app.apps.googleusercontent.com"

func newTokenInfoServer(t *testing.T, info map[string]string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("id_token"))
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(info)
	}))
}

func validInfo() map[string]string {
	return map[string]string{
		"sub":   "10825677112094633",
		"aud":   testClientID,
		"email": "ada@example.com",
		"name":  "Ada Lovelace",
		"exp":   fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix()),
	}
}

func requireIdentityRejected(t *testing.T, err error) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_002", appErr.Code)
}

func TestGoogleVerifier_Success(t *testing.T) {
	srv := newTokenInfoServer(t, validInfo(), http.StatusOK)
	defer srv.Close()

	v := NewGoogleVerifier(testClientID, zerolog.Nop(), WithEndpoint(srv.URL))
	id, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "10825677112094633", id.Subject)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada Lovelace", id.Name)
}

func TestGoogleVerifier_AudienceMismatch(t *testing.T) {
	info := validInfo()
	info["aud"] = "someone-else.apps.googleusercontent.com"
	srv := newTokenInfoServer(t, info, http.StatusOK)
	defer srv.Close()

	v := NewGoogleVerifier(testClientID, zerolog.Nop(), WithEndpoint(srv.URL))
	_, err := v.Verify(context.Background(), "foreign-token")
	requireIdentityRejected(t, err)
}

func TestGoogleVerifier_ExpiredToken(t *testing.T) {
	info := validInfo()
	info["exp"] = fmt.Sprintf("%d", time.Now().Add(-time.Minute).Unix())
	srv := newTokenInfoServer(t, info, http.StatusOK)
	defer srv.Close()

	v := NewGoogleVerifier(testClientID, zerolog.Nop(), WithEndpoint(srv.URL))
	_, err := v.Verify(context.Background(), "stale-token")
	requireIdentityRejected(t, err)
}

func TestGoogleVerifier_ProviderRejects(t *testing.T) {
	srv := newTokenInfoServer(t, map[string]string{"error": "invalid_token"}, http.StatusBadRequest)
	defer srv.Close()

	v := NewGoogleVerifier(testClientID, zerolog.Nop(), WithEndpoint(srv.URL))
	_, err := v.Verify(context.Background(), "garbage")
	requireIdentityRejected(t, err)
}

func TestGoogleVerifier_EmptyToken(t *testing.T) {
	v := NewGoogleVerifier(testClientID, zerolog.Nop())
	_, err := v.Verify(context.Background(), "")
	requireIdentityRejected(t, err)
}
