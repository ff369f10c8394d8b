// Package identity verifies external identity-provider tokens.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"

	"github.com/rs/zerolog"
)

const defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifier validates Google ID tokens against the tokeninfo endpoint
// and checks the audience matches our OAuth client.
type GoogleVerifier struct {
	clientID   string
	endpoint   string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures a GoogleVerifier.
type Option func(*GoogleVerifier)

// WithEndpoint overrides the tokeninfo URL. Used in tests.
func WithEndpoint(endpoint string) Option {
	return func(v *GoogleVerifier) { v.endpoint = endpoint }
}

// NewGoogleVerifier creates a verifier bound to one OAuth client ID.
func NewGoogleVerifier(clientID string, log zerolog.Logger, opts ...Option) *GoogleVerifier {
	v := &GoogleVerifier{
		clientID:   clientID,
		endpoint:   defaultTokenInfoURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// tokenInfo is the subset of the tokeninfo response we rely on.
type tokenInfo struct {
	Sub     string `json:"sub"`
	Aud     string `json:"aud"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Expires string `json:"exp"` // Unix seconds, as a string
}

// Verify checks the ID token with Google and returns the asserted identity.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*ports.ExternalIdentity, error) {
	if idToken == "" {
		return nil, apperror.ErrIdentityRejected(fmt.Errorf("empty id token"))
	}

	reqURL := v.endpoint + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("tokeninfo request: %w", err))
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, apperror.ErrIdentityRejected(fmt.Errorf("tokeninfo call: %w", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.ErrIdentityRejected(fmt.Errorf("tokeninfo read: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.ErrIdentityRejected(fmt.Errorf("tokeninfo status %d", resp.StatusCode))
	}

	var info tokenInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, apperror.ErrIdentityRejected(fmt.Errorf("tokeninfo decode: %w", err))
	}

	if info.Aud != v.clientID {
		v.log.Warn().Str("aud", info.Aud).Msg("id token issued for another client")
		return nil, apperror.ErrIdentityRejected(fmt.Errorf("audience mismatch"))
	}
	if exp, err := strconv.ParseInt(info.Expires, 10, 64); err != nil || time.Now().Unix() >= exp {
		return nil, apperror.ErrIdentityRejected(fmt.Errorf("token expired"))
	}
	if info.Sub == "" {
		return nil, apperror.ErrIdentityRejected(fmt.Errorf("missing subject"))
	}

	return &ports.ExternalIdentity{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
	}, nil
}
