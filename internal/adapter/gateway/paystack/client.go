package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"custodial-wallet/config"
	"custodial-wallet/internal/core/ports"

	"github.com/rs/zerolog"
)

// Client talks to the Paystack transaction API. Only initialization lives
// here; settlement arrives over the webhook, never by polling.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a Paystack API client with a bounded request timeout.
func NewClient(cfg config.PaystackConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		secretKey:  cfg.SecretKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type initializeRequest struct {
	Amount    int64  `json:"amount"` // kobo
	Email     string `json:"email"`
	Reference string `json:"reference"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initialize opens a hosted payment session for the given reference.
// A timed-out call surfaces as context.DeadlineExceeded so callers can
// distinguish "gateway never answered" from "gateway said no".
func (c *Client) Initialize(ctx context.Context, amountKobo int64, email, reference string) (*ports.GatewaySession, error) {
	body, err := json.Marshal(initializeRequest{
		Amount:    amountKobo,
		Email:     email,
		Reference: reference,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal initialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initialize request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("paystack initialize: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read initialize response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("reference", reference).
			Msg("paystack initialize rejected")
		return nil, fmt.Errorf("paystack initialize: status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var parsed initializeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode initialize response: %w", err)
	}
	if !parsed.Status {
		return nil, fmt.Errorf("paystack initialize: %s", parsed.Message)
	}

	return &ports.GatewaySession{
		Reference:        parsed.Data.Reference,
		AuthorizationURL: parsed.Data.AuthorizationURL,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
