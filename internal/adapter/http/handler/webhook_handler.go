package handler

import (
	"encoding/json"
	"io"
	"strings"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderPaystackSignature carries the HMAC-SHA512 digest of the raw body.
const HeaderPaystackSignature = "x-paystack-signature"

// WebhookHandler receives asynchronous settlement callbacks from the
// payment gateway. Authenticity is checked here, before any state is
// touched; the settlement service owns idempotency.
type WebhookHandler struct {
	settlementSvc ports.SettlementService
	sigSvc        ports.SignatureService
	webhookSecret string
	log           zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(settlementSvc ports.SettlementService, sigSvc ports.SignatureService, webhookSecret string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		settlementSvc: settlementSvc,
		sigSvc:        sigSvc,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// Paystack handles POST /api/v1/webhooks/paystack. The signature is
// computed over the exact raw bytes, so the body is verified before it is
// decoded.
func (h *WebhookHandler) Paystack(c *gin.Context) {
	signature := c.GetHeader(HeaderPaystackSignature)
	if signature == "" {
		response.Error(c, apperror.ErrMissingSignature())
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	if !h.sigSvc.Verify(h.webhookSecret, body, signature) {
		h.log.Warn().Str("client_ip", c.ClientIP()).Msg("webhook signature mismatch")
		response.Error(c, apperror.ErrInvalidSignature())
		return
	}

	var event dto.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		response.Error(c, apperror.Validation("malformed event payload"))
		return
	}

	// Non-charge events (transfer.*, subscription.*) are acknowledged so
	// the gateway stops redelivering them.
	if !strings.HasPrefix(event.Event, "charge.") {
		h.log.Debug().Str("event", event.Event).Msg("ignoring non-charge webhook event")
		response.OK(c, gin.H{"message": "ignored"})
		return
	}

	if event.Data.Reference == "" {
		response.Error(c, apperror.Validation("missing reference"))
		return
	}

	if err := h.settlementSvc.ProcessCallback(c.Request.Context(), event.Data.Reference, event.Data.Status, event.Data.Amount); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "acknowledged"})
}
