package handler

import (
	"time"

	"custodial-wallet/internal/adapter/http/dto"
	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIKeyHandler handles credential lifecycle endpoints.
type APIKeyHandler struct {
	keySvc ports.APIKeyService
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(keySvc ports.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keySvc: keySvc}
}

// Create handles POST /api/v1/keys. The plaintext secret appears in this
// response and never again.
func (h *APIKeyHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	perms := make([]domain.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, domain.Permission(p))
	}

	issued, err := h.keySvc.Issue(c.Request.Context(), userID, req.Name, req.Expiry, perms)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.IssuedKeyResponse{
		Key:    issued.PlaintextKey,
		Detail: toAPIKeyResponse(issued.Key),
	})
}

// List handles GET /api/v1/keys.
func (h *APIKeyHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keys, err := h.keySvc.ListKeys(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.APIKeyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, toAPIKeyResponse(&keys[i]))
	}
	response.OK(c, items)
}

// Rollover handles POST /api/v1/keys/:id/rollover.
func (h *APIKeyHandler) Rollover(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid key id"))
		return
	}

	var req dto.RolloverKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	issued, err := h.keySvc.Rollover(c.Request.Context(), userID, keyID, req.Expiry)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.IssuedKeyResponse{
		Key:    issued.PlaintextKey,
		Detail: toAPIKeyResponse(issued.Key),
	})
}

// Revoke handles DELETE /api/v1/keys/:id.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid key id"))
		return
	}

	if err := h.keySvc.Revoke(c.Request.Context(), userID, keyID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "key revoked"})
}

// toAPIKeyResponse converts a domain.APIKey to its DTO. The hash never
// leaves the server.
func toAPIKeyResponse(key *domain.APIKey) dto.APIKeyResponse {
	perms := make([]string, 0, len(key.Permissions))
	for _, p := range key.Permissions {
		perms = append(perms, string(p))
	}
	return dto.APIKeyResponse{
		ID:          key.ID.String(),
		Name:        key.Name,
		Permissions: perms,
		ExpiresAt:   key.ExpiresAt.Format(time.RFC3339),
		Revoked:     key.Revoked,
		CreatedAt:   key.CreatedAt.Format(time.RFC3339),
	}
}
