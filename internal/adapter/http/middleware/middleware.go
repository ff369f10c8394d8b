package middleware

import (
	"net/http"
	"strings"
	"time"

	"custodial-wallet/internal/core/domain"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/pkg/apperror"
	"custodial-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// HeaderAPIKey carries a scoped credential as an alternative to a
	// Bearer session token.
	HeaderAPIKey = "X-API-Key"

	// Context keys
	CtxUserID     = "user_id"
	CtxAPIKey     = "api_key"
	CtxAuthMethod = "auth_method"

	// Auth methods
	AuthMethodSession = "session"
	AuthMethodAPIKey  = "api_key"
)

// Authenticate resolves the caller's identity from either a Bearer session
// token or an X-API-Key header. Session tokens carry every scope; API keys
// carry only the scopes granted at issuance (enforced by RequirePermission).
func Authenticate(tokenSvc ports.TokenService, keySvc ports.APIKeyService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenStr == "" {
				response.Error(c, apperror.ErrInvalidToken())
				c.Abort()
				return
			}
			claims, err := tokenSvc.Validate(tokenStr)
			if err != nil {
				response.Error(c, apperror.ErrInvalidToken())
				c.Abort()
				return
			}
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxAuthMethod, AuthMethodSession)
			c.Next()
			return
		}

		if plaintext := c.GetHeader(HeaderAPIKey); plaintext != "" {
			key, err := keySvc.Verify(c.Request.Context(), plaintext)
			if err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
			c.Set(CtxUserID, key.UserID)
			c.Set(CtxAPIKey, key)
			c.Set(CtxAuthMethod, AuthMethodAPIKey)
			c.Next()
			return
		}

		response.Error(c, apperror.ErrInvalidToken())
		c.Abort()
	}
}

// RequirePermission gates a route on an API key scope. Session-token
// callers pass unconditionally.
func RequirePermission(perm domain.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxAuthMethod) == AuthMethodSession {
			c.Next()
			return
		}

		keyVal, exists := c.Get(CtxAPIKey)
		key, ok := keyVal.(*domain.APIKey)
		if !exists || !ok {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		if !key.HasPermission(perm) {
			response.Error(c, apperror.ErrPermissionDenied(string(perm)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSession restricts a route to Bearer-token callers. Key management
// is never reachable with an API key, so a stolen key cannot mint more keys.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxAuthMethod) != AuthMethodSession {
			response.Error(c, apperror.ErrPermissionDenied("session"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error_code": "SYS_001",
					"message":    "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
