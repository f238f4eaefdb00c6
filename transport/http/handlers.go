package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/garuda/core"
	"github.com/layer-3/garuda/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	validator *service.Validator
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(validator *service.Validator) *AuthHandlers {
	return &AuthHandlers{
		validator: validator,
	}
}

// Validate handles explicit validation requests
func (h *AuthHandlers) Validate(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.validator.Validate(c.Request.Context(), req.Token)
	if err != nil {
		status, msg := validationError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Decode handles token introspection requests; the token is parsed but not
// validated
func (h *AuthHandlers) Decode(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.validator.Decode(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		return
	}

	c.JSON(http.StatusOK, token)
}

// Me returns information about the authenticated account
func (h *AuthHandlers) Me(c *gin.Context) {
	// The addresses are set by the auth middleware
	address, exists := c.Get("userAddress")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":        address,
		"signer_address": c.GetString("signerAddress"),
		"origin":         c.GetString("origin"),
	})
}

// Authorize checks if a request is authorized
func (h *AuthHandlers) Authorize(c *gin.Context) {
	// If the request reached this handler, the auth middleware has already
	// validated the token
	address, exists := c.Get("userAddress")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    address,
	})
}

// validationError maps a pipeline failure to a status code and message.
// Malformed tokens are the caller's fault, expiry and bad signatures are
// authentication failures, and rejected origins or impersonation claims are
// authorization failures.
func validationError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidToken):
		return http.StatusBadRequest, "Invalid token"
	case errors.Is(err, core.ErrInvalidTokenTTL):
		return http.StatusBadRequest, "Token ttl exceeds the allowed maximum"
	case errors.Is(err, core.ErrInvalidBlockHash):
		return http.StatusBadRequest, "Unknown block hash"
	case errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized, "Token expired"
	case errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, core.ErrOriginNotAccepted):
		return http.StatusForbidden, "Origin not accepted"
	case errors.Is(err, core.ErrInvalidImpersonate):
		return http.StatusForbidden, "Impersonation not allowed"
	default:
		return http.StatusInternalServerError, "Validation failed"
	}
}
