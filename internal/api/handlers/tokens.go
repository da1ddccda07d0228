package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/api/middleware"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/services"
	"go.uber.org/zap"
)

// TokenHandler administers auditor access tokens and exposes the access log.
// Every route behind it is gated on admin/superuser.
type TokenHandler struct {
	tokens     *services.TokenService
	accessLogs *services.AccessLogService
	logger     *zap.Logger
}

func NewTokenHandler(tokens *services.TokenService, accessLogs *services.AccessLogService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		tokens:     tokens,
		accessLogs: accessLogs,
		logger:     logger.With(zap.String("handler", "token")),
	}
}

type issueTokenRequest struct {
	AuditorName      string            `json:"auditor_name" binding:"required"`
	AuditorEmail     string            `json:"auditor_email" binding:"required"`
	ScopeType        models.TokenScope `json:"scope_type" binding:"required"`
	ScopeEntityID    *string           `json:"scope_entity_id"`
	AllowedResources []string          `json:"allowed_resources"`
	ExpiresAt        time.Time         `json:"expires_at" binding:"required"`
	MaxUses          *int              `json:"max_uses"`
	Purpose          string            `json:"purpose" binding:"required"`
	Notes            string            `json:"notes"`
}

func (h *TokenHandler) Create(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "auditor_name, auditor_email, scope_type, expires_at and purpose are required"})
		return
	}

	p, _ := middleware.PrincipalFromContext(c)
	token, raw, err := h.tokens.Issue(c.Request.Context(), services.IssueTokenInput{
		AuditorName:      req.AuditorName,
		AuditorEmail:     req.AuditorEmail,
		ScopeType:        req.ScopeType,
		ScopeEntityID:    req.ScopeEntityID,
		AllowedResources: req.AllowedResources,
		ExpiresAt:        req.ExpiresAt,
		MaxUses:          req.MaxUses,
		Purpose:          req.Purpose,
		Notes:            req.Notes,
		CreatedBy:        p.UserID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	// The raw value appears in this response and nowhere else.
	c.JSON(http.StatusCreated, gin.H{"token": token, "value": raw})
}

func (h *TokenHandler) List(c *gin.Context) {
	tokens, err := h.tokens.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

type revokeTokenRequest struct {
	Reason string `json:"reason"`
}

func (h *TokenHandler) Revoke(c *gin.Context) {
	tokenID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token id"})
		return
	}

	var req revokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a non-empty reason is required"})
		return
	}

	p, _ := middleware.PrincipalFromContext(c)
	if err := h.tokens.Revoke(c.Request.Context(), uint(tokenID), p.UserID, req.Reason); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": tokenID})
}

func (h *TokenHandler) ListAccessLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	entries, err := h.accessLogs.List(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *TokenHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "auditor token not found"})
	case errors.Is(err, services.ErrPurposeRequired),
		errors.Is(err, services.ErrReasonRequired),
		errors.Is(err, services.ErrInvalidScope),
		errors.Is(err, services.ErrScopeEntityRequired),
		errors.Is(err, services.ErrExpiryInPast),
		errors.Is(err, services.ErrTokenRevoked):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("token operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
