package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/authz"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/services"
	"go.uber.org/zap"
)

// AuditorScheme is the Authorization scheme marker for external auditor
// tokens. Distinct from the identity scheme so a token can never be mistaken
// for a regular session.
const AuditorScheme = "AuditorToken"

// AuditorMiddleware is the read-only gateway for external auditor tokens.
// It authenticates the token, enforces read-only access and scope, attaches
// a synthetic principal, and records every interaction in the access log.
type AuditorMiddleware struct {
	tokens    *services.TokenService
	accessLog *services.AccessLogService
	logger    *zap.Logger
}

func NewAuditorMiddleware(tokens *services.TokenService, accessLog *services.AccessLogService, logger *zap.Logger) *AuditorMiddleware {
	return &AuditorMiddleware{
		tokens:    tokens,
		accessLog: accessLog,
		logger:    logger.With(zap.String("middleware", "auditor")),
	}
}

// FlexibleAuth is the dual-mode authentication boundary. The auditor scheme
// is tried first; requests without it fall through to normal identity
// authentication. Downstream permission checks run the same way for both.
func FlexibleAuth(auditor *AuditorMiddleware, auth *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, present := auditorCredential(c); present {
			auditor.handle(c)
			return
		}
		auth.authenticate(c)
	}
}

func (m *AuditorMiddleware) handle(c *gin.Context) {
	raw, _ := auditorCredential(c)
	if raw == "" {
		m.logFailure(c, nil, http.StatusUnauthorized)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing auditor token"})
		return
	}

	token, err := m.tokens.Validate(c.Request.Context(), raw)
	if err != nil {
		m.logger.Warn("auditor token rejected",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()))
		m.logFailure(c, token, http.StatusForbidden)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": tokenErrorMessage(err)})
		return
	}

	// Read-only enforcement comes before any business logic: a token holder
	// can never reach a mutating handler, whatever the scope says.
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		m.logDenied(c, token, http.StatusForbidden)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "auditor tokens are read-only"})
		return
	}

	if token.ScopeType != models.ScopeFullReadOnly {
		tag := resourceTag(c.Request.URL.Path)
		if !token.AllowsResource(tag) {
			m.logDenied(c, token, http.StatusForbidden)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "resource not covered by token scope"})
			return
		}
		if token.ScopeType.EntityScoped() {
			if requested := c.Param("id"); requested != "" {
				allowed := ""
				if token.ScopeEntityID != nil {
					allowed = *token.ScopeEntityID
				}
				if requested != allowed {
					m.logDenied(c, token, http.StatusForbidden)
					c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
						"error":        "entity not covered by token scope",
						"requested_id": requested,
						"allowed_id":   allowed,
					})
					return
				}
			}
		}
	}

	SetPrincipal(c, authz.Principal{Name: token.AuditorName, ReadOnly: true})
	SetAuditorToken(c, token)

	c.Next()

	// Logged after the response body is computed; the sink is asynchronous
	// so a persistence failure cannot touch the response.
	tokenID := token.ID
	m.accessLog.Record(models.AccessLogEntry{
		TokenID:     &tokenID,
		AuditorName: token.AuditorName,
		Action:      actionForRequest(c),
		Category:    models.AccessCategoryDataAccess,
		Resource:    resourceTag(c.Request.URL.Path),
		ResourceID:  c.Param("id"),
		Success:     c.Writer.Status() < http.StatusBadRequest,
		StatusCode:  c.Writer.Status(),
		ClientIP:    c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
}

func (m *AuditorMiddleware) logFailure(c *gin.Context, token *models.AuditorAccessToken, status int) {
	entry := models.AccessLogEntry{
		Action:     models.AccessActionView,
		Category:   models.AccessCategoryAuthentication,
		Resource:   resourceTag(c.Request.URL.Path),
		ResourceID: c.Param("id"),
		Success:    false,
		StatusCode: status,
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
	if token != nil {
		tokenID := token.ID
		entry.TokenID = &tokenID
		entry.AuditorName = token.AuditorName
	}
	m.accessLog.Record(entry)
}

func (m *AuditorMiddleware) logDenied(c *gin.Context, token *models.AuditorAccessToken, status int) {
	tokenID := token.ID
	m.accessLog.Record(models.AccessLogEntry{
		TokenID:     &tokenID,
		AuditorName: token.AuditorName,
		Action:      actionForRequest(c),
		Category:    models.AccessCategoryAuthorization,
		Resource:    resourceTag(c.Request.URL.Path),
		ResourceID:  c.Param("id"),
		Success:     false,
		StatusCode:  status,
		ClientIP:    c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
}

// auditorCredential matches only the exact "AuditorToken <value>" form.
// Anything else, including schemes that merely share the prefix, falls
// through to identity authentication.
func auditorCredential(c *gin.Context) (raw string, present bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, AuditorScheme+" ") {
		return "", false
	}
	rest := strings.TrimPrefix(auth, AuditorScheme+" ")
	return strings.TrimSpace(rest), true
}

func tokenErrorMessage(err error) string {
	switch err {
	case services.ErrTokenRevoked:
		return "auditor token has been revoked"
	case services.ErrTokenExpired:
		return "auditor token has expired"
	case services.ErrTokenExhausted:
		return "auditor token use budget exhausted"
	default:
		return "invalid auditor token"
	}
}

// resourceTag extracts the resource segment of an API path:
// /api/documents/42/revisions -> "documents".
func resourceTag(path string) string {
	path = strings.TrimPrefix(path, "/api/")
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

func actionForRequest(c *gin.Context) string {
	if c.Param("id") != "" {
		return models.AccessActionView
	}
	return models.AccessActionList
}
