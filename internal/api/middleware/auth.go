package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/authz"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/identity"
	"go.uber.org/zap"
)

const identityScheme = "Bearer"

type AuthMiddleware struct {
	verifier identity.Verifier
	logger   *zap.Logger
}

func NewAuthMiddleware(verifier identity.Verifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger.With(zap.String("middleware", "auth")),
	}
}

// RequireAuth authenticates the identity bearer credential and attaches the
// resulting principal to the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return am.authenticate
}

func (am *AuthMiddleware) authenticate(c *gin.Context) {
	credential := identityCredential(c)
	if credential == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	principal, err := am.verifier.Verify(c.Request.Context(), credential)
	if err != nil {
		am.logger.Warn("identity verification failed",
			zap.Error(err),
			zap.String("client_ip", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired credential"})
		return
	}

	SetPrincipal(c, *principal)
	c.Next()
}

// RequireRoles gates a route on a coarse role set. Runs after RequireAuth.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !p.HasAny(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// RequirePermission runs the permission engine for the given action against
// the principal and the loaded document snapshot. A false predicate result
// is always an authorization failure, never a silent no-op.
func RequirePermission(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		doc, _ := DocumentFromContext(c)
		if !authz.Can(p, doc, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

func identityCredential(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, identityScheme+" ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, identityScheme+" "))
	}
	return ""
}
