package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/authz"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
)

// Gin context keys shared between middleware and handlers. The document is
// fetched once per request and reused; permission decision and mutation
// observe the same snapshot.
const (
	principalKey    = "principal"
	documentKey     = "document"
	auditorTokenKey = "auditor_token"
)

func SetPrincipal(c *gin.Context, p authz.Principal) {
	c.Set(principalKey, p)
}

func PrincipalFromContext(c *gin.Context) (authz.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return authz.Principal{}, false
	}
	p, ok := v.(authz.Principal)
	return p, ok
}

func SetDocument(c *gin.Context, doc *models.Document) {
	c.Set(documentKey, doc)
}

func DocumentFromContext(c *gin.Context) (*models.Document, bool) {
	v, ok := c.Get(documentKey)
	if !ok {
		return nil, false
	}
	doc, ok := v.(*models.Document)
	return doc, ok
}

func SetAuditorToken(c *gin.Context, token *models.AuditorAccessToken) {
	c.Set(auditorTokenKey, token)
}

func AuditorTokenFromContext(c *gin.Context) (*models.AuditorAccessToken, bool) {
	v, ok := c.Get(auditorTokenKey)
	if !ok {
		return nil, false
	}
	token, ok := v.(*models.AuditorAccessToken)
	return token, ok
}
