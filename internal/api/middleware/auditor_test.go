package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/authz"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/services"
	"github.com/rcolomer-cos/E-QMS-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, credential string) (*authz.Principal, error) {
	if credential == "good-session" {
		return &authz.Principal{UserID: 9, Name: "qa.manager", Roles: []models.Role{models.RoleManager}}, nil
	}
	return nil, errors.New("unknown session")
}

type gatewayFixture struct {
	db        *gorm.DB
	tokens    *services.TokenService
	accessLog *services.AccessLogService
	engine    *gin.Engine
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	collector := metrics.NewMetricsCollector()
	tokens := services.NewTokenService(database, zap.NewNop(), collector)
	accessLog := services.NewAccessLogService(database, zap.NewNop(), 64)

	auditor := NewAuditorMiddleware(tokens, accessLog, zap.NewNop())
	auth := NewAuthMiddleware(stubVerifier{}, zap.NewNop())

	ok := func(c *gin.Context) {
		p, _ := PrincipalFromContext(c)
		c.JSON(http.StatusOK, gin.H{"principal": p.Name})
	}

	engine := gin.New()
	docs := engine.Group("/api/documents")
	docs.Use(FlexibleAuth(auditor, auth))
	docs.GET("", ok)
	docs.GET("/:id", ok)
	docs.PUT("/:id", ok)

	return &gatewayFixture{db: database, tokens: tokens, accessLog: accessLog, engine: engine}
}

func (f *gatewayFixture) issue(t *testing.T, mutate func(*services.IssueTokenInput)) (*models.AuditorAccessToken, string) {
	t.Helper()
	in := services.IssueTokenInput{
		AuditorName:  "External Auditor",
		AuditorEmail: "auditor@example.org",
		ScopeType:    models.ScopeFullReadOnly,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		Purpose:      "supplier audit",
		CreatedBy:    1,
	}
	if mutate != nil {
		mutate(&in)
	}
	token, raw, err := f.tokens.Issue(context.Background(), in)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token, raw
}

func (f *gatewayFixture) request(method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

// failedAuthEntries flushes the sink and counts failed authentication rows.
func (f *gatewayFixture) failedAuthEntries(t *testing.T) int64 {
	t.Helper()
	f.accessLog.Stop()
	var count int64
	f.db.Model(&models.AccessLogEntry{}).
		Where("category = ? AND success = ?", models.AccessCategoryAuthentication, false).
		Count(&count)
	return count
}

func TestGatewayNoCredentialFallsThroughToIdentity(t *testing.T) {
	f := newGatewayFixture(t)

	if rec := f.request(http.MethodGet, "/api/documents", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no credential: status = %d, want 401", rec.Code)
	}
	if rec := f.request(http.MethodGet, "/api/documents", "Bearer good-session"); rec.Code != http.StatusOK {
		t.Errorf("identity credential: status = %d, want 200", rec.Code)
	}
}

func TestGatewayEmptyTokenValue(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(http.MethodGet, "/api/documents", AuditorScheme+" ")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("empty token: status = %d, want 401", rec.Code)
	}
}

// Only the exact "AuditorToken <value>" form selects the gateway. A scheme
// that shares the prefix without a separator is identity-authenticated,
// which surfaces as 401, never as a 403 from the token path.
func TestGatewaySchemeRequiresSeparator(t *testing.T) {
	f := newGatewayFixture(t)

	for _, header := range []string{AuditorScheme, AuditorScheme + "XYZ", AuditorScheme + "-custom abc"} {
		if rec := f.request(http.MethodGet, "/api/documents", header); rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestGatewayUnknownToken(t *testing.T) {
	f := newGatewayFixture(t)

	rec := f.request(http.MethodGet, "/api/documents", AuditorScheme+" adt_bogus")
	if rec.Code != http.StatusForbidden {
		t.Errorf("unknown token: status = %d, want 403", rec.Code)
	}
	if got := f.failedAuthEntries(t); got != 1 {
		t.Errorf("failed auth log entries = %d, want 1", got)
	}
}

// An expired token exists but is invalid: 403, never 401.
func TestGatewayExpiredToken(t *testing.T) {
	f := newGatewayFixture(t)
	token, raw := f.issue(t, nil)

	f.db.Model(&models.AuditorAccessToken{}).
		Where("id = ?", token.ID).
		Update("expires_at", time.Now().Add(-time.Hour))

	rec := f.request(http.MethodGet, "/api/documents", AuditorScheme+" "+raw)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expired token: status = %d, want 403", rec.Code)
	}
	if got := f.failedAuthEntries(t); got != 1 {
		t.Errorf("failed auth log entries = %d, want 1", got)
	}
}

func TestGatewayRevokedToken(t *testing.T) {
	f := newGatewayFixture(t)
	token, raw := f.issue(t, nil)

	if err := f.tokens.Revoke(context.Background(), token.ID, 1, "compromised"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	rec := f.request(http.MethodGet, "/api/documents", AuditorScheme+" "+raw)
	if rec.Code != http.StatusForbidden {
		t.Errorf("revoked token: status = %d, want 403", rec.Code)
	}
	if got := f.failedAuthEntries(t); got != 1 {
		t.Errorf("failed auth log entries = %d, want 1", got)
	}
}

// Read-only enforcement beats every other consideration, including
// full_read_only scope.
func TestGatewayRejectsWrites(t *testing.T) {
	f := newGatewayFixture(t)
	_, raw := f.issue(t, nil)

	rec := f.request(http.MethodPut, "/api/documents/42", AuditorScheme+" "+raw)
	if rec.Code != http.StatusForbidden {
		t.Errorf("write with token: status = %d, want 403", rec.Code)
	}
}

func TestGatewayEntityScope(t *testing.T) {
	f := newGatewayFixture(t)
	entity := "42"
	_, raw := f.issue(t, func(in *services.IssueTokenInput) {
		in.ScopeType = models.ScopeSpecificDocument
		in.ScopeEntityID = &entity
	})

	rec := f.request(http.MethodGet, "/api/documents/7", AuditorScheme+" "+raw)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("out-of-scope entity: status = %d, want 403", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if payload["requested_id"] != "7" || payload["allowed_id"] != "42" {
		t.Errorf("scope mismatch payload = %v, want requested 7 / allowed 42", payload)
	}

	if rec := f.request(http.MethodGet, "/api/documents/42", AuditorScheme+" "+raw); rec.Code != http.StatusOK {
		t.Errorf("in-scope entity: status = %d, want 200", rec.Code)
	}
}

func TestGatewayResourceRestriction(t *testing.T) {
	f := newGatewayFixture(t)
	entity := "5"
	_, raw := f.issue(t, func(in *services.IssueTokenInput) {
		in.ScopeType = models.ScopeSpecificAudit
		in.ScopeEntityID = &entity
		in.AllowedResources = []string{"audits"}
	})

	rec := f.request(http.MethodGet, "/api/documents", AuditorScheme+" "+raw)
	if rec.Code != http.StatusForbidden {
		t.Errorf("restricted resource: status = %d, want 403", rec.Code)
	}
}

func TestGatewayUseBudget(t *testing.T) {
	f := newGatewayFixture(t)
	maxUses := 1
	_, raw := f.issue(t, func(in *services.IssueTokenInput) { in.MaxUses = &maxUses })

	if rec := f.request(http.MethodGet, "/api/documents", AuditorScheme+" "+raw); rec.Code != http.StatusOK {
		t.Fatalf("first use: status = %d, want 200", rec.Code)
	}
	if rec := f.request(http.MethodGet, "/api/documents", AuditorScheme+" "+raw); rec.Code != http.StatusForbidden {
		t.Errorf("over budget: status = %d, want 403", rec.Code)
	}
}

func TestGatewayLogsSuccessfulAccess(t *testing.T) {
	f := newGatewayFixture(t)
	_, raw := f.issue(t, nil)

	if rec := f.request(http.MethodGet, "/api/documents/abc", AuditorScheme+" "+raw); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	f.accessLog.Stop()
	var entries []models.AccessLogEntry
	f.db.Where("category = ?", models.AccessCategoryDataAccess).Find(&entries)
	if len(entries) != 1 {
		t.Fatalf("data access entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if !entry.Success || entry.StatusCode != http.StatusOK {
		t.Errorf("entry = %+v, want success 200", entry)
	}
	if entry.Resource != "documents" || entry.ResourceID != "abc" {
		t.Errorf("entry resource = %s/%s, want documents/abc", entry.Resource, entry.ResourceID)
	}
	if entry.Action != models.AccessActionView {
		t.Errorf("entry action = %s, want %s", entry.Action, models.AccessActionView)
	}
}
