package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/utils"
	"github.com/rcolomer-cos/E-QMS-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTokenNotFound       = errors.New("auditor token not found")
	ErrTokenRevoked        = errors.New("auditor token has been revoked")
	ErrTokenExpired        = errors.New("auditor token has expired")
	ErrTokenExhausted      = errors.New("auditor token use budget exhausted")
	ErrPurposeRequired     = errors.New("a non-empty purpose is required")
	ErrInvalidScope        = errors.New("invalid token scope type")
	ErrScopeEntityRequired = errors.New("entity-scoped tokens require a scope entity id")
	ErrExpiryInPast        = errors.New("token expiry must be in the future")
)

// TokenService owns AuditorAccessToken state. Raw token values exist only in
// the Issue response; lookups go through the stored SHA-256 hash.
type TokenService struct {
	db       *gorm.DB
	logger   *zap.Logger
	metrics  *metrics.MetricsCollector
	stopChan chan struct{}
}

func NewTokenService(db *gorm.DB, logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *TokenService {
	return &TokenService{
		db:       db,
		logger:   logger.With(zap.String("service", "token_service")),
		metrics:  metricsCollector,
		stopChan: make(chan struct{}),
	}
}

type IssueTokenInput struct {
	AuditorName      string
	AuditorEmail     string
	ScopeType        models.TokenScope
	ScopeEntityID    *string
	AllowedResources []string
	ExpiresAt        time.Time
	MaxUses          *int
	Purpose          string
	Notes            string
	CreatedBy        uint
}

// Issue creates a token and returns the raw value exactly once.
func (ts *TokenService) Issue(ctx context.Context, in IssueTokenInput) (*models.AuditorAccessToken, string, error) {
	if strings.TrimSpace(in.Purpose) == "" {
		return nil, "", ErrPurposeRequired
	}
	if !in.ScopeType.Valid() {
		return nil, "", ErrInvalidScope
	}
	if in.ScopeType.EntityScoped() && (in.ScopeEntityID == nil || *in.ScopeEntityID == "") {
		return nil, "", ErrScopeEntityRequired
	}
	if !in.ExpiresAt.After(time.Now()) {
		return nil, "", ErrExpiryInPast
	}

	raw, prefix, hash := utils.MintAuditorToken()
	token := &models.AuditorAccessToken{
		TokenPrefix:      prefix,
		TokenHash:        hash,
		AuditorName:      in.AuditorName,
		AuditorEmail:     in.AuditorEmail,
		ScopeType:        in.ScopeType,
		ScopeEntityID:    in.ScopeEntityID,
		AllowedResources: strings.Join(in.AllowedResources, ","),
		ExpiresAt:        in.ExpiresAt.UTC(),
		MaxUses:          in.MaxUses,
		Purpose:          in.Purpose,
		Notes:            in.Notes,
		CreatedBy:        in.CreatedBy,
	}

	if err := ts.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, "", err
	}

	ts.metrics.IncrementCounter("auditor_tokens_issued")
	ts.logger.Info("Auditor token issued",
		zap.Uint("token_id", token.ID),
		zap.String("prefix", token.TokenPrefix),
		zap.String("scope", string(token.ScopeType)),
		zap.String("auditor", token.AuditorName),
		zap.Time("expires_at", token.ExpiresAt))
	return token, raw, nil
}

// Validate resolves a raw token value and checks revocation, expiry and the
// remaining-use budget, in that order. A successful call consumes one use.
func (ts *TokenService) Validate(ctx context.Context, raw string) (*models.AuditorAccessToken, error) {
	if !utils.LooksLikeAuditorToken(raw) {
		return nil, ErrTokenNotFound
	}

	var token models.AuditorAccessToken
	err := ts.db.WithContext(ctx).
		First(&token, "token_hash = ?", utils.HashToken(raw)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	if token.Revoked {
		return nil, ErrTokenRevoked
	}
	if time.Now().After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	// The budget check and increment share one conditional update so two
	// concurrent requests cannot both spend the last use.
	q := ts.db.WithContext(ctx).Model(&models.AuditorAccessToken{}).
		Where("id = ? AND revoked = ?", token.ID, false)
	if token.MaxUses != nil {
		q = q.Where("use_count < ?", *token.MaxUses)
	}
	res := q.Update("use_count", gorm.Expr("use_count + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTokenExhausted
	}

	token.UseCount++
	return &token, nil
}

// Revoke disables a token immediately. The reason is mandatory.
func (ts *TokenService) Revoke(ctx context.Context, tokenID uint, actorID uint, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}

	now := time.Now().UTC()
	res := ts.db.WithContext(ctx).Model(&models.AuditorAccessToken{}).
		Where("id = ? AND revoked = ?", tokenID, false).
		Updates(map[string]interface{}{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
			"revoked_by":     actorID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		ts.db.WithContext(ctx).Model(&models.AuditorAccessToken{}).Where("id = ?", tokenID).Count(&count)
		if count == 0 {
			return ErrTokenNotFound
		}
		return ErrTokenRevoked
	}

	ts.metrics.IncrementCounter("auditor_tokens_revoked")
	ts.logger.Info("Auditor token revoked",
		zap.Uint("token_id", tokenID),
		zap.Uint("revoked_by", actorID),
		zap.String("reason", reason))
	return nil
}

func (ts *TokenService) Get(ctx context.Context, tokenID uint) (*models.AuditorAccessToken, error) {
	var token models.AuditorAccessToken
	if err := ts.db.WithContext(ctx).First(&token, tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (ts *TokenService) List(ctx context.Context) ([]models.AuditorAccessToken, error) {
	var tokens []models.AuditorAccessToken
	if err := ts.db.WithContext(ctx).Order("created_at DESC").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// CleanupExpired garbage-collects tokens that have been expired or revoked
// for longer than the retention window.
func (ts *TokenService) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := ts.db.WithContext(ctx).Unscoped().
		Where("expires_at < ? OR (revoked = ? AND revoked_at < ?)", cutoff, true, cutoff).
		Delete(&models.AuditorAccessToken{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		ts.logger.Info("Expired auditor tokens cleaned up", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

// StartCleanup runs CleanupExpired on a ticker until Stop is called.
func (ts *TokenService) StartCleanup(interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := ts.CleanupExpired(context.Background(), retention); err != nil {
					ts.logger.Error("token cleanup failed", zap.Error(err))
				}
			case <-ts.stopChan:
				return
			}
		}
	}()
}

func (ts *TokenService) Stop() {
	close(ts.stopChan)
}
