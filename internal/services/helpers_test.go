package services

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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
	return database
}

// recordingDispatcher captures notification calls for assertions.
type recordingDispatcher struct {
	mu        sync.Mutex
	approved  []string
	rejected  []string
	requested []string
	reasons   []string
}

func (d *recordingDispatcher) DocumentApproved(ctx context.Context, doc *models.Document, approverID uint, comment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.approved = append(d.approved, doc.ID)
	return nil
}

func (d *recordingDispatcher) DocumentRejected(ctx context.Context, doc *models.Document, reviewerID uint, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected = append(d.rejected, doc.ID)
	d.reasons = append(d.reasons, reason)
	return nil
}

func (d *recordingDispatcher) ChangesRequested(ctx context.Context, doc *models.Document, reviewerID uint, changes string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requested = append(d.requested, doc.ID)
	return nil
}

func newTestDocumentService(t *testing.T) (*DocumentService, *recordingDispatcher) {
	t.Helper()
	dispatcher := &recordingDispatcher{}
	ds := NewDocumentService(newTestDB(t), dispatcher, zap.NewNop(), metrics.NewMetricsCollector())
	return ds, dispatcher
}

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	return NewTokenService(newTestDB(t), zap.NewNop(), metrics.NewMetricsCollector())
}
