package services

import (
	"context"
	"testing"

	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"go.uber.org/zap"
)

// The sink is eventually consistent: tests stop the worker to flush the
// queue before asserting on storage.
func TestAccessLogDrainsToStorage(t *testing.T) {
	database := newTestDB(t)
	s := NewAccessLogService(database, zap.NewNop(), 16)

	s.Record(models.AccessLogEntry{
		AuditorName: "External Auditor",
		Action:      models.AccessActionView,
		Category:    models.AccessCategoryDataAccess,
		Resource:    "documents",
		ResourceID:  "doc-42",
		Success:     true,
		StatusCode:  200,
	})
	s.Record(models.AccessLogEntry{
		Action:     models.AccessActionView,
		Category:   models.AccessCategoryAuthentication,
		Success:    false,
		StatusCode: 403,
	})

	s.Stop()

	var count int64
	database.Model(&models.AccessLogEntry{}).Count(&count)
	if count != 2 {
		t.Fatalf("persisted entries = %d, want 2", count)
	}

	var entries []models.AccessLogEntry
	database.Order("id ASC").Find(&entries)
	if entries[0].OccurredAt.IsZero() {
		t.Error("OccurredAt not defaulted")
	}
	if entries[1].Success {
		t.Error("failure entry persisted as success")
	}
}

// A late Record against a stopped sink is dropped, never a panic.
func TestAccessLogRecordAfterStop(t *testing.T) {
	database := newTestDB(t)
	s := NewAccessLogService(database, zap.NewNop(), 16)

	s.Record(models.AccessLogEntry{
		Action:   models.AccessActionView,
		Category: models.AccessCategoryDataAccess,
		Resource: "documents",
		Success:  true,
	})
	s.Stop()

	s.Record(models.AccessLogEntry{
		Action:   models.AccessActionView,
		Category: models.AccessCategoryDataAccess,
		Resource: "documents",
		Success:  true,
	})
	s.Stop()

	var count int64
	database.Model(&models.AccessLogEntry{}).Count(&count)
	if count != 1 {
		t.Fatalf("persisted entries = %d, want 1", count)
	}
}

func TestAccessLogList(t *testing.T) {
	database := newTestDB(t)
	s := NewAccessLogService(database, zap.NewNop(), 16)

	for i := 0; i < 5; i++ {
		s.Record(models.AccessLogEntry{
			Action:   models.AccessActionList,
			Category: models.AccessCategoryDataAccess,
			Resource: "documents",
			Success:  true,
		})
	}
	s.Stop()

	entries, err := s.List(context.Background(), 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("List() returned %d entries, want 3", len(entries))
	}
}
