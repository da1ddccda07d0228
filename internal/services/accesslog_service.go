package services

import (
	"context"
	"sync"
	"time"

	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccessLogService is the durable sink for auditor access events. Writers
// push entries onto a buffered channel and return immediately; a single
// worker drains the channel into storage. The sink is therefore eventually
// consistent with the responses it describes, and a persistence failure can
// never affect a response that has already been sent.
type AccessLogService struct {
	db      *gorm.DB
	logger  *zap.Logger
	entries chan models.AccessLogEntry
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewAccessLogService(db *gorm.DB, logger *zap.Logger, buffer int) *AccessLogService {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AccessLogService{
		db:      db,
		logger:  logger.With(zap.String("service", "access_log_service")),
		entries: make(chan models.AccessLogEntry, buffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.drain()
	return s
}

// Record enqueues an entry without blocking. If the buffer is full, or the
// sink has already been stopped, the entry is dropped with a warning; the
// request path always wins over the log. The entries channel is never
// closed, so a late Record can never panic.
func (s *AccessLogService) Record(entry models.AccessLogEntry) {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	select {
	case <-s.quit:
		s.logger.Warn("access log stopped, dropping entry",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource))
		return
	default:
	}
	select {
	case s.entries <- entry:
	default:
		s.logger.Warn("access log buffer full, dropping entry",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource))
	}
}

func (s *AccessLogService) drain() {
	defer close(s.done)
	for {
		select {
		case entry := <-s.entries:
			s.persist(entry)
		case <-s.quit:
			// Flush whatever is still buffered, then exit.
			for {
				select {
				case entry := <-s.entries:
					s.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *AccessLogService) persist(entry models.AccessLogEntry) {
	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.Error("failed to persist access log entry",
			zap.Error(err),
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource))
	}
}

// Stop flushes the queue and stops the worker. Used at shutdown and by
// tests that need the sink to be consistent before asserting. Safe to call
// more than once, and Record stays safe (a no-op) afterwards.
func (s *AccessLogService) Stop() {
	s.once.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *AccessLogService) List(ctx context.Context, limit int) ([]models.AccessLogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	var entries []models.AccessLogEntry
	if err := s.db.WithContext(ctx).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
