package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"github.com/rcolomer-cos/E-QMS-sub006/internal/notify"
	"github.com/rcolomer-cos/E-QMS-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrTitleRequired    = errors.New("document title is required")
	ErrReasonRequired   = errors.New("a non-empty reason is required")
	ErrChangesRequired  = errors.New("a non-empty change description is required")

	// ErrStatusConflict means the conditional status update matched no row:
	// either the document is not in the expected status or a concurrent
	// transition won the race. First write wins.
	ErrStatusConflict = errors.New("document is not in the expected status")
)

// DocumentService owns Document and DocumentRevision rows. Every status
// transition and its ledger row commit in one transaction; nothing else
// writes to either table.
type DocumentService struct {
	db       *gorm.DB
	logger   *zap.Logger
	metrics  *metrics.MetricsCollector
	notifier notify.Dispatcher
}

func NewDocumentService(db *gorm.DB, notifier notify.Dispatcher, logger *zap.Logger, metricsCollector *metrics.MetricsCollector) *DocumentService {
	return &DocumentService{
		db:       db,
		logger:   logger.With(zap.String("service", "document_service")),
		metrics:  metricsCollector,
		notifier: notifier,
	}
}

type CreateDocumentInput struct {
	Title         string
	Version       string
	OwnerID       uint
	CreatedBy     uint
	FilePath      string
	FileName      string
	FileSize      int64
	EffectiveDate *time.Time
	ReviewDate    *time.Time
	ExpiryDate    *time.Time
}

func (ds *DocumentService) Create(ctx context.Context, in CreateDocumentInput) (*models.Document, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrTitleRequired
	}
	version := in.Version
	if version == "" {
		version = "1.0"
	}

	doc := &models.Document{
		ID:            uuid.New().String(),
		Title:         in.Title,
		Status:        models.StatusDraft,
		Version:       version,
		OwnerID:       in.OwnerID,
		CreatedBy:     in.CreatedBy,
		FilePath:      in.FilePath,
		FileName:      in.FileName,
		FileSize:      in.FileSize,
		EffectiveDate: in.EffectiveDate,
		ReviewDate:    in.ReviewDate,
		ExpiryDate:    in.ExpiryDate,
	}

	if err := ds.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}

	ds.metrics.IncrementCounter("documents_created")
	ds.logger.Info("Document created",
		zap.String("doc_id", doc.ID),
		zap.String("version", doc.Version),
		zap.Uint("created_by", doc.CreatedBy))
	return doc, nil
}

func (ds *DocumentService) Get(ctx context.Context, docID string) (*models.Document, error) {
	var doc models.Document
	if err := ds.db.WithContext(ctx).First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (ds *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	if err := ds.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

type UpdateDocumentInput struct {
	Title         *string
	Version       *string
	Status        *models.DocumentStatus // privileged administrative correction only
	FilePath      *string
	FileName      *string
	FileSize      *int64
	EffectiveDate *time.Time
	ReviewDate    *time.Time
	ExpiryDate    *time.Time

	// When set, the edit is recorded in the revision ledger as a plain
	// content update. A status change always produces a ledger row.
	ChangeDescription string
	ChangeReason      string
}

// Update applies a field patch. The caller has already run the edit
// predicate against the same snapshot passed in here.
func (ds *DocumentService) Update(ctx context.Context, doc *models.Document, actorID uint, in UpdateDocumentInput) (*models.Document, error) {
	fields := map[string]interface{}{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, ErrTitleRequired
		}
		fields["title"] = *in.Title
	}
	if in.Version != nil {
		fields["version"] = *in.Version
	}
	if in.Status != nil {
		fields["status"] = *in.Status
	}
	if in.FilePath != nil {
		fields["file_path"] = *in.FilePath
	}
	if in.FileName != nil {
		fields["file_name"] = *in.FileName
	}
	if in.FileSize != nil {
		fields["file_size"] = *in.FileSize
	}
	if in.EffectiveDate != nil {
		fields["effective_date"] = *in.EffectiveDate
	}
	if in.ReviewDate != nil {
		fields["review_date"] = *in.ReviewDate
	}
	if in.ExpiryDate != nil {
		fields["expiry_date"] = *in.ExpiryDate
	}

	statusBefore := doc.Status
	statusAfter := statusBefore
	if in.Status != nil {
		statusAfter = *in.Status
	}

	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			res := tx.Model(&models.Document{}).
				Where("id = ? AND status = ?", doc.ID, statusBefore).
				Updates(fields)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrStatusConflict
			}
		}

		if in.ChangeDescription != "" || statusAfter != statusBefore {
			return ds.appendRevision(tx, doc.ID, actorID, models.ChangeTypeUpdate,
				in.ChangeDescription, in.ChangeReason, statusBefore, statusAfter)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ds.metrics.IncrementCounter("documents_updated")
	return ds.Get(ctx, doc.ID)
}

// SubmitForReview moves a draft into review.
func (ds *DocumentService) SubmitForReview(ctx context.Context, doc *models.Document, actorID uint) (*models.Document, error) {
	err := ds.transition(ctx, doc, actorID, models.StatusDraft, models.StatusReview,
		models.ChangeTypeSubmit, "Submitted for review", "", nil)
	if err != nil {
		return nil, err
	}
	ds.metrics.IncrementCounter("documents_submitted")
	return ds.Get(ctx, doc.ID)
}

// Approve moves a document under review to approved, stamps the approver and
// notifies the creator.
func (ds *DocumentService) Approve(ctx context.Context, doc *models.Document, actorID uint, comment string) (*models.Document, error) {
	start := time.Now()
	now := time.Now().UTC()
	extra := map[string]interface{}{
		"approved_by": actorID,
		"approved_at": now,
	}
	description := comment
	if description == "" {
		description = "Approved"
	}

	err := ds.transition(ctx, doc, actorID, models.StatusReview, models.StatusApproved,
		models.ChangeTypeApprove, description, "", extra)
	if err != nil {
		return nil, err
	}

	updated, err := ds.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	if err := ds.notifier.DocumentApproved(ctx, updated, actorID, comment); err != nil {
		ds.logger.Warn("approval notification failed", zap.Error(err), zap.String("doc_id", doc.ID))
	}

	ds.metrics.IncrementCounter("documents_approved")
	ds.metrics.ObserveLatency("document_approve", time.Since(start))
	ds.logger.Info("Document approved", zap.String("doc_id", doc.ID), zap.Uint("approved_by", actorID))
	return updated, nil
}

// Reject sends a document under review back to draft. The reason is
// mandatory and lands in the ledger.
func (ds *DocumentService) Reject(ctx context.Context, doc *models.Document, actorID uint, reason string) (*models.Document, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	err := ds.transition(ctx, doc, actorID, models.StatusReview, models.StatusDraft,
		models.ChangeTypeUpdate, "Rejected: "+reason, reason, nil)
	if err != nil {
		return nil, err
	}

	updated, err := ds.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	if err := ds.notifier.DocumentRejected(ctx, updated, actorID, reason); err != nil {
		ds.logger.Warn("rejection notification failed", zap.Error(err), zap.String("doc_id", doc.ID))
	}

	ds.metrics.IncrementCounter("documents_rejected")
	ds.logger.Info("Document rejected", zap.String("doc_id", doc.ID), zap.Uint("reviewer_id", actorID))
	return updated, nil
}

// RequestChanges sends a document under review back to draft with a change
// description for the author.
func (ds *DocumentService) RequestChanges(ctx context.Context, doc *models.Document, actorID uint, changes string) (*models.Document, error) {
	if strings.TrimSpace(changes) == "" {
		return nil, ErrChangesRequired
	}

	err := ds.transition(ctx, doc, actorID, models.StatusReview, models.StatusDraft,
		models.ChangeTypeUpdate, "Changes requested: "+changes, "", nil)
	if err != nil {
		return nil, err
	}

	updated, err := ds.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	if err := ds.notifier.ChangesRequested(ctx, updated, actorID, changes); err != nil {
		ds.logger.Warn("change-request notification failed", zap.Error(err), zap.String("doc_id", doc.ID))
	}

	ds.metrics.IncrementCounter("documents_changes_requested")
	return updated, nil
}

// CreateVersion clones a document into a fresh draft linked to its
// predecessor. The source document is left untouched; history is never
// rewritten in place.
func (ds *DocumentService) CreateVersion(ctx context.Context, src *models.Document, actorID uint, version string) (*models.Document, error) {
	if version == "" {
		version = nextVersion(src.Version)
	}

	prevID := src.ID
	doc := &models.Document{
		ID:                uuid.New().String(),
		Title:             src.Title,
		Status:            models.StatusDraft,
		Version:           version,
		OwnerID:           src.OwnerID,
		CreatedBy:         actorID,
		FilePath:          src.FilePath,
		FileName:          src.FileName,
		FileSize:          src.FileSize,
		EffectiveDate:     src.EffectiveDate,
		ReviewDate:        src.ReviewDate,
		ExpiryDate:        src.ExpiryDate,
		PreviousVersionID: &prevID,
	}

	if err := ds.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}

	ds.metrics.IncrementCounter("document_versions_created")
	ds.logger.Info("New document version created",
		zap.String("doc_id", doc.ID),
		zap.String("previous_id", prevID),
		zap.String("version", version))
	return doc, nil
}

// Delete removes a document and its ledger. Destructive; the route gate is
// the only guard.
func (ds *DocumentService) Delete(ctx context.Context, docID string) error {
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("document_id = ?", docID).Delete(&models.DocumentRevision{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id = ?", docID).Delete(&models.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDocumentNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	ds.metrics.IncrementCounter("documents_deleted")
	ds.logger.Info("Document deleted", zap.String("doc_id", docID))
	return nil
}

func (ds *DocumentService) ListRevisions(ctx context.Context, docID string) ([]models.DocumentRevision, error) {
	var revisions []models.DocumentRevision
	if err := ds.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("revision_number ASC").
		Find(&revisions).Error; err != nil {
		return nil, err
	}
	return revisions, nil
}

// transition performs a conditional status update keyed on the expected
// prior status and appends the matching ledger row, all in one transaction.
// A concurrent transition that already moved the document makes the
// conditional update match nothing, so exactly one of two racing calls can
// succeed.
func (ds *DocumentService) transition(ctx context.Context, doc *models.Document, actorID uint,
	from, to models.DocumentStatus, changeType, description, reason string,
	extraFields map[string]interface{}) error {

	fields := map[string]interface{}{"status": to}
	for k, v := range extraFields {
		fields[k] = v
	}

	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Document{}).
			Where("id = ? AND status = ?", doc.ID, from).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusConflict
		}
		return ds.appendRevision(tx, doc.ID, actorID, changeType, description, reason, from, to)
	})
}

// appendRevision writes the next ledger row for the document. Numbering is
// per-document, gapless, and assigned inside the caller's transaction.
func (ds *DocumentService) appendRevision(tx *gorm.DB, docID string, authorID uint,
	changeType, description, reason string, before, after models.DocumentStatus) error {

	var current int
	if err := tx.Model(&models.DocumentRevision{}).
		Where("document_id = ?", docID).
		Select("COALESCE(MAX(revision_number), 0)").
		Scan(&current).Error; err != nil {
		return fmt.Errorf("failed to read revision sequence: %w", err)
	}

	rev := &models.DocumentRevision{
		DocumentID:        docID,
		RevisionNumber:    current + 1,
		AuthorID:          authorID,
		ChangeType:        changeType,
		ChangeDescription: description,
		ChangeReason:      reason,
		StatusBefore:      before,
		StatusAfter:       after,
		RevisionDate:      time.Now().UTC(),
	}
	if err := tx.Create(rev).Error; err != nil {
		// Two concurrent edits computed the same next number; the unique
		// index on (document_id, revision_number) rejects the second one.
		// First write wins, same as a lost status race.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrStatusConflict
		}
		return err
	}
	return nil
}

// nextVersion bumps the major component of a dotted version string.
// "2.1" becomes "3.0"; anything unparseable restarts at "1.0".
func nextVersion(v string) string {
	major := strings.SplitN(v, ".", 2)[0]
	n, err := strconv.Atoi(major)
	if err != nil {
		return "1.0"
	}
	return strconv.Itoa(n+1) + ".0"
}
