// Package notify is the outbound boundary toward whatever delivers
// approval-workflow notifications (email, chat, in-app). The governance core
// only depends on the Dispatcher interface; delivery lives elsewhere.
package notify

import (
	"context"

	"github.com/rcolomer-cos/E-QMS-sub006/internal/db/models"
	"go.uber.org/zap"
)

type Dispatcher interface {
	// DocumentApproved informs the document creator of an approval.
	DocumentApproved(ctx context.Context, doc *models.Document, approverID uint, comment string) error
	// DocumentRejected informs the document creator of a rejection and its reason.
	DocumentRejected(ctx context.Context, doc *models.Document, reviewerID uint, reason string) error
	// ChangesRequested informs the document creator what a reviewer wants changed.
	ChangesRequested(ctx context.Context, doc *models.Document, reviewerID uint, changes string) error
}

// LogDispatcher writes notification intents to the log. It stands in for a
// real delivery channel during development and in tests.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With(zap.String("component", "notify"))}
}

func (d *LogDispatcher) DocumentApproved(ctx context.Context, doc *models.Document, approverID uint, comment string) error {
	d.logger.Info("document approved notification",
		zap.String("doc_id", doc.ID),
		zap.Uint("creator_id", doc.CreatedBy),
		zap.Uint("approver_id", approverID),
		zap.String("comment", comment))
	return nil
}

func (d *LogDispatcher) DocumentRejected(ctx context.Context, doc *models.Document, reviewerID uint, reason string) error {
	d.logger.Info("document rejected notification",
		zap.String("doc_id", doc.ID),
		zap.Uint("creator_id", doc.CreatedBy),
		zap.Uint("reviewer_id", reviewerID),
		zap.String("reason", reason))
	return nil
}

func (d *LogDispatcher) ChangesRequested(ctx context.Context, doc *models.Document, reviewerID uint, changes string) error {
	d.logger.Info("changes requested notification",
		zap.String("doc_id", doc.ID),
		zap.Uint("creator_id", doc.CreatedBy),
		zap.Uint("reviewer_id", reviewerID),
		zap.String("changes", changes))
	return nil
}
