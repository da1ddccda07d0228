package models

import (
	"time"

	"gorm.io/gorm"
)

// Revision change type tags. Free-form column; these are the values the
// lifecycle writes.
const (
	ChangeTypeSubmit  = "submit"
	ChangeTypeApprove = "approve"
	ChangeTypeUpdate  = "update"
)

// DocumentRevision is one append-only ledger row per workflow action.
// Rows are never updated or deleted once written. The composite unique
// index makes per-document numbering collision-proof: when two concurrent
// edits compute the same next number, the second insert fails instead of
// duplicating a ledger position.
type DocumentRevision struct {
	gorm.Model
	DocumentID        string `gorm:"uniqueIndex:idx_document_revision;not null"`
	RevisionNumber    int    `gorm:"uniqueIndex:idx_document_revision;not null"`
	AuthorID          uint   `gorm:"not null"`
	ChangeType        string `gorm:"not null"`
	ChangeDescription string
	ChangeReason      string
	StatusBefore      DocumentStatus
	StatusAfter       DocumentStatus
	RevisionDate      time.Time `gorm:"not null"`
}
