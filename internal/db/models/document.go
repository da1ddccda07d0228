package models

import (
	"time"

	"gorm.io/gorm"
)

type DocumentStatus string

const (
	StatusDraft    DocumentStatus = "DRAFT"
	StatusReview   DocumentStatus = "REVIEW"
	StatusApproved DocumentStatus = "APPROVED"
	StatusObsolete DocumentStatus = "OBSOLETE"
)

type Document struct {
	gorm.Model
	ID                string         `gorm:"primaryKey"`
	Title             string         `gorm:"not null"`
	Status            DocumentStatus `gorm:"not null;default:'DRAFT'"`
	Version           string         `gorm:"not null;default:'1.0'"`
	OwnerID           uint           `gorm:"index"`
	CreatedBy         uint           `gorm:"not null"`
	ApprovedBy        *uint
	ApprovedAt        *time.Time
	FilePath          string
	FileName          string
	FileSize          int64
	EffectiveDate     *time.Time
	ReviewDate        *time.Time
	ExpiryDate        *time.Time
	PreviousVersionID *string `gorm:"index"` // succession chain; nil for first version
}

// Mutable reports whether non-privileged editors may still change the record.
func (d *Document) Mutable() bool {
	return d.Status == StatusDraft || d.Status == StatusReview
}
