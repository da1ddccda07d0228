package models

import (
	"time"

	"gorm.io/gorm"
)

// Access log actions and categories.
const (
	AccessActionView = "VIEW"
	AccessActionList = "LIST"

	AccessCategoryAuthentication = "AUTHENTICATION"
	AccessCategoryAuthorization  = "AUTHORIZATION"
	AccessCategoryDataAccess     = "DATA_ACCESS"
)

// AccessLogEntry records one auditor-token interaction with the API.
// Rows are append-only; the sink is eventually consistent with the
// responses it describes.
type AccessLogEntry struct {
	gorm.Model
	TokenID     *uint `gorm:"index"`
	AuditorName string
	Action      string `gorm:"not null"`
	Category    string `gorm:"not null"`
	Resource    string
	ResourceID  string
	Success     bool `gorm:"not null"`
	StatusCode  int
	ClientIP    string
	UserAgent   string
	OccurredAt  time.Time `gorm:"not null"`
}
