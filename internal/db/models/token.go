package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type TokenScope string

const (
	ScopeFullReadOnly     TokenScope = "full_read_only"
	ScopeSpecificAudit    TokenScope = "specific_audit"
	ScopeSpecificDocument TokenScope = "specific_document"
	ScopeSpecificNCR      TokenScope = "specific_ncr"
	ScopeSpecificCAPA     TokenScope = "specific_capa"
)

// EntityScoped reports whether the scope pins the token to a single entity id.
func (s TokenScope) EntityScoped() bool {
	switch s {
	case ScopeSpecificAudit, ScopeSpecificDocument, ScopeSpecificNCR, ScopeSpecificCAPA:
		return true
	}
	return false
}

func (s TokenScope) Valid() bool {
	return s == ScopeFullReadOnly || s.EntityScoped()
}

// AuditorAccessToken is a read-only capability handed to an external auditor.
// The raw token value is shown once at issue time; only its SHA-256 hash is
// stored.
type AuditorAccessToken struct {
	gorm.Model
	TokenPrefix      string     `gorm:"index;not null"` // first 8 chars, for identification
	TokenHash        string     `gorm:"uniqueIndex;not null" json:"-"`
	AuditorName      string     `gorm:"not null"`
	AuditorEmail     string     `gorm:"not null"`
	ScopeType        TokenScope `gorm:"not null;default:'full_read_only'"`
	ScopeEntityID    *string
	AllowedResources string // comma set; empty = no resource restriction
	ExpiresAt        time.Time `gorm:"not null"`
	MaxUses          *int
	UseCount         int  `gorm:"not null;default:0"`
	Revoked          bool `gorm:"not null;default:false"`
	RevokedAt        *time.Time
	RevokedReason    string
	RevokedBy        *uint
	Purpose          string `gorm:"not null"`
	Notes            string
	CreatedBy        uint `gorm:"not null"`
}

// ResourceSet decodes the comma-joined allowed-resource column.
func (t *AuditorAccessToken) ResourceSet() []string {
	if t.AllowedResources == "" {
		return nil
	}
	parts := strings.Split(t.AllowedResources, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AllowsResource checks the resource tag against the allowed set. An empty
// set means the scope type alone governs access.
func (t *AuditorAccessToken) AllowsResource(tag string) bool {
	set := t.ResourceSet()
	if len(set) == 0 {
		return true
	}
	for _, r := range set {
		if r == tag {
			return true
		}
	}
	return false
}
