package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleSuperuser Role = "SUPERUSER"
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleQuality   Role = "QUALITY"
	RoleEmployee  Role = "EMPLOYEE"
)

type User struct {
	gorm.Model
	Username     string `gorm:"unique;not null"`
	Email        string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null" json:"-"` // Bcrypt hash of password
	RoleTags     string `gorm:"not null;default:'EMPLOYEE'"`
	FirstName    string
	LastName     string
	Department   string
	ActiveStatus bool `gorm:"not null;default:true"`
	LastLogin    time.Time
}

// Roles decodes the comma-joined role tag column into the closed Role set.
func (u *User) Roles() []Role {
	parts := strings.Split(u.RoleTags, ",")
	roles := make([]Role, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		roles = append(roles, Role(p))
	}
	return roles
}

func (u *User) SetRoles(roles []Role) {
	tags := make([]string, len(roles))
	for i, r := range roles {
		tags[i] = string(r)
	}
	u.RoleTags = strings.Join(tags, ",")
}
