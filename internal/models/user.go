package models

import (
	"time"

	"github.com/google/uuid"
)

// User groups, stored in the user_groups table
const (
	GroupUser      = "user"
	GroupModerator = "moderator"
	GroupAdmin     = "admin"
)

func IsValidGroup(name string) bool {
	switch name {
	case GroupUser, GroupModerator, GroupAdmin:
		return true
	}
	return false
}

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	IsActive       bool
	Group          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsStaff reports whether the user may curate the catalog
func (u User) IsStaff() bool {
	return u.Group == GroupModerator || u.Group == GroupAdmin
}
