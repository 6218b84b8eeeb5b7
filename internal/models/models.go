package models

import (
	"gorm.io/gorm"
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleSatpam  = "satpam"
	RoleTV      = "tv"
)

// ValidRole reports whether s is one of the supported account roles.
func ValidRole(s string) bool {
	switch s {
	case RoleAdmin, RoleTeacher, RoleSatpam, RoleTV:
		return true
	}
	return false
}

type User struct {
	gorm.Model
	Username      string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash  string `gorm:"not null" json:"-"`
	Role          string `gorm:"not null;default:teacher" json:"role"`
	AssignedClass string `json:"assigned_class"` // only meaningful for teachers
}

type Student struct {
	gorm.Model
	NIS        string `gorm:"uniqueIndex;not null" json:"nis"` // external student number
	Name       string `gorm:"not null" json:"name"`
	Class      string `gorm:"index;not null" json:"class"`
	ParentName string `json:"parent_name"`
}

// Setting is a flat key/value row; non-scalar values are JSON-encoded strings.
type Setting struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

type Announcement struct {
	gorm.Model
	Text   string `gorm:"type:text;not null" json:"text"`
	Active bool   `gorm:"default:true" json:"active"`
}
