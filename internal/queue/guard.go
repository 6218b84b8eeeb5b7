// Package queue holds the pieces of the queue domain that are independent of
// HTTP: the per-action access rules and the per-(class, day) number
// allocation.
package queue

import (
	"errors"

	"antrian_rapor/internal/models"
)

const (
	ActionCall    = "call"
	ActionCancel  = "cancel-call"
	ActionFinish  = "finish"
	ActionSkip    = "skip"
	ActionRevert  = "revert-finish"
	ActionNotify  = "notify"
	ActionDelete  = "delete"
)

var (
	// ErrDuplicate means the student already has an entry for the day.
	ErrDuplicate = errors.New("student already checked in today")
	// ErrNoClassAssigned means a teacher account has no class configured.
	ErrNoClassAssigned = errors.New("no class assigned")
	// ErrClassMismatch means a teacher touched an entry outside their class.
	ErrClassMismatch = errors.New("entry belongs to another class")
	// ErrAdminOnly means the action is reserved for admins.
	ErrAdminOnly = errors.New("admin role required")
	// ErrRoleDenied means the role cannot mutate queue entries at all.
	ErrRoleDenied = errors.New("role may not modify the queue")
)

// Actor is the authenticated principal acting on the queue.
type Actor struct {
	ID            uint
	Role          string
	AssignedClass string
}

// CanAct authorizes actor to run action against an entry whose student is in
// studentClass. Admins and satpam pass for everything except revert-finish,
// which stays admin-only. Teachers are scoped to their assigned class.
func CanAct(actor Actor, studentClass, action string) error {
	if action == ActionRevert && actor.Role != models.RoleAdmin {
		return ErrAdminOnly
	}

	switch actor.Role {
	case models.RoleAdmin, models.RoleSatpam:
		return nil
	case models.RoleTeacher:
		if actor.AssignedClass == "" {
			return ErrNoClassAssigned
		}
		if actor.AssignedClass != studentClass {
			return ErrClassMismatch
		}
		return nil
	default:
		return ErrRoleDenied
	}
}
