package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"antrian_rapor/internal/models"
)

func TestCanActAdminAndSatpam(t *testing.T) {
	admin := Actor{ID: 1, Role: models.RoleAdmin}
	satpam := Actor{ID: 2, Role: models.RoleSatpam}

	for _, action := range []string{ActionCall, ActionCancel, ActionFinish, ActionSkip, ActionNotify, ActionDelete} {
		assert.NoError(t, CanAct(admin, "7A", action), "admin %s", action)
		assert.NoError(t, CanAct(satpam, "7B", action), "satpam %s", action)
	}
}

func TestCanActTeacherScopedToClass(t *testing.T) {
	teacher := Actor{ID: 3, Role: models.RoleTeacher, AssignedClass: "7A"}

	for _, action := range []string{ActionCall, ActionCancel, ActionFinish, ActionSkip, ActionNotify} {
		assert.NoError(t, CanAct(teacher, "7A", action), "own class %s", action)
		assert.ErrorIs(t, CanAct(teacher, "7B", action), ErrClassMismatch, "other class %s", action)
	}
}

func TestCanActTeacherWithoutClass(t *testing.T) {
	teacher := Actor{ID: 4, Role: models.RoleTeacher}
	assert.ErrorIs(t, CanAct(teacher, "7A", ActionCall), ErrNoClassAssigned)
}

func TestCanActRevertIsAdminOnly(t *testing.T) {
	assert.NoError(t, CanAct(Actor{Role: models.RoleAdmin}, "7A", ActionRevert))
	assert.ErrorIs(t, CanAct(Actor{Role: models.RoleSatpam}, "7A", ActionRevert), ErrAdminOnly)
	assert.ErrorIs(t, CanAct(Actor{Role: models.RoleTeacher, AssignedClass: "7A"}, "7A", ActionRevert), ErrAdminOnly)
}

func TestCanActUnknownRolesDenied(t *testing.T) {
	assert.ErrorIs(t, CanAct(Actor{Role: models.RoleTV}, "7A", ActionCall), ErrRoleDenied)
	assert.ErrorIs(t, CanAct(Actor{Role: ""}, "7A", ActionFinish), ErrRoleDenied)
}
