package services

import "github.com/yukikurage/task-escalation-engine/internal/models"

// Action is something one user does to a task owned by another.
type Action string

const (
	// ActionAssign creates a task for the target user.
	ActionAssign Action = "assign"
	// ActionReview approves or rejects a submitted task.
	ActionReview Action = "review"
)

// Actor is the already-authenticated caller of a lifecycle operation.
type Actor struct {
	ID   uint64
	Role models.Role
}

// subordinates lists, per role, the roles it may assign work to. A role that
// is missing here cannot assign at all; an empty target set means any role.
var subordinates = map[models.Role]map[models.Role]bool{
	models.RoleSupervisor: {},
	models.RoleManager: {
		models.RoleStaff:     true,
		models.RoleDeveloper: true,
		models.RoleCashier:   true,
	},
}

// CanAct is the single role policy for the SUPERVISOR > MANAGER >
// {STAFF, DEVELOPER, CASHIER} hierarchy. targetRole is the role of the task's
// assignee; ActionReview ignores it.
func CanAct(actorRole, targetRole models.Role, action Action) bool {
	allowed, ok := subordinates[actorRole]
	if !ok {
		return false
	}

	switch action {
	case ActionReview:
		return true
	case ActionAssign:
		if len(allowed) == 0 {
			return true
		}
		return allowed[targetRole]
	default:
		return false
	}
}
