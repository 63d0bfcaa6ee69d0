package service

import "github.com/iliyamo/dance-booking/internal/model"

// Action names an operation subject to authorisation.
type Action string

const (
	ActionCreateReservation  Action = "reservation:create"
	ActionViewReservation    Action = "reservation:view"
	ActionUpdateReservation  Action = "reservation:update"
	ActionListReports        Action = "report:list"
	ActionViewReport         Action = "report:view"
	ActionGenerateReport     Action = "report:generate"
	ActionManageClass        Action = "class:manage"
	ActionCreateClass        Action = "class:create"
	ActionManageUsers        Action = "user:manage"
	ActionViewUser           Action = "user:view"
	ActionGrantCredits       Action = "credit:grant"
	ActionCreateNotification Action = "notification:create"
	ActionReadNotification   Action = "notification:read"
)

// Resource carries the ownership facts a decision needs.  OwnerID is
// the user a record belongs to; ProfessorID the teacher responsible
// for it.  Either may be empty.
type Resource struct {
	OwnerID     string
	ProfessorID string
}

// Authorize is the single place where roles and ownership turn into
// allow or deny.  It returns ErrForbidden or nil.
func Authorize(id model.Identity, action Action, res Resource) error {
	if id.UserID == "" || !model.IsValidRole(id.Role) {
		return ErrForbidden
	}
	if id.IsAdmin() {
		return nil
	}

	owner := res.OwnerID != "" && res.OwnerID == id.UserID
	teaches := id.Role == model.RoleTeacher && res.ProfessorID != "" && res.ProfessorID == id.UserID

	allowed := false
	switch action {
	case ActionCreateReservation:
		allowed = owner
	case ActionViewReservation, ActionUpdateReservation:
		allowed = owner || teaches
	case ActionListReports:
		allowed = id.Role == model.RoleTeacher
	case ActionViewReport:
		allowed = teaches
	case ActionManageClass:
		allowed = teaches
	case ActionReadNotification, ActionViewUser:
		allowed = owner
	case ActionCreateClass, ActionGenerateReport, ActionManageUsers, ActionGrantCredits, ActionCreateNotification:
		allowed = false
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}
