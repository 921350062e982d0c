package workflow

import (
	"github.com/stratamine/qms/internal/qms/entity"
)

// Workflow actions an actor can request. Authorize sits between the HTTP layer
// and the transition functions; the transitions themselves are role-agnostic
// and trust their caller to have checked here first.
const (
	ActionClassify       = "classify"
	ActionSubmitResponse = "submit_response"
	ActionDecide         = "manager_decide"
	ActionVerify         = "verify"
)

// QA-capable and manager-capable are derived predicates over the flat role
// set, not a hierarchy.
var (
	qaCapableRoles      = []string{entity.RoleVerifier, entity.RoleSiteAdmin, entity.RoleSuperAdmin}
	managerCapableRoles = []string{entity.RoleManager, entity.RoleSiteAdmin, entity.RoleSuperAdmin}
)

// QACapable reports whether the actor may classify and verify NCs.
func QACapable(actor Actor) bool {
	return actor.HasAnyRole(qaCapableRoles...)
}

// ManagerCapable reports whether the actor may decide manager reviews.
func ManagerCapable(actor Actor) bool {
	return actor.HasAnyRole(managerCapableRoles...)
}

// Authorize checks that the actor may perform the given action on the NC in
// its current state. This is defense in depth: the UI hides unavailable
// actions, so a failure here means a stale or forged request. Admin roles may
// act anywhere a role-gated action exists; the response steps additionally
// admit the responsible person regardless of role.
func Authorize(nc Snapshot, actor Actor, action string) error {
	if terminal(nc.Status) {
		return invalidTransitionf("NC %s is %s, no action available", nc.NCNumber, nc.Status)
	}

	switch action {
	case ActionClassify:
		if !QACapable(actor) {
			return unauthorizedf("classification requires a QA-capable role")
		}
	case ActionSubmitResponse:
		if actor.UserID != nc.ResponsiblePerson && !actor.HasAnyRole(entity.RoleSiteAdmin, entity.RoleSuperAdmin) {
			return unauthorizedf("only the responsible person may submit a corrective action")
		}
	case ActionDecide:
		if !ManagerCapable(actor) {
			return unauthorizedf("review decisions require a manager-capable role")
		}
	case ActionVerify:
		if !QACapable(actor) {
			return unauthorizedf("verification requires a QA-capable role")
		}
	default:
		return validationf("unknown workflow action %q", action)
	}
	return nil
}
