package workflow

import (
	"github.com/stratamine/qms/internal/qms/entity"
)

// Lock is the editability verdict for one field. Reason is the blocking
// explanation rendered next to a locked field; it is empty for editable
// fields.
type Lock struct {
	Editable bool   `json:"editable"`
	Reason   string `json:"reason,omitempty"`
}

// LockSet is the full per-field verdict the action panel renders from.
type LockSet struct {
	Fields        map[string]Lock `json:"fields"`
	EditableCount int             `json:"editable_count"`
	TotalCount    int             `json:"total_count"`
}

// LockInput identifies the (role, step, ownership) tuple the policy decides
// over. Role is a single role tag; callers with multi-role users evaluate the
// most permissive role they hold.
type LockInput struct {
	Role              string
	CurrentStep       int
	Status            string
	ReportedBy        string
	ResponsiblePerson string
	DepartmentID      string
	CurrentUserID     string
}

// Logical field groups of an NC record.
var (
	detailFields         = []string{"title", "description", "department_id"}
	classificationFields = []string{"risk_classification", "due_date", "responsible_person"}
	responseFields       = []string{"root_cause", "corrective_action", "preventive_action", "completion_date", "evidence"}
	approvalFields       = []string{"approval_decision", "approval_comments"}
	verificationFields   = []string{"verification_status", "effectiveness_rating", "verification_comments"}
)

const (
	reasonTerminal    = "NC is closed/rejected."
	reasonDefault     = "Not editable at this step."
	reasonNotQA       = "Classification requires a QA role at step 1."
	reasonNotOwner    = "Response fields are editable only by the responsible person at steps 2-3."
	reasonNotManager  = "Approval fields are editable only by managers during review."
	reasonNotVerifier = "Verification fields are editable only by QA during verification."
)

// ComputeFieldLocks derives, for every field of an NC record, whether the
// given role may edit it at the current step, with the blocking explanation
// for locked fields. Precedence (first match wins): admin override, terminal
// lock-all, per-group (step, role, ownership) gates, default locked. Pure: no
// I/O, identical inputs produce identical outputs.
func ComputeFieldLocks(in LockInput) LockSet {
	fields := make(map[string]Lock)

	admin := in.Role == entity.RoleSuperAdmin || in.Role == entity.RoleSiteAdmin
	closed := in.Status == entity.NCStatusClosed || in.Status == entity.NCStatusRejected

	set := func(names []string, editable bool, reason string) {
		for _, name := range names {
			if editable {
				fields[name] = Lock{Editable: true}
			} else {
				fields[name] = Lock{Editable: false, Reason: reason}
			}
		}
	}

	switch {
	case admin:
		set(detailFields, true, "")
		set(classificationFields, true, "")
		set(responseFields, true, "")
		set(approvalFields, true, "")
		set(verificationFields, true, "")

	case closed:
		set(detailFields, false, reasonTerminal)
		set(classificationFields, false, reasonTerminal)
		set(responseFields, false, reasonTerminal)
		set(approvalFields, false, reasonTerminal)
		set(verificationFields, false, reasonTerminal)

	default:
		qa := in.Role == entity.RoleVerifier
		mgr := in.Role == entity.RoleManager
		owner := in.CurrentUserID != "" && in.CurrentUserID == in.ResponsiblePerson

		// Base detail fields have no step-specific rule.
		set(detailFields, false, reasonDefault)

		if in.CurrentStep == 1 && qa {
			set(classificationFields, true, "")
		} else if in.CurrentStep == 1 {
			set(classificationFields, false, reasonNotQA)
		} else {
			set(classificationFields, false, reasonDefault)
		}

		if (in.CurrentStep == 2 || in.CurrentStep == 3) && in.Status == entity.NCStatusInProgress {
			if owner {
				set(responseFields, true, "")
			} else {
				set(responseFields, false, reasonNotOwner)
			}
		} else {
			set(responseFields, false, reasonDefault)
		}

		if in.Status == entity.NCStatusPendingReview {
			if mgr {
				set(approvalFields, true, "")
			} else {
				set(approvalFields, false, reasonNotManager)
			}
		} else {
			set(approvalFields, false, reasonDefault)
		}

		if in.Status == entity.NCStatusPendingVerification {
			if qa {
				set(verificationFields, true, "")
			} else {
				set(verificationFields, false, reasonNotVerifier)
			}
		} else {
			set(verificationFields, false, reasonDefault)
		}
	}

	out := LockSet{Fields: fields, TotalCount: len(fields)}
	for _, l := range fields {
		if l.Editable {
			out.EditableCount++
		}
	}
	return out
}

// RoleLabel maps every role tag to its display name. Total over the role
// enumeration: unknown tags get an explicit fallback, never an empty string.
func RoleLabel(role string) string {
	switch role {
	case entity.RoleSuperAdmin:
		return "Super Administrator"
	case entity.RoleSiteAdmin:
		return "Site Administrator"
	case entity.RoleManager:
		return "Manager"
	case entity.RoleVerifier:
		return "QA Verifier"
	case entity.RoleModerator:
		return "Moderator"
	case entity.RoleViewer:
		return "Viewer"
	case "responsible_person":
		return "Responsible Person"
	default:
		return "Unknown Role"
	}
}

// StepDescription maps every workflow step 1-6 to its display label. Total
// over the step domain: out-of-range steps get an explicit fallback.
func StepDescription(step int) string {
	switch step {
	case 1:
		return "QA risk classification"
	case 2:
		return "Corrective action submission"
	case 3:
		return "Manager review (round 1)"
	case 4:
		return "QA effectiveness verification"
	case 5:
		return "Manager review (round 2)"
	case 6:
		return "Final rejection"
	default:
		return "Unknown step"
	}
}
