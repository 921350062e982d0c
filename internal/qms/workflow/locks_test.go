package workflow

import (
	"testing"

	"github.com/stratamine/qms/internal/qms/entity"
)

var allRoles = []string{
	entity.RoleSuperAdmin,
	entity.RoleSiteAdmin,
	entity.RoleManager,
	entity.RoleVerifier,
	entity.RoleModerator,
	entity.RoleViewer,
	"responsible_person",
}

var allStatuses = []string{
	entity.NCStatusOpen,
	entity.NCStatusInProgress,
	entity.NCStatusPendingReview,
	entity.NCStatusPendingVerification,
	entity.NCStatusClosed,
	entity.NCStatusRejected,
}

func TestComputeFieldLocksTotality(t *testing.T) {
	// The lock matrix is defined for every role, step, and status combination.
	for _, role := range allRoles {
		for step := 1; step <= 6; step++ {
			for _, status := range allStatuses {
				locks := ComputeFieldLocks(LockInput{
					Role:              role,
					CurrentStep:       step,
					Status:            status,
					ReportedBy:        "user-a",
					ResponsiblePerson: "user-b",
					CurrentUserID:     "user-c",
				})
				if locks.TotalCount == 0 || len(locks.Fields) != locks.TotalCount {
					t.Fatalf("ComputeFieldLocks(%s, %d, %s): empty or inconsistent result", role, step, status)
				}
				for name, lock := range locks.Fields {
					if !lock.Editable && lock.Reason == "" {
						t.Errorf("ComputeFieldLocks(%s, %d, %s): locked field %s has no reason", role, step, status, name)
					}
				}
			}
		}
	}
}

func TestAdminOverrideUnlocksEverything(t *testing.T) {
	// Admins edit every field regardless of step and status.
	for _, role := range []string{entity.RoleSuperAdmin, entity.RoleSiteAdmin} {
		for step := 1; step <= 6; step++ {
			for _, status := range allStatuses {
				locks := ComputeFieldLocks(LockInput{Role: role, CurrentStep: step, Status: status})
				if locks.EditableCount != locks.TotalCount {
					t.Errorf("%s at step %d/%s: expected all %d fields editable, got %d",
						role, step, status, locks.TotalCount, locks.EditableCount)
				}
			}
		}
	}
}

func TestTerminalStatusLocksEverything(t *testing.T) {
	for _, status := range []string{entity.NCStatusClosed, entity.NCStatusRejected} {
		locks := ComputeFieldLocks(LockInput{
			Role:        entity.RoleVerifier,
			CurrentStep: 5,
			Status:      status,
		})
		if locks.EditableCount != 0 {
			t.Errorf("%s: expected 0 editable fields, got %d", status, locks.EditableCount)
		}
		for name, lock := range locks.Fields {
			if lock.Reason != reasonTerminal {
				t.Errorf("%s: field %s reason = %q, want %q", status, name, lock.Reason, reasonTerminal)
			}
		}
	}
}

func TestClassificationFieldsAtStepOne(t *testing.T) {
	qa := ComputeFieldLocks(LockInput{
		Role:        entity.RoleVerifier,
		CurrentStep: 1,
		Status:      entity.NCStatusOpen,
	})
	for _, name := range classificationFields {
		if !qa.Fields[name].Editable {
			t.Errorf("QA at step 1: expected %s editable", name)
		}
	}

	mgr := ComputeFieldLocks(LockInput{
		Role:        entity.RoleManager,
		CurrentStep: 1,
		Status:      entity.NCStatusOpen,
	})
	for _, name := range classificationFields {
		if mgr.Fields[name].Editable {
			t.Errorf("Manager at step 1: expected %s locked", name)
		}
	}

	lateQA := ComputeFieldLocks(LockInput{
		Role:        entity.RoleVerifier,
		CurrentStep: 2,
		Status:      entity.NCStatusInProgress,
	})
	for _, name := range classificationFields {
		if lateQA.Fields[name].Editable {
			t.Errorf("QA at step 2: expected %s locked", name)
		}
	}
}

func TestResponseFieldsRequireOwnership(t *testing.T) {
	// A viewer who merely reported the NC cannot edit response
	// fields at step 3.
	locks := ComputeFieldLocks(LockInput{
		Role:              entity.RoleViewer,
		CurrentStep:       3,
		Status:            entity.NCStatusInProgress,
		ReportedBy:        "user-x",
		ResponsiblePerson: "user-y",
		CurrentUserID:     "user-x",
	})
	for _, name := range responseFields {
		if locks.Fields[name].Editable {
			t.Errorf("Viewer/reporter at step 3: expected %s locked", name)
		}
		if locks.Fields[name].Reason != reasonNotOwner {
			t.Errorf("Field %s: reason %q, want %q", name, locks.Fields[name].Reason, reasonNotOwner)
		}
	}

	owner := ComputeFieldLocks(LockInput{
		Role:              entity.RoleViewer,
		CurrentStep:       3,
		Status:            entity.NCStatusInProgress,
		ResponsiblePerson: "user-y",
		CurrentUserID:     "user-y",
	})
	for _, name := range responseFields {
		if !owner.Fields[name].Editable {
			t.Errorf("Responsible person at step 3: expected %s editable", name)
		}
	}

	// During manager review the responsible person no longer edits.
	reviewing := ComputeFieldLocks(LockInput{
		Role:              entity.RoleViewer,
		CurrentStep:       3,
		Status:            entity.NCStatusPendingReview,
		ResponsiblePerson: "user-y",
		CurrentUserID:     "user-y",
	})
	for _, name := range responseFields {
		if reviewing.Fields[name].Editable {
			t.Errorf("Responsible person during review: expected %s locked", name)
		}
	}
}

func TestApprovalAndVerificationGates(t *testing.T) {
	review := ComputeFieldLocks(LockInput{
		Role:        entity.RoleManager,
		CurrentStep: 3,
		Status:      entity.NCStatusPendingReview,
	})
	for _, name := range approvalFields {
		if !review.Fields[name].Editable {
			t.Errorf("Manager during review: expected %s editable", name)
		}
	}
	for _, name := range verificationFields {
		if review.Fields[name].Editable {
			t.Errorf("Manager during review: expected %s locked", name)
		}
	}

	verification := ComputeFieldLocks(LockInput{
		Role:        entity.RoleVerifier,
		CurrentStep: 4,
		Status:      entity.NCStatusPendingVerification,
	})
	for _, name := range verificationFields {
		if !verification.Fields[name].Editable {
			t.Errorf("QA during verification: expected %s editable", name)
		}
	}
	for _, name := range approvalFields {
		if verification.Fields[name].Editable {
			t.Errorf("QA during verification: expected %s locked", name)
		}
	}
}

func TestRoleLabelCoversEveryRole(t *testing.T) {
	for _, role := range allRoles {
		if label := RoleLabel(role); label == "" || label == "Unknown Role" {
			t.Errorf("RoleLabel(%s) = %q", role, label)
		}
	}
	if RoleLabel("intruder") != "Unknown Role" {
		t.Errorf("RoleLabel fallback = %q", RoleLabel("intruder"))
	}
}

func TestStepDescriptionCoversEveryStep(t *testing.T) {
	for step := 1; step <= 6; step++ {
		if desc := StepDescription(step); desc == "" || desc == "Unknown step" {
			t.Errorf("StepDescription(%d) = %q", step, desc)
		}
	}
	if StepDescription(0) != "Unknown step" || StepDescription(7) != "Unknown step" {
		t.Error("StepDescription fallback missing for out-of-range steps")
	}
}
