// Package workflow implements the NC lifecycle state machine and the
// role-based field-locking policy. Everything in this package is a pure,
// synchronous computation over its inputs: transitions return a Result that
// the caller persists; nothing here touches the database, the clock (the
// caller passes now), or the network.
package workflow

import (
	"time"

	"github.com/stratamine/qms/internal/qms/entity"
)

// Snapshot is the read contract: the NC state a transition decides over. The
// caller is responsible for fetching it fresh enough (see the CAS write in the
// repository layer); transitions do not re-check staleness.
type Snapshot struct {
	ID                 string
	NCNumber           string
	Status             string
	CurrentStep        int
	RiskClassification string
	ReportedBy         string
	ResponsiblePerson  string
	DepartmentID       string
	DueDate            *time.Time
	ClosedAt           *time.Time
	History            entity.WorkflowHistory
}

// Actor is the acting user with their resolved flat role set.
type Actor struct {
	UserID string
	Roles  []string
}

// HasAnyRole reports whether the actor holds at least one of the given roles.
func (a Actor) HasAnyRole(roles ...string) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ActivityEntry is the human-readable activity-feed record a transition emits.
// It is a separate sink from the structured history entry: the service writes
// both for every business event.
type ActivityEntry struct {
	Action     string
	FromStatus string
	ToStatus   string
	Comment    string
	Detail     map[string]interface{}
}

// Result is the write contract: everything a transition decided, for the
// caller to apply as one atomic update plus one history append plus one
// activity-log insert. Event is the notification tag an external dispatcher
// maps to recipients.
type Result struct {
	Status       string
	Step         int
	FieldUpdates map[string]interface{}
	HistoryEntry entity.WorkflowEntry
	Activity     ActivityEntry
	Event        string
}

// ClassifyInput carries the QA risk classification for step 1.
type ClassifyInput struct {
	Risk              string
	DueDate           *time.Time // explicit override; nil means derive from risk tier
	ResponsiblePerson string     // optional reassignment at classification
	Comments          string
}

// ResponseInput carries the responsible person's corrective-action plan.
type ResponseInput struct {
	RootCause        string
	CorrectiveAction string
	PreventiveAction string
	CompletionDate   *time.Time
}

// DecisionInput carries a manager review decision. SecondRound must be derived
// by the caller from CountDeclines on the authoritative history, never from UI
// state.
type DecisionInput struct {
	Decision    string
	Comments    string
	SecondRound bool
}

// VerifyInput carries the QA effectiveness verification.
type VerifyInput struct {
	Outcome             string
	Comments            string
	EffectivenessRating int // 1..5, required when Outcome is verified
}

// Manager decisions
const (
	DecisionApprove = "approve"
	DecisionDecline = "decline"
)

func terminal(status string) bool {
	return status == entity.NCStatusClosed || status == entity.NCStatusRejected
}

// Classify moves an NC from open/step 1 into remediation: sets the risk
// classification, computes the due date from the risk tier (counted from now,
// not from any prior due date) unless an explicit date is given, and hands the
// NC to the responsible person at step 2.
func Classify(nc Snapshot, actor Actor, in ClassifyInput, now time.Time) (*Result, error) {
	if terminal(nc.Status) {
		return nil, invalidTransitionf("NC %s is %s", nc.NCNumber, nc.Status)
	}
	if nc.Status != entity.NCStatusOpen || nc.CurrentStep != 1 {
		return nil, invalidTransitionf("classify requires open/step 1, NC %s is %s/step %d", nc.NCNumber, nc.Status, nc.CurrentStep)
	}
	switch in.Risk {
	case entity.RiskObservation, entity.RiskOFI, entity.RiskMinor, entity.RiskMajor:
	default:
		return nil, validationf("unknown risk classification %q", in.Risk)
	}

	due := in.DueDate
	if due == nil {
		d := DueDateForRisk(in.Risk, now)
		due = &d
	}

	updates := map[string]interface{}{
		"risk_classification": in.Risk,
		"due_date":            *due,
	}
	if in.ResponsiblePerson != "" {
		updates["responsible_person"] = in.ResponsiblePerson
	}

	return &Result{
		Status:       entity.NCStatusInProgress,
		Step:         2,
		FieldUpdates: updates,
		HistoryEntry: entity.WorkflowEntry{
			Step:        1,
			Action:      entity.NCActionQAClassified,
			PerformedBy: actor.UserID,
			PerformedAt: now,
			Comments:    in.Comments,
			Detail: map[string]interface{}{
				"risk_classification": in.Risk,
				"due_date":            due.Format("2006-01-02"),
			},
		},
		Activity: ActivityEntry{
			Action:     entity.NCActionQAClassified,
			FromStatus: entity.NCStatusOpen,
			ToStatus:   entity.NCStatusInProgress,
			Comment:    in.Comments,
			Detail:     map[string]interface{}{"risk_classification": in.Risk},
		},
		Event: entity.NCActionQAClassified,
	}, nil
}

// SubmitResponse records the responsible person's corrective-action plan and
// queues the NC for manager review. A submission from step 3 is a rework
// (post-decline or post-verification loop-back) and advances to the round-2
// review at step 5; a first submission from step 2 advances to step 3.
func SubmitResponse(nc Snapshot, actor Actor, in ResponseInput, now time.Time) (*Result, error) {
	if terminal(nc.Status) {
		return nil, invalidTransitionf("NC %s is %s", nc.NCNumber, nc.Status)
	}
	if nc.Status != entity.NCStatusInProgress || (nc.CurrentStep != 2 && nc.CurrentStep != 3) {
		return nil, invalidTransitionf("submit requires in_progress/step 2 or 3, NC %s is %s/step %d", nc.NCNumber, nc.Status, nc.CurrentStep)
	}
	if in.RootCause == "" {
		return nil, validationf("root cause is required")
	}
	if in.CorrectiveAction == "" {
		return nil, validationf("corrective action is required")
	}

	rework := nc.CurrentStep == 3
	action := entity.NCActionResponseSubmitted
	nextStep := 3
	if rework {
		action = entity.NCActionReworkSubmitted
		nextStep = 5
	}

	return &Result{
		Status:       entity.NCStatusPendingReview,
		Step:         nextStep,
		FieldUpdates: map[string]interface{}{},
		HistoryEntry: entity.WorkflowEntry{
			Step:        nc.CurrentStep,
			Action:      action,
			PerformedBy: actor.UserID,
			PerformedAt: now,
			Detail: map[string]interface{}{
				"root_cause":        in.RootCause,
				"corrective_action": in.CorrectiveAction,
				"rework":            rework,
			},
		},
		Activity: ActivityEntry{
			Action:     action,
			FromStatus: entity.NCStatusInProgress,
			ToStatus:   entity.NCStatusPendingReview,
		},
		Event: action,
	}, nil
}

// ManagerDecide records a manager review decision. Approval closes the NC. A
// first decline hands the NC back to the responsible person for rework; a
// second decline is terminal and requires manual administrative intervention.
func ManagerDecide(nc Snapshot, actor Actor, in DecisionInput, now time.Time) (*Result, error) {
	if terminal(nc.Status) {
		return nil, invalidTransitionf("NC %s is %s", nc.NCNumber, nc.Status)
	}
	if nc.Status != entity.NCStatusPendingReview || (nc.CurrentStep != 3 && nc.CurrentStep != 5) {
		return nil, invalidTransitionf("decision requires pending_review/step 3 or 5, NC %s is %s/step %d", nc.NCNumber, nc.Status, nc.CurrentStep)
	}

	switch in.Decision {
	case DecisionApprove:
		return &Result{
			Status: entity.NCStatusClosed,
			Step:   5,
			FieldUpdates: map[string]interface{}{
				"closed_at": now,
			},
			HistoryEntry: entity.WorkflowEntry{
				Step:        nc.CurrentStep,
				Action:      entity.NCActionManagerApproved,
				PerformedBy: actor.UserID,
				PerformedAt: now,
				Comments:    in.Comments,
			},
			Activity: ActivityEntry{
				Action:     entity.NCActionManagerApproved,
				FromStatus: entity.NCStatusPendingReview,
				ToStatus:   entity.NCStatusClosed,
				Comment:    in.Comments,
			},
			Event: entity.NCActionManagerApproved,
		}, nil

	case DecisionDecline:
		if in.Comments == "" {
			return nil, validationf("decline requires comments")
		}
		round := 1
		status := entity.NCStatusInProgress
		step := 3
		if in.SecondRound {
			round = 2
			status = entity.NCStatusRejected
			step = 6
		}
		return &Result{
			Status:       status,
			Step:         step,
			FieldUpdates: map[string]interface{}{},
			HistoryEntry: entity.WorkflowEntry{
				Step:        nc.CurrentStep,
				Action:      entity.NCActionManagerDeclined,
				PerformedBy: actor.UserID,
				PerformedAt: now,
				Comments:    in.Comments,
				Round:       round,
			},
			Activity: ActivityEntry{
				Action:     entity.NCActionManagerDeclined,
				FromStatus: entity.NCStatusPendingReview,
				ToStatus:   status,
				Comment:    in.Comments,
				Detail:     map[string]interface{}{"round": round},
			},
			Event: entity.NCActionManagerDeclined,
		}, nil

	default:
		return nil, validationf("unknown decision %q", in.Decision)
	}
}

// Verify records the QA effectiveness verification. Verified closes the NC;
// requires_rework loops back to the responsible person; escalated hands the NC
// to the manager track at step 5.
func Verify(nc Snapshot, actor Actor, in VerifyInput, now time.Time) (*Result, error) {
	if terminal(nc.Status) {
		return nil, invalidTransitionf("NC %s is %s", nc.NCNumber, nc.Status)
	}
	if nc.Status != entity.NCStatusPendingVerification {
		return nil, invalidTransitionf("verify requires pending_verification, NC %s is %s", nc.NCNumber, nc.Status)
	}

	entry := entity.WorkflowEntry{
		Step:        nc.CurrentStep,
		PerformedBy: actor.UserID,
		PerformedAt: now,
		Comments:    in.Comments,
	}

	switch in.Outcome {
	case entity.VerificationVerified:
		if in.EffectivenessRating < 1 || in.EffectivenessRating > 5 {
			return nil, validationf("effectiveness rating must be 1..5, got %d", in.EffectivenessRating)
		}
		entry.Action = entity.NCActionVerificationCompleted
		entry.Detail = map[string]interface{}{"effectiveness_rating": in.EffectivenessRating}
		return &Result{
			Status: entity.NCStatusClosed,
			Step:   5,
			FieldUpdates: map[string]interface{}{
				"closed_at": now,
			},
			HistoryEntry: entry,
			Activity: ActivityEntry{
				Action:     entity.NCActionVerificationCompleted,
				FromStatus: entity.NCStatusPendingVerification,
				ToStatus:   entity.NCStatusClosed,
				Comment:    in.Comments,
				Detail:     map[string]interface{}{"effectiveness_rating": in.EffectivenessRating},
			},
			Event: entity.NCActionVerificationCompleted,
		}, nil

	case entity.VerificationRequiresRework:
		entry.Action = entity.NCActionReworkRequested
		return &Result{
			Status:       entity.NCStatusInProgress,
			Step:         3,
			FieldUpdates: map[string]interface{}{},
			HistoryEntry: entry,
			Activity: ActivityEntry{
				Action:     entity.NCActionReworkRequested,
				FromStatus: entity.NCStatusPendingVerification,
				ToStatus:   entity.NCStatusInProgress,
				Comment:    in.Comments,
			},
			Event: entity.NCActionReworkRequested,
		}, nil

	case entity.VerificationEscalated:
		entry.Action = entity.NCActionEscalated
		return &Result{
			Status:       entity.NCStatusPendingReview,
			Step:         5,
			FieldUpdates: map[string]interface{}{},
			HistoryEntry: entry,
			Activity: ActivityEntry{
				Action:     entity.NCActionEscalated,
				FromStatus: entity.NCStatusPendingVerification,
				ToStatus:   entity.NCStatusPendingReview,
				Comment:    in.Comments,
			},
			Event: entity.NCActionEscalated,
		}, nil

	default:
		return nil, validationf("unknown verification outcome %q", in.Outcome)
	}
}
