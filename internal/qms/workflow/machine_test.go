package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stratamine/qms/internal/qms/entity"
)

var frozenNow = time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

func qaActor() Actor {
	return Actor{UserID: "user-qa", Roles: []string{entity.RoleVerifier}}
}

func managerActor() Actor {
	return Actor{UserID: "user-mgr", Roles: []string{entity.RoleManager}}
}

func responsibleActor() Actor {
	return Actor{UserID: "user-rp", Roles: []string{entity.RoleViewer}}
}

func openNC() Snapshot {
	return Snapshot{
		ID:                "nc-001",
		NCNumber:          "NC-KAR-0001",
		Status:            entity.NCStatusOpen,
		CurrentStep:       1,
		ReportedBy:        "user-reporter",
		ResponsiblePerson: "user-rp",
		DepartmentID:      "dept-mill",
	}
}

func ncAt(status string, step int, history ...entity.WorkflowEntry) Snapshot {
	nc := openNC()
	nc.Status = status
	nc.CurrentStep = step
	nc.History = history
	return nc
}

func TestClassifyMajorSetsDueDateAndAdvances(t *testing.T) {
	res, err := Classify(openNC(), qaActor(), ClassifyInput{
		Risk:     entity.RiskMajor,
		Comments: "needs fix",
	}, frozenNow)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if res.Status != entity.NCStatusInProgress || res.Step != 2 {
		t.Errorf("Expected in_progress/step 2, got %s/step %d", res.Status, res.Step)
	}
	if res.FieldUpdates["risk_classification"] != entity.RiskMajor {
		t.Errorf("Expected risk major, got %v", res.FieldUpdates["risk_classification"])
	}
	due, ok := res.FieldUpdates["due_date"].(time.Time)
	if !ok {
		t.Fatalf("Expected due_date in field updates, got %v", res.FieldUpdates["due_date"])
	}
	if want := frozenNow.Add(3 * 24 * time.Hour); !due.Equal(want) {
		t.Errorf("Expected due date %v (+3d), got %v", want, due)
	}
	if res.HistoryEntry.Action != entity.NCActionQAClassified {
		t.Errorf("Expected qa_classified history entry, got %s", res.HistoryEntry.Action)
	}
	if res.HistoryEntry.Step != 1 {
		t.Errorf("Expected history entry at step 1, got %d", res.HistoryEntry.Step)
	}
	if res.Event != entity.NCActionQAClassified {
		t.Errorf("Expected qa_classified event, got %s", res.Event)
	}
}

func TestClassifyDueDateTiering(t *testing.T) {
	// Each risk tier carries an exact offset from the classification timestamp.
	tiers := []struct {
		risk string
		days int
	}{
		{entity.RiskMajor, 3},
		{entity.RiskMinor, 7},
		{entity.RiskOFI, 14},
		{entity.RiskObservation, 30},
	}
	for _, tier := range tiers {
		res, err := Classify(openNC(), qaActor(), ClassifyInput{Risk: tier.risk}, frozenNow)
		if err != nil {
			t.Fatalf("Classify(%s) failed: %v", tier.risk, err)
		}
		due := res.FieldUpdates["due_date"].(time.Time)
		if want := frozenNow.Add(time.Duration(tier.days) * 24 * time.Hour); !due.Equal(want) {
			t.Errorf("Classify(%s): expected due %v (+%dd), got %v", tier.risk, want, tier.days, due)
		}
	}
}

func TestClassifyExplicitDueDateOverride(t *testing.T) {
	override := frozenNow.Add(48 * time.Hour)
	res, err := Classify(openNC(), qaActor(), ClassifyInput{
		Risk:    entity.RiskMinor,
		DueDate: &override,
	}, frozenNow)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if due := res.FieldUpdates["due_date"].(time.Time); !due.Equal(override) {
		t.Errorf("Expected explicit due date %v, got %v", override, due)
	}
}

func TestClassifyRejectsMissingRisk(t *testing.T) {
	_, err := Classify(openNC(), qaActor(), ClassifyInput{}, frozenNow)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for empty risk, got %v", err)
	}
}

func TestClassifyRejectsWrongState(t *testing.T) {
	_, err := Classify(ncAt(entity.NCStatusInProgress, 2), qaActor(), ClassifyInput{Risk: entity.RiskMinor}, frozenNow)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition from in_progress, got %v", err)
	}
}

func TestSubmitResponseFirstSubmission(t *testing.T) {
	res, err := SubmitResponse(ncAt(entity.NCStatusInProgress, 2), responsibleActor(), ResponseInput{
		RootCause:        "Worn conveyor idler not replaced on schedule",
		CorrectiveAction: "Replace idler, update PM interval",
	}, frozenNow)
	if err != nil {
		t.Fatalf("SubmitResponse failed: %v", err)
	}
	if res.Status != entity.NCStatusPendingReview || res.Step != 3 {
		t.Errorf("Expected pending_review/step 3, got %s/step %d", res.Status, res.Step)
	}
	if res.HistoryEntry.Action != entity.NCActionResponseSubmitted {
		t.Errorf("Expected response_submitted, got %s", res.HistoryEntry.Action)
	}
}

func TestSubmitResponseReworkGoesToRoundTwo(t *testing.T) {
	res, err := SubmitResponse(ncAt(entity.NCStatusInProgress, 3), responsibleActor(), ResponseInput{
		RootCause:        "Revised analysis",
		CorrectiveAction: "Extended remediation",
	}, frozenNow)
	if err != nil {
		t.Fatalf("SubmitResponse rework failed: %v", err)
	}
	if res.Status != entity.NCStatusPendingReview || res.Step != 5 {
		t.Errorf("Expected pending_review/step 5 after rework, got %s/step %d", res.Status, res.Step)
	}
	if res.HistoryEntry.Action != entity.NCActionReworkSubmitted {
		t.Errorf("Expected rework_submitted, got %s", res.HistoryEntry.Action)
	}
}

func TestSubmitResponseRequiresRootCauseAndAction(t *testing.T) {
	_, err := SubmitResponse(ncAt(entity.NCStatusInProgress, 2), responsibleActor(), ResponseInput{
		CorrectiveAction: "no root cause given",
	}, frozenNow)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for missing root cause, got %v", err)
	}
	_, err = SubmitResponse(ncAt(entity.NCStatusInProgress, 2), responsibleActor(), ResponseInput{
		RootCause: "no corrective action given",
	}, frozenNow)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for missing corrective action, got %v", err)
	}
}

func TestManagerDeclineFirstRound(t *testing.T) {
	res, err := ManagerDecide(ncAt(entity.NCStatusPendingReview, 3), managerActor(), DecisionInput{
		Decision: DecisionDecline,
		Comments: "Root cause is superficial, dig deeper",
	}, frozenNow)
	if err != nil {
		t.Fatalf("ManagerDecide failed: %v", err)
	}
	if res.Status != entity.NCStatusInProgress || res.Step != 3 {
		t.Errorf("Expected in_progress/step 3 after first decline, got %s/step %d", res.Status, res.Step)
	}
	if res.HistoryEntry.Action != entity.NCActionManagerDeclined || res.HistoryEntry.Round != 1 {
		t.Errorf("Expected manager_declined round 1, got %s round %d", res.HistoryEntry.Action, res.HistoryEntry.Round)
	}
}

func TestManagerDeclineSecondRoundIsTerminal(t *testing.T) {
	res, err := ManagerDecide(ncAt(entity.NCStatusPendingReview, 5,
		entity.WorkflowEntry{Step: 3, Action: entity.NCActionManagerDeclined, Round: 1},
	), managerActor(), DecisionInput{
		Decision:    DecisionDecline,
		Comments:    "Still inadequate",
		SecondRound: true,
	}, frozenNow)
	if err != nil {
		t.Fatalf("ManagerDecide failed: %v", err)
	}
	if res.Status != entity.NCStatusRejected || res.Step != 6 {
		t.Errorf("Expected rejected/step 6 after second decline, got %s/step %d", res.Status, res.Step)
	}
	if res.HistoryEntry.Round != 2 {
		t.Errorf("Expected round 2, got %d", res.HistoryEntry.Round)
	}
}

func TestManagerApproveClosesNC(t *testing.T) {
	res, err := ManagerDecide(ncAt(entity.NCStatusPendingReview, 3), managerActor(), DecisionInput{
		Decision: DecisionApprove,
		Comments: "Adequate plan",
	}, frozenNow)
	if err != nil {
		t.Fatalf("ManagerDecide failed: %v", err)
	}
	if res.Status != entity.NCStatusClosed || res.Step != 5 {
		t.Errorf("Expected closed/step 5, got %s/step %d", res.Status, res.Step)
	}
	closedAt, ok := res.FieldUpdates["closed_at"].(time.Time)
	if !ok || !closedAt.Equal(frozenNow) {
		t.Errorf("Expected closed_at=%v, got %v", frozenNow, res.FieldUpdates["closed_at"])
	}
}

func TestManagerDeclineRequiresComments(t *testing.T) {
	_, err := ManagerDecide(ncAt(entity.NCStatusPendingReview, 3), managerActor(), DecisionInput{
		Decision: DecisionDecline,
	}, frozenNow)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for decline without comments, got %v", err)
	}
}

func TestManagerDecideRejectsUnknownDecision(t *testing.T) {
	_, err := ManagerDecide(ncAt(entity.NCStatusPendingReview, 3), managerActor(), DecisionInput{
		Decision: "defer",
		Comments: "x",
	}, frozenNow)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown decision, got %v", err)
	}
}

func TestVerifyVerifiedClosesNC(t *testing.T) {
	res, err := Verify(ncAt(entity.NCStatusPendingVerification, 4), qaActor(), VerifyInput{
		Outcome:             entity.VerificationVerified,
		Comments:            "Effective after 30-day observation",
		EffectivenessRating: 4,
	}, frozenNow)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Status != entity.NCStatusClosed || res.Step != 5 {
		t.Errorf("Expected closed/step 5, got %s/step %d", res.Status, res.Step)
	}
	closedAt, ok := res.FieldUpdates["closed_at"].(time.Time)
	if !ok || !closedAt.Equal(frozenNow) {
		t.Errorf("Expected closed_at=%v, got %v", frozenNow, res.FieldUpdates["closed_at"])
	}
	if res.HistoryEntry.Detail["effectiveness_rating"] != 4 {
		t.Errorf("Expected rating 4 in history detail, got %v", res.HistoryEntry.Detail["effectiveness_rating"])
	}
}

func TestVerifyRequiresReworkLoopsBack(t *testing.T) {
	res, err := Verify(ncAt(entity.NCStatusPendingVerification, 4), qaActor(), VerifyInput{
		Outcome:  entity.VerificationRequiresRework,
		Comments: "Recurrence observed on night shift",
	}, frozenNow)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Status != entity.NCStatusInProgress || res.Step != 3 {
		t.Errorf("Expected in_progress/step 3, got %s/step %d", res.Status, res.Step)
	}
	if res.Event != entity.NCActionReworkRequested {
		t.Errorf("Expected rework_requested event, got %s", res.Event)
	}
}

func TestVerifyEscalatedHandsBackToManager(t *testing.T) {
	res, err := Verify(ncAt(entity.NCStatusPendingVerification, 4), qaActor(), VerifyInput{
		Outcome:  entity.VerificationEscalated,
		Comments: "Needs management decision on capital spend",
	}, frozenNow)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Status != entity.NCStatusPendingReview || res.Step != 5 {
		t.Errorf("Expected pending_review/step 5, got %s/step %d", res.Status, res.Step)
	}
	if res.Event != entity.NCActionEscalated {
		t.Errorf("Expected escalated event, got %s", res.Event)
	}
}

func TestVerifyVerifiedRequiresRating(t *testing.T) {
	for _, rating := range []int{0, 6, -1} {
		_, err := Verify(ncAt(entity.NCStatusPendingVerification, 4), qaActor(), VerifyInput{
			Outcome:             entity.VerificationVerified,
			EffectivenessRating: rating,
		}, frozenNow)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Expected ErrValidation for rating %d, got %v", rating, err)
		}
	}
}

func TestNoTransitionFromTerminalStates(t *testing.T) {
	// Every transition from closed/rejected fails with InvalidTransition,
	// regardless of actor or step.
	closedAt := frozenNow.Add(-time.Hour)
	for _, status := range []string{entity.NCStatusClosed, entity.NCStatusRejected} {
		for _, step := range []int{1, 2, 3, 4, 5, 6} {
			nc := ncAt(status, step)
			nc.ClosedAt = &closedAt

			if _, err := Classify(nc, qaActor(), ClassifyInput{Risk: entity.RiskMinor}, frozenNow); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Classify from %s/step %d: expected ErrInvalidTransition, got %v", status, step, err)
			}
			if _, err := SubmitResponse(nc, responsibleActor(), ResponseInput{RootCause: "x", CorrectiveAction: "y"}, frozenNow); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("SubmitResponse from %s/step %d: expected ErrInvalidTransition, got %v", status, step, err)
			}
			if _, err := ManagerDecide(nc, managerActor(), DecisionInput{Decision: DecisionApprove}, frozenNow); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("ManagerDecide from %s/step %d: expected ErrInvalidTransition, got %v", status, step, err)
			}
			if _, err := Verify(nc, qaActor(), VerifyInput{Outcome: entity.VerificationVerified, EffectivenessRating: 3}, frozenNow); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Verify from %s/step %d: expected ErrInvalidTransition, got %v", status, step, err)
			}
		}
	}
}

func TestEveryAcceptedTransitionAppendsExactlyOneEntry(t *testing.T) {
	// Each accepted transition yields exactly one history entry, and the
	// machine never touches existing entries (it returns the append only).
	results := []*Result{}

	r1, err := Classify(openNC(), qaActor(), ClassifyInput{Risk: entity.RiskMajor}, frozenNow)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	results = append(results, r1)

	r2, err := SubmitResponse(ncAt(entity.NCStatusInProgress, 2, r1.HistoryEntry), responsibleActor(), ResponseInput{
		RootCause: "rc", CorrectiveAction: "ca",
	}, frozenNow)
	if err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}
	results = append(results, r2)

	r3, err := ManagerDecide(ncAt(entity.NCStatusPendingReview, 3, r1.HistoryEntry, r2.HistoryEntry), managerActor(), DecisionInput{
		Decision: DecisionApprove,
	}, frozenNow)
	if err != nil {
		t.Fatalf("ManagerDecide: %v", err)
	}
	results = append(results, r3)

	for i, res := range results {
		if res.HistoryEntry.Action == "" {
			t.Errorf("Transition %d produced no history entry", i)
		}
	}
}

func TestClosedAtSetExactlyOnce(t *testing.T) {
	// closed_at appears in field updates only on the transition that
	// enters closed, and no transition is defined out of closed.
	r1, err := Classify(openNC(), qaActor(), ClassifyInput{Risk: entity.RiskMinor}, frozenNow)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if _, present := r1.FieldUpdates["closed_at"]; present {
		t.Error("Classify must not set closed_at")
	}

	r2, err := ManagerDecide(ncAt(entity.NCStatusPendingReview, 3), managerActor(), DecisionInput{Decision: DecisionApprove}, frozenNow)
	if err != nil {
		t.Fatalf("ManagerDecide: %v", err)
	}
	if _, present := r2.FieldUpdates["closed_at"]; !present {
		t.Error("Approve must set closed_at")
	}

	closedAt := frozenNow
	closedNC := ncAt(entity.NCStatusClosed, 5)
	closedNC.ClosedAt = &closedAt
	if _, err := ManagerDecide(closedNC, managerActor(), DecisionInput{Decision: DecisionApprove}, frozenNow.Add(time.Hour)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition re-approving a closed NC, got %v", err)
	}
}

func TestAuthorizeActingRoles(t *testing.T) {
	viewer := Actor{UserID: "user-viewer", Roles: []string{entity.RoleViewer}}
	admin := Actor{UserID: "user-admin", Roles: []string{entity.RoleSiteAdmin}}

	cases := []struct {
		name   string
		nc     Snapshot
		actor  Actor
		action string
		wantOK bool
	}{
		{"qa classifies", openNC(), qaActor(), ActionClassify, true},
		{"viewer cannot classify", openNC(), viewer, ActionClassify, false},
		{"manager cannot classify", openNC(), managerActor(), ActionClassify, false},
		{"responsible submits", ncAt(entity.NCStatusInProgress, 2), responsibleActor(), ActionSubmitResponse, true},
		{"reporter cannot submit", ncAt(entity.NCStatusInProgress, 2), Actor{UserID: "user-reporter"}, ActionSubmitResponse, false},
		{"admin submits anywhere", ncAt(entity.NCStatusInProgress, 2), admin, ActionSubmitResponse, true},
		{"manager decides", ncAt(entity.NCStatusPendingReview, 3), managerActor(), ActionDecide, true},
		{"qa cannot decide", ncAt(entity.NCStatusPendingReview, 3), qaActor(), ActionDecide, false},
		{"qa verifies", ncAt(entity.NCStatusPendingVerification, 4), qaActor(), ActionVerify, true},
		{"manager cannot verify", ncAt(entity.NCStatusPendingVerification, 4), managerActor(), ActionVerify, false},
	}

	for _, tc := range cases {
		err := Authorize(tc.nc, tc.actor, tc.action)
		if tc.wantOK && err != nil {
			t.Errorf("%s: expected authorized, got %v", tc.name, err)
		}
		if !tc.wantOK && !errors.Is(err, ErrUnauthorized) {
			t.Errorf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
	}
}

func TestAuthorizeTerminalState(t *testing.T) {
	err := Authorize(ncAt(entity.NCStatusClosed, 5), managerActor(), ActionDecide)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition on terminal NC, got %v", err)
	}
}

func TestFailedTransitionsAreDeterministic(t *testing.T) {
	// Same invalid input, same error kind, every time.
	for i := 0; i < 3; i++ {
		_, err := Classify(ncAt(entity.NCStatusPendingReview, 3), qaActor(), ClassifyInput{Risk: entity.RiskMajor}, frozenNow)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Attempt %d: expected ErrInvalidTransition, got %v", i, err)
		}
	}
}
