package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/service"
	"github.com/stratamine/qms/internal/qms/sse"
	"github.com/stratamine/qms/internal/qms/testutil"
	"go.uber.org/zap"
)

func setupNCTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	hub := sse.NewHub()
	repos := repository.NewRepositories(db)
	logger := zap.NewNop()
	notifier := service.NewNotificationService(db, repos.User, hub, logger)
	ncSvc := service.NewNCService(db, repos, nil, hub, notifier, logger)
	h := NewNCHandler(ncSvc)

	api := testutil.AuthGroup(router, "/api/v1")
	api.POST("/ncs", h.Create)
	api.GET("/ncs", h.List)
	api.GET("/ncs/:id", h.Get)
	api.POST("/ncs/:id/classify", h.Classify)
	api.POST("/ncs/:id/response", h.SubmitResponse)
	api.POST("/ncs/:id/decision", h.Decide)
	api.POST("/ncs/:id/verify", h.Verify)
	api.GET("/ncs/:id/history", h.History)
	api.GET("/ncs/:id/field-locks", h.FieldLocks)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func seedWorkflowUsers(t *testing.T, env *testutil.TestEnv) (qaToken, mgrToken, respToken string) {
	t.Helper()
	testutil.SeedTestUser(t, env.DB, "user-qa", "QA Officer")
	testutil.SeedTestUser(t, env.DB, "user-mgr", "Ops Manager")
	testutil.SeedTestUser(t, env.DB, "user-resp", "Shift Supervisor")

	qaToken = testutil.GenerateTestToken("user-qa", "QA Officer", []string{entity.RoleVerifier})
	mgrToken = testutil.GenerateTestToken("user-mgr", "Ops Manager", []string{entity.RoleManager})
	respToken = testutil.GenerateTestToken("user-resp", "Shift Supervisor", []string{entity.RoleViewer})
	return
}

func TestNCWorkflowApprovalPath(t *testing.T) {
	env := setupNCTest(t)
	qaToken, mgrToken, respToken := seedWorkflowUsers(t, env)

	// Report
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/ncs", map[string]interface{}{
		"title":              "Conveyor guard missing",
		"description":        "Guard panel removed on belt 3 and not reinstated",
		"responsible_person": "user-resp",
	}, respToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	ncID := data["id"].(string)
	if data["status"] != entity.NCStatusOpen {
		t.Errorf("Expected open, got %v", data["status"])
	}

	// Classify (QA)
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/classify", map[string]interface{}{
		"risk_classification": entity.RiskMajor,
		"comments":            "Guarding breach, immediate action",
	}, qaToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Classify: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.NCStatusInProgress {
		t.Errorf("Expected in_progress, got %v", data["status"])
	}
	if data["due_date"] == nil {
		t.Error("Expected due date to be derived from risk tier")
	}

	// Submit response (responsible person)
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/response", map[string]interface{}{
		"root_cause":        "Guard removed for maintenance, no re-fit checklist",
		"corrective_action": "Reinstall guard, add re-fit step to maintenance checklist",
	}, respToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Response: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.NCStatusPendingReview {
		t.Errorf("Expected pending_review, got %v", data["status"])
	}

	// Approve (manager)
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/decision", map[string]interface{}{
		"decision": "approve",
		"comments": "Actions adequate",
	}, mgrToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Decision: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.NCStatusClosed {
		t.Errorf("Expected closed, got %v", data["status"])
	}
	if data["closed_at"] == nil {
		t.Error("Expected closed_at to be set on approval")
	}

	// History carries one entry per transition
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/ncs/"+ncID+"/history", nil, qaToken)
	if w.Code != http.StatusOK {
		t.Fatalf("History: expected 200, got %d", w.Code)
	}
	hist := testutil.ParseResponse(w)["data"].(map[string]interface{})
	entries := hist["workflow_history"].([]interface{})
	if len(entries) != 3 {
		t.Errorf("Expected 3 history entries, got %d", len(entries))
	}

	// A closed NC admits no further transitions
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/decision", map[string]interface{}{
		"decision": "approve",
	}, mgrToken)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 on closed NC, got %d", w.Code)
	}
}

func TestNCWorkflowDeclineAndRework(t *testing.T) {
	env := setupNCTest(t)
	qaToken, mgrToken, respToken := seedWorkflowUsers(t, env)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/ncs", map[string]interface{}{
		"title":              "Dust suppression offline",
		"description":        "Sprayers on crusher 2 inoperative for two shifts",
		"responsible_person": "user-resp",
	}, qaToken)
	ncID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/classify", map[string]interface{}{
		"risk_classification": entity.RiskMinor,
	}, qaToken)
	testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/response", map[string]interface{}{
		"root_cause":        "Pump failure",
		"corrective_action": "Replace pump",
	}, respToken)

	// Decline without comments fails validation
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/decision", map[string]interface{}{
		"decision": "decline",
	}, mgrToken)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for decline without comments, got %d: %s", w.Code, w.Body.String())
	}

	// First decline loops back to rework
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/decision", map[string]interface{}{
		"decision": "decline",
		"comments": "No preventive action identified",
	}, mgrToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Decline: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.NCStatusInProgress || data["current_step"].(float64) != 3 {
		t.Errorf("Expected in_progress/step 3, got %v/step %v", data["status"], data["current_step"])
	}

	// Rework submission goes to the second review round
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/response", map[string]interface{}{
		"root_cause":        "Pump failure from abrasive slurry",
		"corrective_action": "Replace pump with hardened model",
		"preventive_action": "Quarterly pump inspection",
	}, respToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Rework: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["current_step"].(float64) != 5 {
		t.Errorf("Expected step 5 after rework, got %v", data["current_step"])
	}

	// Second decline is terminal
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/decision", map[string]interface{}{
		"decision": "decline",
		"comments": "Still insufficient",
	}, mgrToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Second decline: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["status"] != entity.NCStatusRejected {
		t.Errorf("Expected rejected after second decline, got %v", data["status"])
	}
}

func TestNCWorkflowAuthorization(t *testing.T) {
	env := setupNCTest(t)
	qaToken, _, respToken := seedWorkflowUsers(t, env)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/ncs", map[string]interface{}{
		"title":              "Unlabelled reagent drum",
		"description":        "Drum in plant store without hazard label",
		"responsible_person": "user-resp",
	}, qaToken)
	ncID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// A viewer cannot classify
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/classify", map[string]interface{}{
		"risk_classification": entity.RiskMinor,
	}, respToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for viewer classify, got %d", w.Code)
	}

	testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/classify", map[string]interface{}{
		"risk_classification": entity.RiskMinor,
	}, qaToken)

	// Someone other than the responsible person cannot submit
	otherToken := testutil.GenerateTestToken("user-qa", "QA Officer", []string{entity.RoleVerifier})
	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/response", map[string]interface{}{
		"root_cause":        "x",
		"corrective_action": "y",
	}, otherToken)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-responsible submit, got %d", w.Code)
	}
}

func TestNCFieldLocksEndpoint(t *testing.T) {
	env := setupNCTest(t)
	qaToken, _, respToken := seedWorkflowUsers(t, env)

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/ncs", map[string]interface{}{
		"title":              "Haul road potholes",
		"description":        "Section B haul road surface degraded",
		"responsible_person": "user-resp",
	}, qaToken)
	ncID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/classify", map[string]interface{}{
		"risk_classification": entity.RiskObservation,
	}, qaToken)

	// At step 2 the responsible person may edit response fields only
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/ncs/"+ncID+"/field-locks", nil, respToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	locks := data["locks"].(map[string]interface{})["fields"].(map[string]interface{})

	rootCause := locks["root_cause"].(map[string]interface{})
	if rootCause["editable"] != true {
		t.Errorf("Expected root_cause editable for responsible person at step 2: %v", rootCause)
	}
	risk := locks["risk_classification"].(map[string]interface{})
	if risk["editable"] != false {
		t.Errorf("Expected risk_classification locked for responsible person: %v", risk)
	}
}

func TestClassifyAssignmentNotifiesNewAssignee(t *testing.T) {
	env := setupNCTest(t)
	qaToken, _, _ := seedWorkflowUsers(t, env)

	// Reported without an assignee; QA names one at classification.
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/ncs", map[string]interface{}{
		"title":       "Spill kit missing from bay 4",
		"description": "Workshop bay 4 spill kit station found empty",
	}, qaToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	ncID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/ncs/"+ncID+"/classify", map[string]interface{}{
		"risk_classification": entity.RiskMinor,
		"responsible_person":  "user-resp",
	}, qaToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Classify: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["responsible_person"] != "user-resp" {
		t.Fatalf("Expected responsible_person user-resp, got %v", data["responsible_person"])
	}

	// Dispatch is async; wait for the assignment notification to land.
	deadline := time.Now().Add(3 * time.Second)
	for {
		var count int64
		env.DB.Model(&entity.Notification{}).
			Where("nc_id = ? AND recipient_id = ? AND event = ?",
				ncID, "user-resp", entity.NCActionQAClassified).
			Count(&count)
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected assignment notification for the new assignee, found %d", count)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
