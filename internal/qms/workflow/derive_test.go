package workflow

import (
	"testing"
	"time"

	"github.com/stratamine/qms/internal/qms/entity"
)

func declineEntry(round int, comments string, at time.Time) entity.WorkflowEntry {
	return entity.WorkflowEntry{
		Step:        3,
		Action:      entity.NCActionManagerDeclined,
		PerformedBy: "user-mgr",
		PerformedAt: at,
		Comments:    comments,
		Round:       round,
	}
}

func TestCountDeclines(t *testing.T) {
	if n := CountDeclines(nil); n != 0 {
		t.Errorf("CountDeclines(nil) = %d, want 0", n)
	}

	history := entity.WorkflowHistory{
		{Step: 1, Action: entity.NCActionQAClassified},
		declineEntry(1, "first", frozenNow),
		{Step: 3, Action: entity.NCActionReworkSubmitted},
		declineEntry(2, "second", frozenNow.Add(time.Hour)),
	}
	if n := CountDeclines(history); n != 2 {
		t.Errorf("CountDeclines = %d, want 2", n)
	}
}

func TestEscalatedThreshold(t *testing.T) {
	history := entity.WorkflowHistory{
		declineEntry(1, "a", frozenNow),
		declineEntry(2, "b", frozenNow),
	}
	if Escalated(history) {
		t.Error("Escalated with 2 declines, want false")
	}
	history = append(history, declineEntry(2, "c", frozenNow))
	if !Escalated(history) {
		t.Error("Not escalated with 3 declines, want true")
	}
}

func TestLatestDeclineComments(t *testing.T) {
	if c := LatestDeclineComments(nil); c != "" {
		t.Errorf("LatestDeclineComments(nil) = %q, want empty", c)
	}

	history := entity.WorkflowHistory{
		declineEntry(1, "first decline", frozenNow),
		{Step: 3, Action: entity.NCActionReworkSubmitted},
		declineEntry(2, "second decline", frozenNow.Add(time.Hour)),
		{Step: 4, Action: entity.NCActionReworkRequested, Comments: "not a decline"},
	}
	if c := LatestDeclineComments(history); c != "second decline" {
		t.Errorf("LatestDeclineComments = %q, want %q", c, "second decline")
	}
}

func TestDueDateForRiskOffsets(t *testing.T) {
	cases := map[string]int{
		entity.RiskMajor:       3,
		entity.RiskMinor:       7,
		entity.RiskOFI:         14,
		entity.RiskObservation: 30,
	}
	for risk, days := range cases {
		got := DueDateForRisk(risk, frozenNow)
		want := frozenNow.Add(time.Duration(days) * 24 * time.Hour)
		if !got.Equal(want) {
			t.Errorf("DueDateForRisk(%s) = %v, want %v", risk, got, want)
		}
	}
	// Unknown tier falls back to the widest window.
	if got := DueDateForRisk("bogus", frozenNow); !got.Equal(frozenNow.Add(30 * 24 * time.Hour)) {
		t.Errorf("DueDateForRisk(bogus) = %v, want +30d", got)
	}
}
