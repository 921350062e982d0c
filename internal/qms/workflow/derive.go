package workflow

import (
	"time"

	"github.com/stratamine/qms/internal/qms/entity"
)

// EscalationThreshold is the decline count at which an NC is flagged for
// management attention. The flag is advisory only; it never alters the
// transition table.
const EscalationThreshold = 3

// Due-date offsets per risk tier, counted from the classification timestamp.
var riskDueOffsets = map[string]time.Duration{
	entity.RiskMajor:       3 * 24 * time.Hour,
	entity.RiskMinor:       7 * 24 * time.Hour,
	entity.RiskOFI:         14 * 24 * time.Hour,
	entity.RiskObservation: 30 * 24 * time.Hour,
}

// DueDateForRisk returns the default remediation due date for a risk tier.
// Unknown tiers get the observation window; Classify validates the tier before
// calling here, so that branch only serves direct callers.
func DueDateForRisk(risk string, now time.Time) time.Time {
	offset, ok := riskDueOffsets[risk]
	if !ok {
		offset = riskDueOffsets[entity.RiskObservation]
	}
	return now.Add(offset)
}

// CountDeclines returns the number of manager declines in the history. Both
// the review UI and the service derive the round flag for ManagerDecide from
// this count, so UI state can never drift from the authoritative trail.
func CountDeclines(history entity.WorkflowHistory) int {
	n := 0
	for _, e := range history {
		if e.Action == entity.NCActionManagerDeclined {
			n++
		}
	}
	return n
}

// Escalated reports whether the NC has accumulated enough declines to warrant
// the advisory escalation warning in the review UI.
func Escalated(history entity.WorkflowHistory) bool {
	return CountDeclines(history) >= EscalationThreshold
}

// LatestDeclineComments returns the comments of the most recent manager
// decline, shown to the responsible person as rework context. Empty when the
// NC has never been declined.
func LatestDeclineComments(history entity.WorkflowHistory) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Action == entity.NCActionManagerDeclined {
			return history[i].Comments
		}
	}
	return ""
}
