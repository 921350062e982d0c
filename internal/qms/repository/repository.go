package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrStaleSnapshot: a transition write matched zero rows because another
	// writer moved the NC first. The caller re-fetches and re-decides; there
	// is no automatic retry.
	ErrStaleSnapshot = errors.New("nc snapshot is stale")
)

// Repositories bundles all repositories over one DB handle.
type Repositories struct {
	NC         *NCRepository
	User       *UserRepository
	Audit      *AuditRepository
	Survey     *SurveyRepository
	Moderation *ModerationRepository
}

// NewRepositories creates the repository set.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		NC:         NewNCRepository(db),
		User:       NewUserRepository(db),
		Audit:      NewAuditRepository(db),
		Survey:     NewSurveyRepository(db),
		Moderation: NewModerationRepository(db),
	}
}
