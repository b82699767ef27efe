package service

import (
	"context"
	"time"

	"xp_engine/internal/event"
	"xp_engine/internal/model"
)

// Gradebook persists scored results. Writes fail loudly and are idempotent per
// natural key (user, resource, kind, attempt number).
type Gradebook interface {
	SaveResult(ctx context.Context, result *model.GradebookResult) (string, error)
	SaveResults(ctx context.Context, results []*model.GradebookResult) ([]string, error)
	GetResult(ctx context.Context, id string) (*model.GradebookResult, error)
	GetAllResults(ctx context.Context, userID, courseID string) ([]model.GradebookResult, error)
	CountAttempts(ctx context.Context, userID, resourceID string) (int64, error)
	BankedResourceIDs(ctx context.Context, userID string, resourceIDs []string) (map[string]bool, error)
}

// Analytics receives the learner activity events. Failures are logged by the
// caller and never retried, so every call site decides the dispatch count.
type Analytics interface {
	SendActivityCompletedEvent(ctx context.Context, evt *event.ActivityCompletedEvent) error
	SendTimeSpentEvent(ctx context.Context, evt *event.TimeSpentEvent) error
}

// Identity resolves the authenticated caller of a request.
type Identity interface {
	CallerID(ctx context.Context) (string, error)
}

type CourseContent interface {
	ListUnitResources(ctx context.Context, courseID, unitID string) ([]model.CourseResource, error)
	FindResource(ctx context.Context, id string) (*model.CourseResource, error)
}

type CompletionReader interface {
	GetUserResourceCompletions(ctx context.Context, userID string, resourceIDs []string) (map[string]model.ResourceCompletion, error)
}

// Post-commit hooks. Their failures are logged and never undo a finalization.
type (
	ProgressCache interface {
		Invalidate(ctx context.Context, userID, courseID string) error
	}
	StreakUpdater interface {
		Update(ctx context.Context, userID string, at time.Time) error
	}
	ProficiencyTracker interface {
		IsProficient(ctx context.Context, userID, resourceID string) (bool, error)
		Update(ctx context.Context, userID, courseID, resourceID string, accuracyPercent float64) error
	}
)
