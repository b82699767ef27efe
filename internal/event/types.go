package event

import (
	"time"

	"xp_engine/internal/model"
)

const (
	RoutingActivityCompleted = "analytics.activity.completed"
	RoutingTimeSpent         = "analytics.time.spent"
)

// ActivityCompletedEvent carries the analytics-visible XP of a finalized
// assessment. Banked XP is never part of XP.
type ActivityCompletedEvent struct {
	EventID       string            `json:"eventId"`
	UserID        string            `json:"userId"`
	CourseID      string            `json:"courseId"`
	ResourceID    string            `json:"resourceId"`
	ContentType   model.ContentType `json:"contentType"`
	AttemptNumber int               `json:"attemptNumber"`
	XP            int               `json:"xp"`
	Accuracy      float64           `json:"accuracy"`
	CorrectCount  int               `json:"correctCount"`
	TotalCount    int               `json:"totalCount"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

type TimeSpentSource string

const (
	TimeSpentAssessment TimeSpentSource = "assessment"
	TimeSpentReadTime   TimeSpentSource = "read_time"
)

type TimeSpentEvent struct {
	EventID         string          `json:"eventId"`
	UserID          string          `json:"userId"`
	CourseID        string          `json:"courseId,omitempty"`
	ResourceID      string          `json:"resourceId"`
	Source          TimeSpentSource `json:"source"`
	DurationSeconds float64         `json:"durationSeconds"`
	// Final is set by the read-time finalize that closes the resource
	Final      bool      `json:"final,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
