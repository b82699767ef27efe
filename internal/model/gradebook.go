package model

import "gorm.io/datatypes"

type GradebookKind string

const (
	GradebookAssessment GradebookKind = "assessment"
	GradebookBanked     GradebookKind = "banked"
)

// GradebookMetadata travels with every gradebook row. XP is the exercise-only
// value; banked XP is recorded on its own rows.
type GradebookMetadata struct {
	XP              int         `json:"xp"`
	PrePenaltyXP    int         `json:"prePenaltyXp"`
	Multiplier      float64     `json:"multiplier"`
	Accuracy        float64     `json:"accuracy"`
	PenaltyApplied  bool        `json:"penaltyApplied"`
	PenaltyReason   string      `json:"penaltyReason,omitempty"`
	BankedXP        int         `json:"bankedXp"`
	TotalXP         int         `json:"totalXp"`
	RequiresRetry   bool        `json:"requiresRetry"`
	ContentType     ContentType `json:"contentType,omitempty"`
	DurationSeconds int         `json:"durationSeconds"`
	// set on banked rows: the exercise whose mastery released the XP
	SourceResourceID string `json:"sourceResourceId,omitempty"`
}

// swagger:model GradebookResult
type GradebookResult struct {
	UUIDBase

	UserID        string        `gorm:"type:varchar(64);uniqueIndex:idx_gradebook_natural,priority:1" json:"userId"`
	ResourceID    string        `gorm:"type:varchar(64);uniqueIndex:idx_gradebook_natural,priority:2" json:"resourceId"`
	Kind          GradebookKind `gorm:"type:varchar(16);uniqueIndex:idx_gradebook_natural,priority:3" json:"kind"`
	AttemptNumber int           `gorm:"uniqueIndex:idx_gradebook_natural,priority:4" json:"attemptNumber"`
	CourseID      string        `gorm:"type:varchar(64);index" json:"courseId"`
	Score         float64       `json:"score"`
	CorrectCount  int           `json:"correctCount"`
	TotalCount    int           `json:"totalCount"`
	XP            int           `json:"xp"`

	Metadata datatypes.JSONType[GradebookMetadata] `json:"metadata"`
}

func (GradebookResult) TableName() string {
	return "gradebook_results"
}
