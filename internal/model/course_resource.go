package model

import "time"

// CourseResource is one item of a unit's ordered content.
// swagger:model CourseResource
type CourseResource struct {
	ID              string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CourseID        string       `gorm:"type:varchar(64);index:idx_course_unit,priority:1" json:"courseId"`
	UnitID          string       `gorm:"type:varchar(64);index:idx_course_unit,priority:2" json:"unitId"`
	LessonID        string       `gorm:"type:varchar(64)" json:"lessonId"`
	LessonSortOrder int          `json:"lessonSortOrder"`
	SortOrder       int          `json:"sortOrder"`
	Type            ResourceType `gorm:"type:varchar(32)" json:"type"`
	Title           string       `json:"title"`
	ExpectedXP      int          `json:"expectedXp"`
	// DurationSeconds caps accrued read time when the content has a known length
	DurationSeconds *float64  `json:"durationSeconds,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (CourseResource) TableName() string {
	return "course_resources"
}
