package model

import (
	"time"

	"gorm.io/gorm"
)

// UserProficiency tracks the best result of a user on an assessment.
type UserProficiency struct {
	gorm.Model
	UserID       string  `gorm:"type:varchar(64);index:idx_user_assessment,unique"`
	ResourceID   string  `gorm:"type:varchar(64);index:idx_user_assessment,unique"`
	CourseID     string  `gorm:"type:varchar(64);index"`
	BestAccuracy float64 `json:"bestAccuracy"`
	Attempts     int     `json:"attempts"`
	ProficientAt *time.Time
}

func (UserProficiency) TableName() string {
	return "user_proficiencies"
}

func (p UserProficiency) IsProficient() bool {
	return p.ProficientAt != nil
}
