package model

import (
	"time"

	"gorm.io/gorm"
)

// ResourceCompletion 记录用户对资源的完成状态 (videos report a completion score)
// swagger:model ResourceCompletion
type ResourceCompletion struct {
	gorm.Model
	UserID      string  `gorm:"type:varchar(64);index:idx_user_resource,unique"`
	ResourceID  string  `gorm:"type:varchar(64);index:idx_user_resource,unique"`
	Completed   bool    `gorm:"default:false"`
	Score       float64 `gorm:"default:0"`
	CompletedAt *time.Time
}

func (ResourceCompletion) TableName() string {
	return "resource_completions"
}

// Perfect reports a full completion, the only signal that releases video XP.
func (c ResourceCompletion) Perfect() bool {
	return c.Completed && c.Score >= 100
}
