package model

import "time"

type UserStreak struct {
	UserID         string `gorm:"primaryKey;type:varchar(64)" json:"userId"`
	CurrentStreak  int    `json:"currentStreak"`
	LongestStreak  int    `json:"longestStreak"`
	LastActiveDate string `gorm:"type:varchar(10)" json:"lastActiveDate"`
	UpdatedAt      time.Time
}

func (UserStreak) TableName() string {
	return "user_streaks"
}
