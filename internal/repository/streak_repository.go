package repository

import (
	"context"
	"errors"

	"xp_engine/internal/model"

	"gorm.io/gorm"
)

type StreakRepository struct {
	DB *gorm.DB
}

func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{DB: db}
}

func (r *StreakRepository) FindByUser(ctx context.Context, userID string) (*model.UserStreak, error) {
	var s model.UserStreak
	err := r.DB.WithContext(ctx).First(&s, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StreakRepository) Save(ctx context.Context, s *model.UserStreak) error {
	return r.DB.WithContext(ctx).Save(s).Error
}
