package repository

import (
	"context"
	"errors"
	"time"

	"xp_engine/internal/model"

	"gorm.io/gorm"
)

type ResourceCompletionRepository struct {
	DB *gorm.DB
}

func NewResourceCompletionRepository(db *gorm.DB) *ResourceCompletionRepository {
	return &ResourceCompletionRepository{DB: db}
}

// GetCompletion 获取用户对指定资源的完成记录，不存在时返回 nil
func (r *ResourceCompletionRepository) GetCompletion(ctx context.Context, userID, resourceID string) (*model.ResourceCompletion, error) {
	var completion model.ResourceCompletion
	err := r.DB.WithContext(ctx).Where("user_id = ? AND resource_id = ?", userID, resourceID).First(&completion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

// RecordCompletion 更新用户对资源的完成状态; the best score is kept.
func (r *ResourceCompletionRepository) RecordCompletion(ctx context.Context, userID, resourceID string, score float64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.ResourceCompletion
		err := tx.Where("user_id = ? AND resource_id = ?", userID, resourceID).First(&existing).Error
		now := time.Now()

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.ResourceCompletion{
				UserID:      userID,
				ResourceID:  resourceID,
				Completed:   true,
				Score:       score,
				CompletedAt: &now,
			}).Error
		}
		if err != nil {
			return err
		}

		existing.Completed = true
		if score > existing.Score {
			existing.Score = score
			existing.CompletedAt = &now
		}
		return tx.Save(&existing).Error
	})
}

// GetUserResourceCompletions 获取用户对一组资源的完成记录
func (r *ResourceCompletionRepository) GetUserResourceCompletions(ctx context.Context, userID string, resourceIDs []string) (map[string]model.ResourceCompletion, error) {
	statusMap := make(map[string]model.ResourceCompletion)
	if len(resourceIDs) == 0 {
		return statusMap, nil
	}
	var completions []model.ResourceCompletion
	err := r.DB.WithContext(ctx).Where("user_id = ? AND resource_id IN ?", userID, resourceIDs).Find(&completions).Error
	if err != nil {
		return nil, err
	}
	for _, completion := range completions {
		statusMap[completion.ResourceID] = completion
	}
	return statusMap, nil
}
