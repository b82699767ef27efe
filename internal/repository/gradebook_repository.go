package repository

import (
	"context"
	"errors"

	"xp_engine/internal/model"

	"gorm.io/gorm"
)

type GradebookRepository struct {
	DB *gorm.DB
}

func NewGradebookRepository(db *gorm.DB) *GradebookRepository {
	return &GradebookRepository{DB: db}
}

// SaveResult writes a single result and returns its id. Writing the same
// natural key twice updates the existing row instead of duplicating it.
func (r *GradebookRepository) SaveResult(ctx context.Context, result *model.GradebookResult) (string, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertResult(tx, result)
	})
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

// SaveResults writes all results in one transaction; either every row lands or none.
func (r *GradebookRepository) SaveResults(ctx context.Context, results []*model.GradebookResult) ([]string, error) {
	ids := make([]string, 0, len(results))
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, res := range results {
			if err := upsertResult(tx, res); err != nil {
				return err
			}
			ids = append(ids, res.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func upsertResult(tx *gorm.DB, result *model.GradebookResult) error {
	var existing model.GradebookResult
	err := tx.Where("user_id = ? AND resource_id = ? AND kind = ? AND attempt_number = ?",
		result.UserID, result.ResourceID, result.Kind, result.AttemptNumber).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(result).Error
	}
	if err != nil {
		return err
	}
	result.ID = existing.ID
	result.CreatedAt = existing.CreatedAt
	return tx.Save(result).Error
}

func (r *GradebookRepository) GetResult(ctx context.Context, id string) (*model.GradebookResult, error) {
	var res model.GradebookResult
	if err := r.DB.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *GradebookRepository) GetAllResults(ctx context.Context, userID, courseID string) ([]model.GradebookResult, error) {
	var results []model.GradebookResult
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("created_at ASC").
		Find(&results).Error
	return results, err
}

// CountAttempts returns how many assessment results the user already has for the resource.
func (r *GradebookRepository) CountAttempts(ctx context.Context, userID, resourceID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.GradebookResult{}).
		Where("user_id = ? AND resource_id = ? AND kind = ?", userID, resourceID, model.GradebookAssessment).
		Count(&count).Error
	return count, err
}

// BankedResourceIDs returns the subset of resourceIDs the user already received banked XP for.
func (r *GradebookRepository) BankedResourceIDs(ctx context.Context, userID string, resourceIDs []string) (map[string]bool, error) {
	banked := make(map[string]bool)
	if len(resourceIDs) == 0 {
		return banked, nil
	}
	var ids []string
	err := r.DB.WithContext(ctx).Model(&model.GradebookResult{}).
		Where("user_id = ? AND kind = ? AND resource_id IN ?", userID, model.GradebookBanked, resourceIDs).
		Pluck("resource_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		banked[id] = true
	}
	return banked, nil
}
