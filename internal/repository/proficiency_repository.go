package repository

import (
	"context"
	"errors"

	"xp_engine/internal/model"

	"gorm.io/gorm"
)

type ProficiencyRepository struct {
	DB *gorm.DB
}

func NewProficiencyRepository(db *gorm.DB) *ProficiencyRepository {
	return &ProficiencyRepository{DB: db}
}

// Find returns nil when the user never finished the assessment.
func (r *ProficiencyRepository) Find(ctx context.Context, userID, resourceID string) (*model.UserProficiency, error) {
	var p model.UserProficiency
	err := r.DB.WithContext(ctx).Where("user_id = ? AND resource_id = ?", userID, resourceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProficiencyRepository) Save(ctx context.Context, p *model.UserProficiency) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *ProficiencyRepository) ListByCourse(ctx context.Context, userID, courseID string) ([]model.UserProficiency, error) {
	var list []model.UserProficiency
	err := r.DB.WithContext(ctx).Where("user_id = ? AND course_id = ?", userID, courseID).Find(&list).Error
	return list, err
}
