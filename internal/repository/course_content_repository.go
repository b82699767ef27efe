package repository

import (
	"context"
	"errors"

	"xp_engine/internal/model"
	"xp_engine/internal/util"

	"gorm.io/gorm"
)

type CourseContentRepository struct {
	DB *gorm.DB
}

func NewCourseContentRepository(db *gorm.DB) *CourseContentRepository {
	return &CourseContentRepository{DB: db}
}

// ListUnitResources returns a unit's resources in display order.
func (r *CourseContentRepository) ListUnitResources(ctx context.Context, courseID, unitID string) ([]model.CourseResource, error) {
	var resources []model.CourseResource
	err := r.DB.WithContext(ctx).
		Where("course_id = ? AND unit_id = ?", courseID, unitID).
		Order("lesson_sort_order ASC, sort_order ASC, id ASC").
		Find(&resources).Error
	return resources, err
}

func (r *CourseContentRepository) FindResource(ctx context.Context, id string) (*model.CourseResource, error) {
	var res model.CourseResource
	err := r.DB.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrResourceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}
