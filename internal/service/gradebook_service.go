package service

import (
	"context"
	"errors"
	"fmt"

	"xp_engine/internal/model"
	"xp_engine/internal/util"

	"gorm.io/gorm"
)

// GradebookService serves a learner's own gradebook rows.
type GradebookService struct {
	Gradebook Gradebook
	Identity  Identity
}

func NewGradebookService(gradebook Gradebook, identity Identity) *GradebookService {
	return &GradebookService{Gradebook: gradebook, Identity: identity}
}

func (s *GradebookService) ListResults(ctx context.Context, userID, courseID string) ([]model.GradebookResult, error) {
	if userID == "" || courseID == "" {
		return nil, validationError("list results", "userId and courseId are required")
	}
	if err := checkIdentity(ctx, s.Identity, userID, "list results"); err != nil {
		return nil, err
	}
	return s.Gradebook.GetAllResults(ctx, userID, courseID)
}

func (s *GradebookService) GetResult(ctx context.Context, userID, resultID string) (*model.GradebookResult, error) {
	if err := checkIdentity(ctx, s.Identity, userID, "get result"); err != nil {
		return nil, err
	}
	res, err := s.Gradebook.GetResult(ctx, resultID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("result %s: %w", resultID, util.ErrResourceNotFound)
	}
	if err != nil {
		return nil, err
	}
	// other users' rows are reported as missing
	if res.UserID != userID {
		return nil, fmt.Errorf("result %s: %w", resultID, util.ErrResourceNotFound)
	}
	return res, nil
}
