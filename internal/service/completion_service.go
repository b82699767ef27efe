package service

import (
	"context"

	"xp_engine/internal/model"
)

type completionStore interface {
	GetCompletion(ctx context.Context, userID, resourceID string) (*model.ResourceCompletion, error)
	RecordCompletion(ctx context.Context, userID, resourceID string, score float64) error
}

type CompletionRequest struct {
	UserID     string  `json:"userId" validate:"required"`
	ResourceID string  `json:"resourceId" validate:"required"`
	Score      float64 `json:"score" validate:"gte=0,lte=100"`
}

// CompletionService records video completions, the signal that releases
// banked XP for videos.
type CompletionService struct {
	Repo     completionStore
	Content  CourseContent
	Identity Identity
}

func NewCompletionService(repo completionStore, content CourseContent, identity Identity) *CompletionService {
	return &CompletionService{Repo: repo, Content: content, Identity: identity}
}

func (s *CompletionService) RecordCompletion(ctx context.Context, req CompletionRequest) (*model.ResourceCompletion, error) {
	if err := validateStruct("record completion", req); err != nil {
		return nil, err
	}
	if err := checkIdentity(ctx, s.Identity, req.UserID, "record completion"); err != nil {
		return nil, err
	}
	res, err := s.Content.FindResource(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if !res.Type.Passive() {
		return nil, validationError("record completion", "resource %s is a %s, not passive content", res.ID, res.Type)
	}
	if err := s.Repo.RecordCompletion(ctx, req.UserID, req.ResourceID, req.Score); err != nil {
		return nil, err
	}
	return s.Repo.GetCompletion(ctx, req.UserID, req.ResourceID)
}
