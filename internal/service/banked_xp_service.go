package service

import (
	"context"
	"fmt"
	"math"

	"xp_engine/internal/model"
	"xp_engine/internal/repository"
	"xp_engine/internal/util"
	"xp_engine/pkg/logger"

	"go.uber.org/zap"
)

type BankedXPRequest struct {
	UserID     string `validate:"required"`
	CourseID   string `validate:"required"`
	UnitID     string `validate:"required"`
	ExerciseID string `validate:"required"`
}

// BankedXPService credits articles and videos between the previous quiz and a
// mastered exercise. It never writes anything.
type BankedXPService struct {
	Content     CourseContent
	ReadTime    repository.ReadTimeStore
	Completions CompletionReader
	Gradebook   Gradebook
}

func NewBankedXPService(content CourseContent, readTime repository.ReadTimeStore, completions CompletionReader, gradebook Gradebook) *BankedXPService {
	return &BankedXPService{
		Content:     content,
		ReadTime:    readTime,
		Completions: completions,
		Gradebook:   gradebook,
	}
}

func (s *BankedXPService) Resolve(ctx context.Context, req BankedXPRequest) (*model.BankedXPResult, error) {
	if err := validateStruct("resolve banked xp", req); err != nil {
		return nil, err
	}

	resources, err := s.Content.ListUnitResources(ctx, req.CourseID, req.UnitID)
	if err != nil {
		return nil, fmt.Errorf("resolve banked xp: list unit %s: %w", req.UnitID, err)
	}

	span, err := passiveSpan(resources, req.ExerciseID)
	if err != nil {
		return nil, fmt.Errorf("resolve banked xp: %w", err)
	}
	result := &model.BankedXPResult{AwardedResourceIDs: []string{}}
	if len(span) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(span))
	var videoIDs []string
	for _, r := range span {
		ids = append(ids, r.ID)
		if r.Type == model.ResourceVideo {
			videoIDs = append(videoIDs, r.ID)
		}
	}

	alreadyBanked, err := s.Gradebook.BankedResourceIDs(ctx, req.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve banked xp: load banked entries: %w", err)
	}
	completions, err := s.Completions.GetUserResourceCompletions(ctx, req.UserID, videoIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve banked xp: load video completions: %w", err)
	}

	for _, r := range span {
		if alreadyBanked[r.ID] {
			continue
		}
		var xp int
		switch r.Type {
		case model.ResourceArticle:
			xp, err = s.articleXP(ctx, req.UserID, r)
			if err != nil {
				return nil, fmt.Errorf("resolve banked xp: %w", err)
			}
		case model.ResourceVideo:
			if c, ok := completions[r.ID]; ok && c.Perfect() {
				xp = r.ExpectedXP
			}
		}
		if xp <= 0 {
			continue
		}
		result.BankedXP += xp
		result.AwardedResourceIDs = append(result.AwardedResourceIDs, r.ID)
		result.Awards = append(result.Awards, model.BankedAward{ResourceID: r.ID, ResourceType: r.Type, XP: xp})
	}

	logger.Log.Debug("banked xp resolved",
		zap.String("userId", req.UserID),
		zap.String("exerciseId", req.ExerciseID),
		zap.Int("bankedXp", result.BankedXP),
		zap.Strings("resources", result.AwardedResourceIDs))
	return result, nil
}

// articleXP accrues one XP per started minute of read time, capped at the expected XP.
func (s *BankedXPService) articleXP(ctx context.Context, userID string, r model.CourseResource) (int, error) {
	state, err := s.ReadTime.Get(ctx, userID, r.ID)
	if err != nil {
		return 0, fmt.Errorf("read time of %s: %w", r.ID, err)
	}
	if state == nil || state.CumulativeReadTimeSeconds <= 0 {
		return 0, nil
	}
	minutes := int(math.Ceil(state.CumulativeReadTimeSeconds / 60))
	if minutes > r.ExpectedXP {
		return r.ExpectedXP, nil
	}
	return minutes, nil
}

// passiveSpan returns the articles and videos after the last quiz preceding
// exerciseID. The span is empty unless the exercise is the gate of its
// section, i.e. no other exercise follows it before the next quiz.
func passiveSpan(resources []model.CourseResource, exerciseID string) ([]model.CourseResource, error) {
	pos := -1
	for i, r := range resources {
		if r.ID == exerciseID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, fmt.Errorf("exercise %s: %w", exerciseID, util.ErrResourceNotFound)
	}

	for _, r := range resources[pos+1:] {
		if r.Type == model.ResourceQuiz {
			break
		}
		if r.Type == model.ResourceExercise {
			return nil, nil
		}
	}

	start := 0
	for i := pos - 1; i >= 0; i-- {
		if resources[i].Type == model.ResourceQuiz {
			start = i + 1
			break
		}
	}

	var span []model.CourseResource
	for _, r := range resources[start:pos] {
		if r.Type.Passive() {
			span = append(span, r)
		}
	}
	return span, nil
}
