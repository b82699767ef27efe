package service

import (
	"context"
	"time"

	"xp_engine/internal/model"
	"xp_engine/internal/util"
)

type proficiencyStore interface {
	Find(ctx context.Context, userID, resourceID string) (*model.UserProficiency, error)
	Save(ctx context.Context, p *model.UserProficiency) error
	ListByCourse(ctx context.Context, userID, courseID string) ([]model.UserProficiency, error)
}

// ProficiencyService remembers which assessments a user has mastered. Once
// proficient, a user stays proficient.
type ProficiencyService struct {
	Repo proficiencyStore
	now  func() time.Time
}

func NewProficiencyService(repo proficiencyStore) *ProficiencyService {
	return &ProficiencyService{Repo: repo, now: time.Now}
}

func (s *ProficiencyService) IsProficient(ctx context.Context, userID, resourceID string) (bool, error) {
	p, err := s.Repo.Find(ctx, userID, resourceID)
	if err != nil {
		return false, err
	}
	return p != nil && p.IsProficient(), nil
}

func (s *ProficiencyService) Update(ctx context.Context, userID, courseID, resourceID string, accuracyPercent float64) error {
	p, err := s.Repo.Find(ctx, userID, resourceID)
	if err != nil {
		return err
	}
	if p == nil {
		p = &model.UserProficiency{UserID: userID, ResourceID: resourceID, CourseID: courseID}
	}
	p.Attempts++
	if accuracyPercent > p.BestAccuracy {
		p.BestAccuracy = accuracyPercent
	}
	if p.ProficientAt == nil && accuracyPercent >= util.MasteryThreshold {
		now := time.Now()
		if s.now != nil {
			now = s.now()
		}
		p.ProficientAt = &now
	}
	return s.Repo.Save(ctx, p)
}

func (s *ProficiencyService) ListByCourse(ctx context.Context, userID, courseID string) ([]model.UserProficiency, error) {
	return s.Repo.ListByCourse(ctx, userID, courseID)
}
