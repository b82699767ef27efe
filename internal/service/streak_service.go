package service

import (
	"context"
	"time"

	"xp_engine/internal/model"
	"xp_engine/internal/util"
)

type streakStore interface {
	FindByUser(ctx context.Context, userID string) (*model.UserStreak, error)
	Save(ctx context.Context, s *model.UserStreak) error
}

// StreakService counts consecutive active days.
type StreakService struct {
	Repo streakStore
}

func NewStreakService(repo streakStore) *StreakService {
	return &StreakService{Repo: repo}
}

// Update marks the day of at as active. Several activities on one day count once.
func (s *StreakService) Update(ctx context.Context, userID string, at time.Time) error {
	streak, err := s.Repo.FindByUser(ctx, userID)
	if err != nil {
		return err
	}
	today := at.Format(util.DateFormat)
	if streak == nil {
		streak = &model.UserStreak{UserID: userID}
	}
	if streak.LastActiveDate == today {
		return nil
	}

	yesterday := at.AddDate(0, 0, -1).Format(util.DateFormat)
	if streak.LastActiveDate == yesterday {
		streak.CurrentStreak++
	} else {
		streak.CurrentStreak = 1
	}
	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.LastActiveDate = today
	return s.Repo.Save(ctx, streak)
}

// Get returns the user's streak; users without activity get a zero streak.
func (s *StreakService) Get(ctx context.Context, userID string) (*model.UserStreak, error) {
	streak, err := s.Repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if streak == nil {
		streak = &model.UserStreak{UserID: userID}
	}
	return streak, nil
}
