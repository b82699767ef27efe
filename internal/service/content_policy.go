package service

import "xp_engine/internal/model"

// ContentPolicy holds the per content type rules of the engine.
type ContentPolicy interface {
	// AnalyticsXP is the XP value reported to analytics for a computed award.
	AnalyticsXP(award model.XPAward) int
	// EarnsBankedXP reports whether mastering this content releases banked XP.
	EarnsBankedXP() bool
}

type exercisePolicy struct{}

// Exercise reports its own XP only; banked XP travels on separate gradebook rows.
func (exercisePolicy) AnalyticsXP(award model.XPAward) int { return award.FinalXP }
func (exercisePolicy) EarnsBankedXP() bool                 { return true }

// masteryGatedPolicy is shared by quizzes, unit tests and course challenges.
type masteryGatedPolicy struct{}

func (masteryGatedPolicy) AnalyticsXP(award model.XPAward) int {
	if RequiresRetry(award.AccuracyPercent(), award.ScorableCount, false) {
		return 0
	}
	return award.FinalXP
}

func (masteryGatedPolicy) EarnsBankedXP() bool { return false }

var contentPolicies = map[model.ContentType]ContentPolicy{
	model.ContentExercise:        exercisePolicy{},
	model.ContentQuiz:            masteryGatedPolicy{},
	model.ContentTest:            masteryGatedPolicy{},
	model.ContentCourseChallenge: masteryGatedPolicy{},
}

// PolicyFor returns the policy of a content type; ok is false for unknown types.
func PolicyFor(ct model.ContentType) (ContentPolicy, bool) {
	p, ok := contentPolicies[ct]
	return p, ok
}
