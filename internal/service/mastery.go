package service

import "xp_engine/internal/util"

// RequiresRetry decides whether the learner has to take the assessment again.
// An attempt with no scorable questions never demonstrates mastery.
func RequiresRetry(accuracyPercent float64, totalScorableQuestions int, wasAlreadyProficient bool) bool {
	if totalScorableQuestions <= 0 {
		return true
	}
	if accuracyPercent >= util.MasteryThreshold {
		return false
	}
	// a voluntary retake must not take away earlier proficiency
	if wasAlreadyProficient {
		return false
	}
	return true
}
