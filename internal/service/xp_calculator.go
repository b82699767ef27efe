package service

import (
	"fmt"
	"math"
	"time"

	"xp_engine/internal/config"
	"xp_engine/internal/model"
)

type XPInput struct {
	ContentType   model.ContentType `validate:"required"`
	BaseXP        int               `validate:"gte=0"`
	AttemptNumber int               `validate:"gte=1"`
	// Outcomes may include reported questions; they are excluded from scoring
	Outcomes             []model.QuestionOutcome
	Duration             time.Duration `validate:"gte=0"`
	WasAlreadyProficient bool
}

type XPCalculator struct {
	Tuning *EngineTuning
}

func NewXPCalculator(tuning *EngineTuning) *XPCalculator {
	return &XPCalculator{Tuning: tuning}
}

// Calculate scores one attempt. It only fails on malformed input.
func (c *XPCalculator) Calculate(in XPInput) (model.XPAward, error) {
	if err := validateStruct("calculate xp", in); err != nil {
		return model.XPAward{}, err
	}
	policy, ok := PolicyFor(in.ContentType)
	if !ok {
		return model.XPAward{}, validationError("calculate xp", "unknown content type %q", in.ContentType)
	}

	correct, scorable := 0, 0
	for i, o := range in.Outcomes {
		switch o {
		case model.OutcomeCorrect:
			correct++
			scorable++
		case model.OutcomeIncorrect:
			scorable++
		case model.OutcomeReported:
		default:
			return model.XPAward{}, validationError("calculate xp", "question %d has unknown outcome %q", i, o)
		}
	}

	cfg := c.Tuning.Get()
	award := model.XPAward{
		CorrectCount:  correct,
		ScorableCount: scorable,
	}
	if scorable > 0 {
		award.Accuracy = float64(correct) / float64(scorable)
	}

	award.Multiplier = attemptMultiplier(cfg, award.Accuracy, in.AttemptNumber)
	award.PrePenaltyXP = roundHalfUp(float64(in.BaseXP) * award.Multiplier)
	award.FinalXP = award.PrePenaltyXP
	award.Reason = multiplierReason(award.Accuracy, in.AttemptNumber)

	if scorable > 0 && award.PrePenaltyXP > 0 {
		perQuestion := in.Duration.Seconds() / float64(scorable)
		if perQuestion < cfg.MinSecondsPerQuestion {
			award.PenaltyApplied = true
			award.FinalXP = roundHalfUp(float64(award.PrePenaltyXP) * cfg.RushPenaltyFactor)
			award.Reason = fmt.Sprintf("rushed: %.1fs per question is below the %.1fs minimum, xp reduced from %d to %d",
				perQuestion, cfg.MinSecondsPerQuestion, award.PrePenaltyXP, award.FinalXP)
		}
	}

	award.RequiresRetry = RequiresRetry(award.AccuracyPercent(), scorable, in.WasAlreadyProficient)
	award.AnalyticsXP = policy.AnalyticsXP(award)
	return award, nil
}

// attemptMultiplier applies the accuracy curve and, for retries, the decay.
func attemptMultiplier(cfg config.EngineConfig, accuracy float64, attempt int) float64 {
	m := firstAttemptMultiplier(cfg, accuracy)
	if attempt > 1 {
		m *= cfg.RetryDecay
	}
	return m
}

func firstAttemptMultiplier(cfg config.EngineConfig, accuracy float64) float64 {
	if accuracy >= 1 {
		return cfg.FirstAttemptBonus
	}
	if accuracy <= 0 {
		return 0
	}
	if len(cfg.AccuracyCurve) == 0 {
		return accuracy
	}
	m, floor := 0.0, -1.0
	for _, step := range cfg.AccuracyCurve {
		if accuracy >= step.MinAccuracy && step.MinAccuracy > floor {
			m, floor = step.Multiplier, step.MinAccuracy
		}
	}
	return m
}

func multiplierReason(accuracy float64, attempt int) string {
	switch {
	case accuracy <= 0:
		return "no correct answers"
	case accuracy >= 1 && attempt == 1:
		return "perfect first attempt bonus"
	case attempt > 1:
		return fmt.Sprintf("retry decay applied on attempt %d", attempt)
	default:
		return fmt.Sprintf("scaled by accuracy %.0f%%", accuracy*100)
	}
}

// roundHalfUp rounds x.5 up; the epsilon absorbs float error such as 62.49999.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5 + 1e-9))
}
