package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"xp_engine/internal/event"
	"xp_engine/internal/model"
	"xp_engine/internal/repository"
	"xp_engine/internal/util"
	"xp_engine/pkg/lock"
	"xp_engine/pkg/logger"
	"xp_engine/pkg/monitoring"
	"xp_engine/pkg/tracing"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type FinalizeOptions struct {
	UserID     string `json:"userId" validate:"required"`
	SessionID  string `json:"sessionId" validate:"required"`
	ResourceID string `json:"resourceId" validate:"required"`
	CourseID   string `json:"courseId" validate:"required"`
	// UnitID locates the exercise in the course for banked XP
	UnitID      string            `json:"unitId"`
	ContentType model.ContentType `json:"contentType" validate:"required,oneof=Exercise Quiz Test CourseChallenge"`
	ExpectedXP  int               `json:"expectedXp" validate:"gte=0"`
}

type FinalizationResult struct {
	ResultID        string               `json:"resultId"`
	AttemptNumber   int                  `json:"attemptNumber"`
	ExerciseXP      int                  `json:"exerciseXp"`
	BankedXP        int                  `json:"bankedXp"`
	TotalXP         int                  `json:"totalXp"`
	AnalyticsXP     int                  `json:"analyticsXp"`
	Award           model.XPAward        `json:"award"`
	Banked          model.BankedXPResult `json:"banked"`
	RequiresRetry   bool                 `json:"requiresRetry"`
	DurationSeconds int                  `json:"durationSeconds"`
}

// FinalizationService turns a completed attempt into gradebook rows, analytics
// events and progress updates, at most once per attempt.
type FinalizationService struct {
	Attempts    repository.AttemptStateStore
	Calculator  *XPCalculator
	Banked      *BankedXPService
	Gradebook   Gradebook
	Analytics   Analytics
	Identity    Identity
	Locker      lock.Locker
	Progress    ProgressCache
	Streaks     StreakUpdater
	Proficiency ProficiencyTracker
	Tuning      *EngineTuning
	now         func() time.Time
}

func NewFinalizationService(
	attempts repository.AttemptStateStore,
	calculator *XPCalculator,
	banked *BankedXPService,
	gradebook Gradebook,
	analytics Analytics,
	identity Identity,
	locker lock.Locker,
	progress ProgressCache,
	streaks StreakUpdater,
	proficiency ProficiencyTracker,
	tuning *EngineTuning,
) *FinalizationService {
	return &FinalizationService{
		Attempts:    attempts,
		Calculator:  calculator,
		Banked:      banked,
		Gradebook:   gradebook,
		Analytics:   analytics,
		Identity:    identity,
		Locker:      locker,
		Progress:    progress,
		Streaks:     streaks,
		Proficiency: proficiency,
		Tuning:      tuning,
		now:         time.Now,
	}
}

// FinalizeAssessment scores the attempt identified by opts and commits the
// result. A second call for the same attempt fails with util.ErrNotFinalizable;
// a call racing a running finalization fails with util.ErrConcurrentFinalization.
func (s *FinalizationService) FinalizeAssessment(ctx context.Context, opts FinalizeOptions) (result *FinalizationResult, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "FinalizeAssessment",
		"resource.id", opts.ResourceID,
		"content.type", string(opts.ContentType))
	defer func() {
		tracing.EndSpan(span, err)
		monitoring.Finalizations.WithLabelValues(string(opts.ContentType), finalizeOutcome(err)).Inc()
		monitoring.FinalizeDuration.WithLabelValues(string(opts.ContentType)).Observe(time.Since(start).Seconds())
	}()

	if err = validateStruct("finalize assessment", opts); err != nil {
		return nil, err
	}
	if err = checkIdentity(ctx, s.Identity, opts.UserID, "finalize assessment"); err != nil {
		return nil, err
	}

	cfg := s.Tuning.Get()
	key := repository.AttemptKey(opts.UserID, opts.ResourceID, opts.SessionID)
	lockKey := repository.FinalizeLockKey(opts.UserID, opts.ResourceID)
	err = lock.WithLock(ctx, s.Locker, lockKey, cfg.LockTTL(), cfg.LockWait(), func(ctx context.Context) error {
		var ferr error
		result, ferr = s.finalizeLocked(ctx, key, opts)
		return ferr
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		err = fmt.Errorf("finalize assessment %s: %w", opts.ResourceID, util.ErrConcurrentFinalization)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *FinalizationService) finalizeLocked(ctx context.Context, key string, opts FinalizeOptions) (*FinalizationResult, error) {
	state, err := s.Attempts.Get(ctx, key)
	if errors.Is(err, util.ErrAttemptNotFound) {
		return nil, fmt.Errorf("finalize assessment %s: %w", opts.ResourceID, util.ErrNotFinalizable)
	}
	if err != nil {
		return nil, fmt.Errorf("finalize assessment %s: load attempt: %w", opts.ResourceID, err)
	}
	if state.IsFinalized {
		return nil, fmt.Errorf("finalize assessment %s: %w", opts.ResourceID, util.ErrNotFinalizable)
	}

	// Another session may have committed this attempt number already; writing
	// again would overwrite its gradebook row.
	committed, err := s.Gradebook.CountAttempts(ctx, opts.UserID, opts.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("finalize assessment %s: count attempts: %w", opts.ResourceID, err)
	}
	if committed >= int64(state.AttemptNumber) {
		logger.Log.Warn("attempt superseded by a committed result",
			zap.String("userId", opts.UserID),
			zap.String("resourceId", opts.ResourceID),
			zap.String("sessionId", opts.SessionID),
			zap.Int("attemptNumber", state.AttemptNumber),
			zap.Int64("committedAttempts", committed))
		return nil, fmt.Errorf("finalize assessment %s: attempt %d already recorded: %w",
			opts.ResourceID, state.AttemptNumber, util.ErrNotFinalizable)
	}

	state.Status = model.AttemptFinalizing
	state.FinalizationError = nil
	if err := s.Attempts.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("finalize assessment %s: mark finalizing: %w", opts.ResourceID, err)
	}

	now := s.clock()
	duration := now.Sub(state.StartedAt).Truncate(time.Second)
	if duration < 0 {
		duration = 0
	}

	proficient, err := s.Proficiency.IsProficient(ctx, opts.UserID, opts.ResourceID)
	if err != nil {
		return nil, s.fail(ctx, state, fmt.Errorf("load proficiency: %w", err))
	}

	award, err := s.Calculator.Calculate(XPInput{
		ContentType:          opts.ContentType,
		BaseXP:               opts.ExpectedXP,
		AttemptNumber:        state.AttemptNumber,
		Outcomes:             state.Outcomes(),
		Duration:             duration,
		WasAlreadyProficient: proficient,
	})
	if err != nil {
		return nil, s.fail(ctx, state, err)
	}

	banked := &model.BankedXPResult{AwardedResourceIDs: []string{}}
	policy, _ := PolicyFor(opts.ContentType)
	if policy.EarnsBankedXP() && !award.RequiresRetry && !proficient && opts.UnitID != "" {
		banked, err = s.Banked.Resolve(ctx, BankedXPRequest{
			UserID:     opts.UserID,
			CourseID:   opts.CourseID,
			UnitID:     opts.UnitID,
			ExerciseID: opts.ResourceID,
		})
		if err != nil {
			return nil, s.fail(ctx, state, err)
		}
	}

	durationSeconds := int(duration / time.Second)
	totalXP := award.FinalXP + banked.BankedXP
	ids, err := s.Gradebook.SaveResults(ctx, gradebookRows(opts, state.AttemptNumber, award, banked, durationSeconds))
	if err != nil {
		return nil, s.fail(ctx, state, fmt.Errorf("%w: %w", util.ErrGradebookWrite, err))
	}

	result := &FinalizationResult{
		ResultID:        ids[0],
		AttemptNumber:   state.AttemptNumber,
		ExerciseXP:      award.FinalXP,
		BankedXP:        banked.BankedXP,
		TotalXP:         totalXP,
		AnalyticsXP:     award.AnalyticsXP,
		Award:           award,
		Banked:          *banked,
		RequiresRetry:   award.RequiresRetry,
		DurationSeconds: durationSeconds,
	}

	// The attempt is closed before anything is dispatched, so a crash from here
	// on can lose events but never send them twice.
	state.IsFinalized = true
	state.Status = model.AttemptFinalized
	state.FinalSummary = &model.FinalizationSummary{
		ResultID:        result.ResultID,
		ExerciseXP:      result.ExerciseXP,
		BankedXP:        result.BankedXP,
		TotalXP:         result.TotalXP,
		AnalyticsXP:     result.AnalyticsXP,
		Accuracy:        award.Accuracy,
		Multiplier:      award.Multiplier,
		PenaltyApplied:  award.PenaltyApplied,
		RequiresRetry:   award.RequiresRetry,
		DurationSeconds: durationSeconds,
		FinalizedAt:     now,
	}
	if err := s.Attempts.Save(ctx, state); err != nil {
		logger.Log.Error("gradebook committed but attempt not marked finalized",
			zap.String("userId", opts.UserID),
			zap.String("resourceId", opts.ResourceID),
			zap.String("sessionId", opts.SessionID),
			zap.String("resultId", result.ResultID),
			zap.Int("attemptNumber", state.AttemptNumber),
			zap.Error(err))
		return nil, fmt.Errorf("finalize assessment %s: result %s committed, mark finalized: %w", opts.ResourceID, result.ResultID, err)
	}

	s.dispatch(ctx, opts, state.AttemptNumber, result, now)
	s.runHooks(ctx, opts, award, now)

	monitoring.XPAwarded.WithLabelValues("exercise").Add(float64(award.FinalXP))
	monitoring.XPAwarded.WithLabelValues("banked").Add(float64(banked.BankedXP))
	logger.Log.Info("assessment finalized",
		zap.String("userId", opts.UserID),
		zap.String("resourceId", opts.ResourceID),
		zap.String("contentType", string(opts.ContentType)),
		zap.Int("attemptNumber", state.AttemptNumber),
		zap.Int("xp", award.FinalXP),
		zap.Int("bankedXp", banked.BankedXP),
		zap.Bool("requiresRetry", award.RequiresRetry),
		zap.Bool("penaltyApplied", award.PenaltyApplied))
	return result, nil
}

// fail records cause on the attempt so the learner can finalize again.
func (s *FinalizationService) fail(ctx context.Context, state *model.AttemptState, cause error) error {
	msg := cause.Error()
	state.Status = model.AttemptFinalizationFailed
	state.FinalizationError = &msg
	if err := s.Attempts.Save(ctx, state); err != nil {
		logger.Log.Error("failed to record finalization failure",
			zap.String("userId", state.UserID),
			zap.String("resourceId", state.AssessmentID),
			zap.Error(err))
	}
	logger.Log.Error("assessment finalization failed",
		zap.String("userId", state.UserID),
		zap.String("resourceId", state.AssessmentID),
		zap.Int("attemptNumber", state.AttemptNumber),
		zap.Error(cause))
	return fmt.Errorf("finalize assessment %s: %w", state.AssessmentID, cause)
}

// dispatch sends exactly one activity event and, for attempts of at least a
// second, one time event. Event ids derive from the result id so consumers
// can deduplicate.
func (s *FinalizationService) dispatch(ctx context.Context, opts FinalizeOptions, attemptNumber int, result *FinalizationResult, now time.Time) {
	completed := &event.ActivityCompletedEvent{
		EventID:       result.ResultID + ":completed",
		UserID:        opts.UserID,
		CourseID:      opts.CourseID,
		ResourceID:    opts.ResourceID,
		ContentType:   opts.ContentType,
		AttemptNumber: attemptNumber,
		XP:            result.AnalyticsXP,
		Accuracy:      result.Award.Accuracy,
		CorrectCount:  result.Award.CorrectCount,
		TotalCount:    result.Award.ScorableCount,
		OccurredAt:    now,
	}
	if err := s.Analytics.SendActivityCompletedEvent(ctx, completed); err != nil {
		logger.Log.Warn("failed to send activity completed event",
			zap.String("userId", opts.UserID),
			zap.String("resourceId", opts.ResourceID),
			zap.Error(err))
	}

	if result.DurationSeconds < 1 {
		return
	}
	spent := &event.TimeSpentEvent{
		EventID:         result.ResultID + ":time",
		UserID:          opts.UserID,
		CourseID:        opts.CourseID,
		ResourceID:      opts.ResourceID,
		Source:          event.TimeSpentAssessment,
		DurationSeconds: float64(result.DurationSeconds),
		Final:           true,
		OccurredAt:      now,
	}
	if err := s.Analytics.SendTimeSpentEvent(ctx, spent); err != nil {
		logger.Log.Warn("failed to send time spent event",
			zap.String("userId", opts.UserID),
			zap.String("resourceId", opts.ResourceID),
			zap.Error(err))
	}
}

func (s *FinalizationService) runHooks(ctx context.Context, opts FinalizeOptions, award model.XPAward, now time.Time) {
	if err := s.Progress.Invalidate(ctx, opts.UserID, opts.CourseID); err != nil {
		logger.Log.Warn("course progress cache invalidation failed",
			zap.String("userId", opts.UserID),
			zap.String("courseId", opts.CourseID),
			zap.Error(err))
	}
	if err := s.Streaks.Update(ctx, opts.UserID, now); err != nil {
		logger.Log.Warn("streak update failed", zap.String("userId", opts.UserID), zap.Error(err))
	}
	if err := s.Proficiency.Update(ctx, opts.UserID, opts.CourseID, opts.ResourceID, award.AccuracyPercent()); err != nil {
		logger.Log.Warn("proficiency update failed",
			zap.String("userId", opts.UserID),
			zap.String("resourceId", opts.ResourceID),
			zap.Error(err))
	}
}

func (s *FinalizationService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// gradebookRows builds the primary result followed by one row per banked resource.
func gradebookRows(opts FinalizeOptions, attemptNumber int, award model.XPAward, banked *model.BankedXPResult, durationSeconds int) []*model.GradebookResult {
	rows := make([]*model.GradebookResult, 0, 1+len(banked.Awards))
	rows = append(rows, &model.GradebookResult{
		UserID:        opts.UserID,
		ResourceID:    opts.ResourceID,
		Kind:          model.GradebookAssessment,
		AttemptNumber: attemptNumber,
		CourseID:      opts.CourseID,
		Score:         math.Round(award.AccuracyPercent()*100) / 100,
		CorrectCount:  award.CorrectCount,
		TotalCount:    award.ScorableCount,
		XP:            award.FinalXP + banked.BankedXP,
		Metadata: datatypes.NewJSONType(model.GradebookMetadata{
			XP:              award.FinalXP,
			PrePenaltyXP:    award.PrePenaltyXP,
			Multiplier:      award.Multiplier,
			Accuracy:        award.Accuracy,
			PenaltyApplied:  award.PenaltyApplied,
			PenaltyReason:   penaltyReason(award),
			BankedXP:        banked.BankedXP,
			TotalXP:         award.FinalXP + banked.BankedXP,
			RequiresRetry:   award.RequiresRetry,
			ContentType:     opts.ContentType,
			DurationSeconds: durationSeconds,
		}),
	})
	for _, b := range banked.Awards {
		rows = append(rows, &model.GradebookResult{
			UserID:     opts.UserID,
			ResourceID: b.ResourceID,
			Kind:       model.GradebookBanked,
			CourseID:   opts.CourseID,
			Score:      100,
			XP:         b.XP,
			Metadata: datatypes.NewJSONType(model.GradebookMetadata{
				XP:               b.XP,
				Multiplier:       1,
				Accuracy:         1,
				TotalXP:          b.XP,
				SourceResourceID: opts.ResourceID,
			}),
		})
	}
	return rows
}

func penaltyReason(award model.XPAward) string {
	if !award.PenaltyApplied {
		return ""
	}
	return award.Reason
}

func finalizeOutcome(err error) string {
	switch {
	case err == nil:
		return "finalized"
	case errors.Is(err, util.ErrNotFinalizable):
		return "not_finalizable"
	case errors.Is(err, util.ErrConcurrentFinalization):
		return "concurrent"
	case errors.Is(err, util.ErrValidation):
		return "invalid"
	case errors.Is(err, util.ErrIdentityMismatch), errors.Is(err, util.ErrUnauthorized):
		return "forbidden"
	default:
		return "failed"
	}
}
