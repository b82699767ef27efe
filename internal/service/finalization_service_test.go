package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"xp_engine/internal/config"
	"xp_engine/internal/model"
	"xp_engine/internal/repository"
	"xp_engine/internal/util"
	"xp_engine/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFinalizeEndToEndWithRetryDecay(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	require.NoError(t, e.readTime.Save(ctx, &model.ReadTimeState{UserID: "u1", ResourceID: "a1", CumulativeReadTimeSeconds: 150}))
	e.completions["v1"] = model.ResourceCompletion{UserID: "u1", ResourceID: "v1", Completed: true, Score: 100}

	// exercise, first attempt, perfect
	e.play(t, "ex1", "s1", outcomes(4, 0), time.Minute)
	first, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.NoError(t, err)
	assert.Equal(t, 125, first.ExerciseXP)
	assert.Equal(t, 125, first.AnalyticsXP)
	assert.Equal(t, 13, first.BankedXP)
	assert.Equal(t, 138, first.TotalXP)
	assert.Equal(t, []string{"a1", "v1"}, first.Banked.AwardedResourceIDs)
	assert.False(t, first.RequiresRetry)
	assert.Equal(t, 125, e.analytics.completed[0].XP)

	primary, err := e.gradebook.GetResult(ctx, first.ResultID)
	require.NoError(t, err)
	assert.Equal(t, 125, primary.Metadata.Data().XP)
	assert.Equal(t, 13, primary.Metadata.Data().BankedXP)
	assert.Equal(t, 138, primary.XP)
	assert.Equal(t, 1.25, primary.Metadata.Data().Multiplier)

	bankedRows := e.gradebook.rowsOf(model.GradebookBanked)
	require.Len(t, bankedRows, 2)
	for _, row := range bankedRows {
		assert.False(t, row.Metadata.Data().RequiresRetry)
		assert.Equal(t, "ex1", row.Metadata.Data().SourceResourceID)
	}

	// quiz below mastery
	e.play(t, "q1", "s2", outcomes(1, 2), time.Minute)
	quiz, err := e.finalize("q1", "s2", model.ContentQuiz, 120)
	require.NoError(t, err)
	assert.Equal(t, 0, quiz.AnalyticsXP)
	assert.Equal(t, 40, quiz.ExerciseXP)
	assert.True(t, quiz.RequiresRetry)
	assert.Zero(t, quiz.BankedXP)
	assert.Equal(t, 0, e.analytics.completed[1].XP)
	quizRow, err := e.gradebook.GetResult(ctx, quiz.ResultID)
	require.NoError(t, err)
	assert.Equal(t, 40, quizRow.Metadata.Data().XP)

	// exercise remastery
	e.play(t, "ex1", "s3", outcomes(4, 0), time.Minute)
	retry, err := e.finalize("ex1", "s3", model.ContentExercise, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, retry.AttemptNumber)
	assert.Equal(t, 63, retry.ExerciseXP)
	assert.Equal(t, 63, retry.AnalyticsXP)
	assert.Equal(t, 63, retry.TotalXP)
	assert.Zero(t, retry.BankedXP)
	assert.Len(t, e.gradebook.rowsOf(model.GradebookBanked), 2)

	completed, spent := e.analytics.counts()
	assert.Equal(t, 3, completed)
	assert.Equal(t, 3, spent)
}

func TestFinalizeDispatchesExactlyOnce(t *testing.T) {
	e := newEngine(t, nil)
	e.play(t, "ex1", "s1", outcomes(3, 1), 90*time.Second)

	result, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.NoError(t, err)
	assert.Equal(t, 90, result.DurationSeconds)

	completed, spent := e.analytics.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, spent)
	assert.Equal(t, 90.0, e.analytics.spent[0].DurationSeconds)
	assert.Equal(t, result.ResultID+":completed", e.analytics.completed[0].EventID)

	_, err = e.finalize("ex1", "s1", model.ContentExercise, 100)
	assert.ErrorIs(t, err, util.ErrNotFinalizable)

	completed, spent = e.analytics.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, spent)

	state := e.state(t, "ex1", "s1")
	assert.True(t, state.IsFinalized)
	assert.Equal(t, model.AttemptFinalized, state.Status)
	require.NotNil(t, state.FinalSummary)
	assert.Equal(t, result.ResultID, state.FinalSummary.ResultID)
	assert.Equal(t, result.TotalXP, state.FinalSummary.TotalXP)
}

func TestFinalizeSubSecondAttemptSkipsTimeSpent(t *testing.T) {
	// the pace check would zero xp for so short an attempt; it is disabled here
	e := newEngine(t, func(c *config.EngineConfig) { c.MinSecondsPerQuestion = 0 })
	e.play(t, "ex1", "s1", outcomes(1, 0), 800*time.Millisecond)

	result, err := e.finalize("ex1", "s1", model.ContentExercise, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, result.DurationSeconds)

	completed, spent := e.analytics.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, spent)
}

func TestFinalizeRunsStepsInOrder(t *testing.T) {
	e := newEngine(t, nil)
	e.play(t, "q1", "s1", outcomes(5, 0), time.Minute)

	_, err := e.finalize("q1", "s1", model.ContentQuiz, 120)
	require.NoError(t, err)
	assert.Equal(t, []string{"gradebook", "activity", "time", "progress", "streak", "proficiency"}, e.log.list())
}

func TestFinalizeGradebookFailureHasNoEffects(t *testing.T) {
	e := newEngine(t, nil)
	e.play(t, "ex1", "s1", outcomes(4, 0), time.Minute)
	e.gradebook.saveErr = errBoom

	_, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrGradebookWrite)
	assert.ErrorIs(t, err, errBoom)

	completed, spent := e.analytics.counts()
	assert.Zero(t, completed)
	assert.Zero(t, spent)
	assert.Zero(t, e.progress.calls)
	assert.Zero(t, e.streaks.calls)
	assert.Empty(t, e.proficiency.updates)

	state := e.state(t, "ex1", "s1")
	assert.False(t, state.IsFinalized)
	assert.Equal(t, model.AttemptFinalizationFailed, state.Status)
	require.NotNil(t, state.FinalizationError)
	assert.Contains(t, *state.FinalizationError, "boom")
	assert.False(t, e.locker.Held(repository.FinalizeLockKey("u1", "ex1")))

	// a failed finalization can be retried
	e.gradebook.saveErr = nil
	result, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.NoError(t, err)
	assert.Equal(t, 125, result.ExerciseXP)
	completed, _ = e.analytics.counts()
	assert.Equal(t, 1, completed)
	assert.Nil(t, e.state(t, "ex1", "s1").FinalizationError)
}

func TestFinalizeHookFailuresDoNotFailTheCall(t *testing.T) {
	e := newEngine(t, nil)
	e.progress.err = errBoom
	e.streaks.err = errBoom
	e.proficiency.err = errBoom
	e.analytics.err = errBoom
	e.play(t, "ex1", "s1", outcomes(4, 0), time.Minute)

	_, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, e.progress.calls)
	assert.Equal(t, 1, e.streaks.calls)
	assert.Len(t, e.proficiency.updates, 1)
	assert.True(t, e.state(t, "ex1", "s1").IsFinalized)
}

func TestFinalizeConcurrentDoubleSubmit(t *testing.T) {
	e := newEngine(t, nil)
	e.play(t, "ex1", "s1", outcomes(4, 0), time.Minute)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, util.ErrNotFinalizable) || errors.Is(err, util.ErrConcurrentFinalization), "unexpected error %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	completed, spent := e.analytics.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, spent)
	assert.Len(t, e.gradebook.rowsOf(model.GradebookAssessment), 1)
}

func TestFinalizeTimesOutWhileLocked(t *testing.T) {
	e := newEngine(t, func(c *config.EngineConfig) { c.LockWaitMillis = 30 })
	e.play(t, "ex1", "s1", outcomes(4, 0), time.Minute)

	ctx := context.Background()
	lease, err := e.locker.Acquire(ctx, repository.FinalizeLockKey("u1", "ex1"), time.Minute, 0)
	require.NoError(t, err)

	_, err = e.finalize("ex1", "s1", model.ContentExercise, 100)
	assert.ErrorIs(t, err, util.ErrConcurrentFinalization)
	completed, _ := e.analytics.counts()
	assert.Zero(t, completed)

	require.NoError(t, lease.Release(ctx))
	_, err = e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.NoError(t, err)
}

func TestFinalizeRejections(t *testing.T) {
	e := newEngine(t, nil)

	_, err := e.finalize("ex1", "never-started", model.ContentExercise, 100)
	assert.ErrorIs(t, err, util.ErrNotFinalizable)

	_, err = e.finalize("ex1", "s1", "Essay", 100)
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.finalize("ex1", "s1", model.ContentExercise, -5)
	assert.ErrorIs(t, err, util.ErrValidation)

	e.play(t, "ex1", "s1", outcomes(4, 0), time.Minute)
	e.finalizeSvc.Identity = fakeIdentity("intruder")
	_, err = e.finalize("ex1", "s1", model.ContentExercise, 100)
	assert.ErrorIs(t, err, util.ErrIdentityMismatch)
	assert.False(t, e.state(t, "ex1", "s1").IsFinalized)
	assert.Empty(t, e.log.list())
}

func TestFinalizeRushedExerciseStillBanks(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.readTime.Save(context.Background(), &model.ReadTimeState{UserID: "u1", ResourceID: "a1", CumulativeReadTimeSeconds: 61}))
	e.play(t, "ex1", "s1", outcomes(4, 0), 4*time.Second)

	result, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.NoError(t, err)
	assert.True(t, result.Award.PenaltyApplied)
	assert.Equal(t, 0, result.ExerciseXP)
	assert.Equal(t, 125, result.Award.PrePenaltyXP)
	assert.Equal(t, 2, result.BankedXP)

	row, err := e.gradebook.GetResult(context.Background(), result.ResultID)
	require.NoError(t, err)
	assert.True(t, row.Metadata.Data().PenaltyApplied)
	assert.NotEmpty(t, row.Metadata.Data().PenaltyReason)
}

func TestFinalizeSkipsBankedXPWhenAlreadyProficient(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.readTime.Save(context.Background(), &model.ReadTimeState{UserID: "u1", ResourceID: "a1", CumulativeReadTimeSeconds: 300}))
	e.proficiency.proficient["u1|ex1"] = true
	e.play(t, "ex1", "s1", outcomes(4, 0), time.Minute)

	result, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.NoError(t, err)
	assert.Zero(t, result.BankedXP)
	assert.Empty(t, e.gradebook.rowsOf(model.GradebookBanked))
}

func TestFinalizeParallelSessionsCommitOnce(t *testing.T) {
	e := newEngine(t, nil)
	// two tabs open the same quiz before either finalizes
	e.play(t, "q1", "tabA", outcomes(3, 0), time.Minute)
	e.play(t, "q1", "tabB", outcomes(0, 3), time.Minute)
	require.Equal(t, 1, e.state(t, "q1", "tabA").AttemptNumber)
	require.Equal(t, 1, e.state(t, "q1", "tabB").AttemptNumber)

	first, err := e.finalize("q1", "tabA", model.ContentQuiz, 120)
	require.NoError(t, err)
	assert.Equal(t, 150, first.ExerciseXP)

	_, err = e.finalize("q1", "tabB", model.ContentQuiz, 120)
	assert.ErrorIs(t, err, util.ErrNotFinalizable)
	stale := e.state(t, "q1", "tabB")
	assert.False(t, stale.IsFinalized)
	assert.Equal(t, model.AttemptInProgress, stale.Status)

	rows := e.gradebook.rowsOf(model.GradebookAssessment)
	require.Len(t, rows, 1)
	assert.Equal(t, 150, rows[0].XP)
	assert.Equal(t, 100.0, rows[0].Score)
	completed, _ := e.analytics.counts()
	assert.Equal(t, 1, completed)

	// the stale tab starts over as the next attempt
	e.play(t, "q1", "tabB", outcomes(0, 3), time.Minute)
	second, err := e.finalize("q1", "tabB", model.ContentQuiz, 120)
	require.NoError(t, err)
	assert.Equal(t, 2, second.AttemptNumber)
	assert.NotEqual(t, first.ResultID, second.ResultID)

	kept, err := e.gradebook.GetResult(context.Background(), first.ResultID)
	require.NoError(t, err)
	assert.Equal(t, 150, kept.XP)
	assert.Len(t, e.gradebook.rowsOf(model.GradebookAssessment), 2)
	completed, _ = e.analytics.counts()
	assert.Equal(t, 2, completed)
}

func TestFinalizeParallelSessionsKeepBankedXP(t *testing.T) {
	e := newEngine(t, nil)
	require.NoError(t, e.readTime.Save(context.Background(), &model.ReadTimeState{UserID: "u1", ResourceID: "a1", CumulativeReadTimeSeconds: 150}))
	e.play(t, "ex1", "tabA", outcomes(4, 0), time.Minute)
	e.play(t, "ex1", "tabB", outcomes(4, 0), time.Minute)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []*FinalizationResult
	)
	for _, session := range []string{"tabA", "tabB", "tabA", "tabB"} {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			result, err := e.finalize("ex1", session, model.ContentExercise, 100)
			if err != nil {
				assert.True(t, errors.Is(err, util.ErrNotFinalizable) || errors.Is(err, util.ErrConcurrentFinalization), "unexpected error %v", err)
				return
			}
			mu.Lock()
			successes = append(successes, result)
			mu.Unlock()
		}(session)
	}
	wg.Wait()

	require.Len(t, successes, 1)
	rows := e.gradebook.rowsOf(model.GradebookAssessment)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Metadata.Data().BankedXP)
	assert.Len(t, e.gradebook.rowsOf(model.GradebookBanked), 1)
	completed, _ := e.analytics.counts()
	assert.Equal(t, 1, completed)
}

// finalizedSaveFailure accepts every save except the one closing the attempt.
type finalizedSaveFailure struct {
	*repository.MemoryAttemptStateStore
}

func (s finalizedSaveFailure) Save(ctx context.Context, state *model.AttemptState) error {
	if state.IsFinalized {
		return errBoom
	}
	return s.MemoryAttemptStateStore.Save(ctx, state)
}

func TestFinalizeCommittedButUnmarkedAttempt(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	previous := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = previous })

	e := newEngine(t, nil)
	e.play(t, "ex1", "s1", outcomes(4, 0), time.Minute)
	e.finalizeSvc.Attempts = finalizedSaveFailure{e.attempts}

	_, err := e.finalize("ex1", "s1", model.ContentExercise, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, util.ErrGradebookWrite)

	entries := logs.FilterMessage("gradebook committed but attempt not marked finalized").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "result-1", entries[0].ContextMap()["resultId"])

	completed, spent := e.analytics.counts()
	assert.Zero(t, completed)
	assert.Zero(t, spent)

	// the committed row is never written a second time
	e.finalizeSvc.Attempts = e.attempts
	_, err = e.finalize("ex1", "s1", model.ContentExercise, 100)
	assert.ErrorIs(t, err, util.ErrNotFinalizable)
	assert.Len(t, e.gradebook.rowsOf(model.GradebookAssessment), 1)
	completed, _ = e.analytics.counts()
	assert.Zero(t, completed)
}
