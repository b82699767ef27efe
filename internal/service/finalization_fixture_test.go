package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"xp_engine/internal/config"
	"xp_engine/internal/model"
	"xp_engine/internal/repository"
	"xp_engine/pkg/lock"

	"github.com/stretchr/testify/require"
)

// engine wires the attempt and finalization services to in-memory stores and fakes.
type engine struct {
	attempts    *repository.MemoryAttemptStateStore
	readTime    *repository.MemoryReadTimeStore
	locker      *lock.MemoryLocker
	gradebook   *fakeGradebook
	analytics   *fakeAnalytics
	completions fakeCompletions
	progress    *fakeProgress
	streaks     *fakeStreaks
	proficiency *fakeProficiency
	log         *callLog
	tuning      *EngineTuning

	attemptSvc  *AttemptService
	finalizeSvc *FinalizationService

	mu  sync.Mutex
	now time.Time
}

// unit-1 of course c1: two passive resources gated by ex1, then quiz q1.
func courseUnit() []model.CourseResource {
	return []model.CourseResource{
		res("a1", model.ResourceArticle, 5),
		res("v1", model.ResourceVideo, 10),
		res("ex1", model.ResourceExercise, 100),
		res("q1", model.ResourceQuiz, 120),
	}
}

func newEngine(t *testing.T, mutate func(*config.EngineConfig)) *engine {
	t.Helper()
	cfg := config.DefaultEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	log := &callLog{}
	e := &engine{
		attempts:    repository.NewMemoryAttemptStateStore(),
		readTime:    repository.NewMemoryReadTimeStore(),
		locker:      lock.NewMemoryLocker(),
		gradebook:   newFakeGradebook(log),
		analytics:   &fakeAnalytics{log: log},
		completions: fakeCompletions{},
		progress:    &fakeProgress{log: log},
		streaks:     &fakeStreaks{log: log},
		proficiency: newFakeProficiency(log),
		log:         log,
		tuning:      NewEngineTuning(cfg),
		now:         time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	identity := fakeIdentity("u1")
	banked := NewBankedXPService(&fakeContent{resources: courseUnit()}, e.readTime, e.completions, e.gradebook)

	e.attemptSvc = NewAttemptService(e.attempts, e.gradebook, e.locker, identity, e.tuning)
	e.attemptSvc.now = e.clock
	e.finalizeSvc = NewFinalizationService(e.attempts, NewXPCalculator(e.tuning), banked, e.gradebook,
		e.analytics, identity, e.locker, e.progress, e.streaks, e.proficiency, e.tuning)
	e.finalizeSvc.now = e.clock
	return e
}

func (e *engine) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *engine) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

// play starts an attempt, answers every question in order and lets duration pass.
func (e *engine) play(t *testing.T, resourceID, sessionID string, answers []model.QuestionOutcome, duration time.Duration) {
	t.Helper()
	ctx := context.Background()
	ref := AttemptRef{UserID: "u1", ResourceID: resourceID, SessionID: sessionID}
	_, err := e.attemptSvc.StartAttempt(ctx, StartAttemptRequest{AttemptRef: ref, TotalQuestions: len(answers)})
	require.NoError(t, err)

	for i, a := range answers {
		if a == model.OutcomeReported {
			_, err = e.attemptSvc.ReportQuestion(ctx, ReportQuestionRequest{AttemptRef: ref, QuestionIndex: i})
		} else {
			_, err = e.attemptSvc.RecordAnswer(ctx, AnswerRequest{AttemptRef: ref, QuestionIndex: i, IsCorrect: a == model.OutcomeCorrect})
		}
		require.NoError(t, err)
	}
	e.advance(duration)
}

func (e *engine) finalize(resourceID, sessionID string, ct model.ContentType, expectedXP int) (*FinalizationResult, error) {
	return e.finalizeSvc.FinalizeAssessment(context.Background(), FinalizeOptions{
		UserID:      "u1",
		SessionID:   sessionID,
		ResourceID:  resourceID,
		CourseID:    "c1",
		UnitID:      "unit-1",
		ContentType: ct,
		ExpectedXP:  expectedXP,
	})
}

func (e *engine) state(t *testing.T, resourceID, sessionID string) *model.AttemptState {
	t.Helper()
	state, err := e.attempts.Get(context.Background(), repository.AttemptKey("u1", resourceID, sessionID))
	require.NoError(t, err)
	return state
}
