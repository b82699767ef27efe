package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"xp_engine/internal/model"
	"xp_engine/internal/repository"
	"xp_engine/internal/util"
	"xp_engine/pkg/lock"
	"xp_engine/pkg/logger"

	"go.uber.org/zap"
)

type AttemptRef struct {
	UserID     string `json:"userId" validate:"required"`
	ResourceID string `json:"resourceId" validate:"required"`
	SessionID  string `json:"sessionId" validate:"required"`
}

func (r AttemptRef) key() string {
	return repository.AttemptKey(r.UserID, r.ResourceID, r.SessionID)
}

type StartAttemptRequest struct {
	AttemptRef
	TotalQuestions int `json:"totalQuestions" validate:"gte=0"`
}

type AnswerRequest struct {
	AttemptRef
	QuestionIndex int             `json:"questionIndex" validate:"gte=0"`
	IsCorrect     bool            `json:"isCorrect"`
	Response      json.RawMessage `json:"response,omitempty"`
}

type ReportQuestionRequest struct {
	AttemptRef
	QuestionIndex int `json:"questionIndex" validate:"gte=0"`
}

// AttemptService owns the lifecycle of an attempt before finalization. It
// shares the finalize lock so answers cannot race a running finalization.
type AttemptService struct {
	Store     repository.AttemptStateStore
	Gradebook Gradebook
	Locker    lock.Locker
	Identity  Identity
	Tuning    *EngineTuning
	now       func() time.Time
}

func NewAttemptService(store repository.AttemptStateStore, gradebook Gradebook, locker lock.Locker, identity Identity, tuning *EngineTuning) *AttemptService {
	return &AttemptService{
		Store:     store,
		Gradebook: gradebook,
		Locker:    locker,
		Identity:  identity,
		Tuning:    tuning,
		now:       time.Now,
	}
}

// StartAttempt opens a fresh attempt, superseding any state under the same key.
func (s *AttemptService) StartAttempt(ctx context.Context, req StartAttemptRequest) (*model.AttemptState, error) {
	if err := validateStruct("start attempt", req); err != nil {
		return nil, err
	}
	if err := checkIdentity(ctx, s.Identity, req.UserID, "start attempt"); err != nil {
		return nil, err
	}

	var state *model.AttemptState
	err := s.withAttemptLock(ctx, req.AttemptRef, func(ctx context.Context) error {
		previous, err := s.Gradebook.CountAttempts(ctx, req.UserID, req.ResourceID)
		if err != nil {
			return fmt.Errorf("start attempt: count attempts: %w", err)
		}
		state = &model.AttemptState{
			UserID:         req.UserID,
			AssessmentID:   req.ResourceID,
			SessionID:      req.SessionID,
			AttemptNumber:  int(previous) + 1,
			StartedAt:      s.clock(),
			TotalQuestions: req.TotalQuestions,
			Questions:      make(map[int]model.QuestionRecord),
			Status:         model.AttemptInProgress,
		}
		return s.Store.Save(ctx, state)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("attempt started",
		zap.String("userId", req.UserID),
		zap.String("resourceId", req.ResourceID),
		zap.Int("attemptNumber", state.AttemptNumber))
	return state, nil
}

func (s *AttemptService) RecordAnswer(ctx context.Context, req AnswerRequest) (*model.AttemptState, error) {
	outcome := model.OutcomeIncorrect
	if req.IsCorrect {
		outcome = model.OutcomeCorrect
	}
	return s.mutate(ctx, "record answer", req, req.AttemptRef, func(state *model.AttemptState) error {
		if err := checkQuestionIndex(state, req.QuestionIndex); err != nil {
			return err
		}
		state.Questions[req.QuestionIndex] = model.QuestionRecord{Outcome: outcome, Response: req.Response}
		if req.QuestionIndex+1 > state.CurrentQuestionIndex {
			state.CurrentQuestionIndex = req.QuestionIndex + 1
		}
		return nil
	})
}

// ReportQuestion excludes a question the learner flagged as broken from scoring.
func (s *AttemptService) ReportQuestion(ctx context.Context, req ReportQuestionRequest) (*model.AttemptState, error) {
	return s.mutate(ctx, "report question", req, req.AttemptRef, func(state *model.AttemptState) error {
		if err := checkQuestionIndex(state, req.QuestionIndex); err != nil {
			return err
		}
		rec := state.Questions[req.QuestionIndex]
		rec.Outcome = model.OutcomeReported
		state.Questions[req.QuestionIndex] = rec
		return nil
	})
}

func (s *AttemptService) GetAttempt(ctx context.Context, ref AttemptRef) (*model.AttemptState, error) {
	if err := validateStruct("get attempt", ref); err != nil {
		return nil, err
	}
	if err := checkIdentity(ctx, s.Identity, ref.UserID, "get attempt"); err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, ref.key())
}

func (s *AttemptService) mutate(ctx context.Context, op string, req interface{}, ref AttemptRef, fn func(*model.AttemptState) error) (*model.AttemptState, error) {
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}
	if err := checkIdentity(ctx, s.Identity, ref.UserID, op); err != nil {
		return nil, err
	}

	var state *model.AttemptState
	err := s.withAttemptLock(ctx, ref, func(ctx context.Context) error {
		var err error
		state, err = s.Store.Get(ctx, ref.key())
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if state.IsFinalized {
			return fmt.Errorf("%s: %w", op, util.ErrAttemptFinalized)
		}
		if state.Questions == nil {
			state.Questions = make(map[int]model.QuestionRecord)
		}
		if err := fn(state); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return s.Store.Save(ctx, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *AttemptService) withAttemptLock(ctx context.Context, ref AttemptRef, fn func(ctx context.Context) error) error {
	cfg := s.Tuning.Get()
	err := lock.WithLock(ctx, s.Locker, repository.FinalizeLockKey(ref.UserID, ref.ResourceID), cfg.LockTTL(), cfg.LockWait(), fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		return util.ErrConcurrentFinalization
	}
	return err
}

func (s *AttemptService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func checkQuestionIndex(state *model.AttemptState, idx int) error {
	if state.TotalQuestions > 0 && idx >= state.TotalQuestions {
		return fmt.Errorf("%w: question index %d out of range (%d questions)", util.ErrValidation, idx, state.TotalQuestions)
	}
	return nil
}
