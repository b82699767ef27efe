package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
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
)

type HeartbeatRequest struct {
	UserID       string  `json:"userId" validate:"required"`
	ResourceID   string  `json:"resourceId" validate:"required"`
	DeltaSeconds float64 `json:"deltaSeconds" validate:"gte=0"`
}

type ReadTimeFinalizeRequest struct {
	UserID     string `json:"userId" validate:"required"`
	ResourceID string `json:"resourceId" validate:"required"`
	CourseID   string `json:"courseId"`
}

// ReadTimeService accrues server-validated read time for articles and videos
// and reports it to analytics in increments.
type ReadTimeService struct {
	Store     repository.ReadTimeStore
	Content   CourseContent
	Analytics Analytics
	Locker    lock.Locker
	Identity  Identity
	Tuning    *EngineTuning
	now       func() time.Time
}

func NewReadTimeService(store repository.ReadTimeStore, content CourseContent, analytics Analytics, locker lock.Locker, identity Identity, tuning *EngineTuning) *ReadTimeService {
	return &ReadTimeService{
		Store:     store,
		Content:   content,
		Analytics: analytics,
		Locker:    locker,
		Identity:  identity,
		Tuning:    tuning,
		now:       time.Now,
	}
}

// Accumulate applies one heartbeat. The delta is clamped to the server time
// elapsed since the previous heartbeat plus a small slack, and cumulative time
// never exceeds the canonical duration of the resource. Finalized resources
// ignore heartbeats.
func (s *ReadTimeService) Accumulate(ctx context.Context, req HeartbeatRequest) (*model.ReadTimeState, error) {
	if err := validateStruct("accumulate read time", req); err != nil {
		return nil, err
	}
	if err := checkIdentity(ctx, s.Identity, req.UserID, "accumulate read time"); err != nil {
		return nil, err
	}

	cfg := s.Tuning.Get()
	var state *model.ReadTimeState
	err := s.withResourceLock(ctx, req.UserID, req.ResourceID, func(ctx context.Context) error {
		var err error
		state, err = s.Store.Get(ctx, req.UserID, req.ResourceID)
		if err != nil {
			return fmt.Errorf("accumulate read time: %w", err)
		}
		if state == nil {
			if state, err = s.newState(ctx, req.UserID, req.ResourceID); err != nil {
				return fmt.Errorf("accumulate read time: %w", err)
			}
		}
		if state.IsFinalized() {
			return nil
		}

		now := s.clock()
		allowed := cfg.MaxHeartbeatSeconds
		if state.LastServerSyncAt != nil {
			allowed = now.Sub(*state.LastServerSyncAt).Seconds() + cfg.ClampSlackSeconds
		}
		delta := req.DeltaSeconds
		if delta > allowed {
			monitoring.ReadTimeClamped.Inc()
			logger.Log.Debug("read time delta clamped",
				zap.String("userId", req.UserID),
				zap.String("resourceId", req.ResourceID),
				zap.Float64("reported", delta),
				zap.Float64("allowed", allowed))
			delta = allowed
		}

		state.CumulativeReadTimeSeconds += delta
		if c := state.CanonicalDurationSeconds; c != nil && state.CumulativeReadTimeSeconds > *c {
			state.CumulativeReadTimeSeconds = *c
		}
		state.LastServerSyncAt = &now
		return s.Store.Save(ctx, state)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// FinalizePartial reports the unreported read time without closing the resource.
func (s *ReadTimeService) FinalizePartial(ctx context.Context, req ReadTimeFinalizeRequest) (*model.ReadTimeState, error) {
	return s.flush(ctx, "finalize partial read time", req, false)
}

// Finalize reports the remaining read time and closes the resource. Calling it
// again on a closed resource changes nothing and emits nothing.
func (s *ReadTimeService) Finalize(ctx context.Context, req ReadTimeFinalizeRequest) (state *model.ReadTimeState, err error) {
	ctx, span := tracing.StartSpan(ctx, "ReadTimeFinalize", "resource.id", req.ResourceID)
	defer func() { tracing.EndSpan(span, err) }()
	return s.flush(ctx, "finalize read time", req, true)
}

func (s *ReadTimeService) flush(ctx context.Context, op string, req ReadTimeFinalizeRequest, final bool) (*model.ReadTimeState, error) {
	if err := validateStruct(op, req); err != nil {
		return nil, err
	}
	if err := checkIdentity(ctx, s.Identity, req.UserID, op); err != nil {
		return nil, err
	}

	var (
		state          *model.ReadTimeState
		delta          float64
		reportedBefore float64
	)
	err := s.withResourceLock(ctx, req.UserID, req.ResourceID, func(ctx context.Context) error {
		var err error
		state, err = s.Store.Get(ctx, req.UserID, req.ResourceID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if state == nil {
			return fmt.Errorf("%s %s: %w", op, req.ResourceID, util.ErrReadTimeNotFound)
		}
		if state.IsFinalized() {
			return nil
		}

		delta = state.Unreported()
		reportedBefore = state.ReportedReadTimeSeconds
		state.ReportedReadTimeSeconds = state.CumulativeReadTimeSeconds
		if final {
			now := s.clock()
			state.FinalizedAt = &now
		}
		return s.Store.Save(ctx, state)
	})
	if err != nil {
		return nil, err
	}

	if delta > 0 {
		evt := &event.TimeSpentEvent{
			EventID:         readTimeEventID(req.UserID, req.ResourceID, reportedBefore),
			UserID:          req.UserID,
			CourseID:        req.CourseID,
			ResourceID:      req.ResourceID,
			Source:          event.TimeSpentReadTime,
			DurationSeconds: delta,
			Final:           final,
			OccurredAt:      s.clock(),
		}
		if err := s.Analytics.SendTimeSpentEvent(ctx, evt); err != nil {
			logger.Log.Warn("failed to send read time event",
				zap.String("userId", req.UserID),
				zap.String("resourceId", req.ResourceID),
				zap.Float64("seconds", delta),
				zap.Error(err))
		}
	}
	return state, nil
}

// readTimeEventID names a flushed slice by where it starts, so a replayed
// flush of the same slice carries the same id.
func readTimeEventID(userID, resourceID string, reportedBefore float64) string {
	return repository.ReadTimeKey(userID, resourceID) + ":" + strconv.FormatFloat(reportedBefore, 'f', -1, 64)
}

func (s *ReadTimeService) newState(ctx context.Context, userID, resourceID string) (*model.ReadTimeState, error) {
	res, err := s.Content.FindResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	state := &model.ReadTimeState{UserID: userID, ResourceID: resourceID}
	if res.DurationSeconds != nil && *res.DurationSeconds > 0 {
		d := *res.DurationSeconds
		state.CanonicalDurationSeconds = &d
	}
	return state, nil
}

func (s *ReadTimeService) withResourceLock(ctx context.Context, userID, resourceID string, fn func(ctx context.Context) error) error {
	cfg := s.Tuning.Get()
	key := util.ReadTimeLockPrefix + repository.ReadTimeKey(userID, resourceID)
	err := lock.WithLock(ctx, s.Locker, key, cfg.LockTTL(), cfg.LockWait(), fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		return fmt.Errorf("read time %s: %w", resourceID, util.ErrConcurrentFinalization)
	}
	return err
}

func (s *ReadTimeService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
