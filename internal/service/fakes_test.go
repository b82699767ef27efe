package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"xp_engine/internal/event"
	"xp_engine/internal/model"
	"xp_engine/internal/util"

	"gorm.io/gorm"
)

type fakeIdentity string

func (f fakeIdentity) CallerID(ctx context.Context) (string, error) {
	if f == "" {
		return "", util.ErrUnauthorized
	}
	return string(f), nil
}

// callLog records the order in which collaborators are reached.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeAnalytics struct {
	mu        sync.Mutex
	log       *callLog
	completed []event.ActivityCompletedEvent
	spent     []event.TimeSpentEvent
	err       error
}

func (f *fakeAnalytics) SendActivityCompletedEvent(ctx context.Context, evt *event.ActivityCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("activity")
	f.completed = append(f.completed, *evt)
	return f.err
}

func (f *fakeAnalytics) SendTimeSpentEvent(ctx context.Context, evt *event.TimeSpentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("time")
	f.spent = append(f.spent, *evt)
	return f.err
}

func (f *fakeAnalytics) counts() (completed, spent int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed), len(f.spent)
}

type fakeGradebook struct {
	mu      sync.Mutex
	log     *callLog
	rows    map[string]model.GradebookResult
	seq     int
	saveErr error
}

func newFakeGradebook(log *callLog) *fakeGradebook {
	return &fakeGradebook{log: log, rows: make(map[string]model.GradebookResult)}
}

func naturalKey(r *model.GradebookResult) string {
	return fmt.Sprintf("%s|%s|%s|%d", r.UserID, r.ResourceID, r.Kind, r.AttemptNumber)
}

func (f *fakeGradebook) SaveResult(ctx context.Context, result *model.GradebookResult) (string, error) {
	ids, err := f.SaveResults(ctx, []*model.GradebookResult{result})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (f *fakeGradebook) SaveResults(ctx context.Context, results []*model.GradebookResult) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("gradebook")
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		key := naturalKey(r)
		if existing, ok := f.rows[key]; ok {
			r.ID = existing.ID
		} else {
			f.seq++
			r.ID = fmt.Sprintf("result-%d", f.seq)
		}
		f.rows[key] = *r
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (f *fakeGradebook) GetResult(ctx context.Context, id string) (*model.GradebookResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeGradebook) GetAllResults(ctx context.Context, userID, courseID string) ([]model.GradebookResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.GradebookResult
	for _, r := range f.rows {
		if r.UserID == userID && r.CourseID == courseID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeGradebook) CountAttempts(ctx context.Context, userID, resourceID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && r.ResourceID == resourceID && r.Kind == model.GradebookAssessment {
			n++
		}
	}
	return n, nil
}

func (f *fakeGradebook) BankedResourceIDs(ctx context.Context, userID string, resourceIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for _, id := range resourceIDs {
		for _, r := range f.rows {
			if r.UserID == userID && r.ResourceID == id && r.Kind == model.GradebookBanked {
				out[id] = true
			}
		}
	}
	return out, nil
}

func (f *fakeGradebook) rowsOf(kind model.GradebookKind) []model.GradebookResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.GradebookResult
	for _, r := range f.rows {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

type fakeContent struct {
	resources []model.CourseResource
}

func (f *fakeContent) ListUnitResources(ctx context.Context, courseID, unitID string) ([]model.CourseResource, error) {
	var out []model.CourseResource
	for _, r := range f.resources {
		if r.CourseID == courseID && r.UnitID == unitID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeContent) FindResource(ctx context.Context, id string) (*model.CourseResource, error) {
	for _, r := range f.resources {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, util.ErrResourceNotFound
}

type fakeCompletions map[string]model.ResourceCompletion

func (f fakeCompletions) GetUserResourceCompletions(ctx context.Context, userID string, resourceIDs []string) (map[string]model.ResourceCompletion, error) {
	out := make(map[string]model.ResourceCompletion)
	for _, id := range resourceIDs {
		if c, ok := f[id]; ok && c.UserID == userID {
			out[id] = c
		}
	}
	return out, nil
}

type fakeProgress struct {
	log   *callLog
	calls int
	err   error
}

func (f *fakeProgress) Invalidate(ctx context.Context, userID, courseID string) error {
	f.log.add("progress")
	f.calls++
	return f.err
}

type fakeStreaks struct {
	log   *callLog
	calls int
	err   error
}

func (f *fakeStreaks) Update(ctx context.Context, userID string, at time.Time) error {
	f.log.add("streak")
	f.calls++
	return f.err
}

type fakeProficiency struct {
	mu         sync.Mutex
	log        *callLog
	proficient map[string]bool
	updates    []float64
	err        error
}

func newFakeProficiency(log *callLog) *fakeProficiency {
	return &fakeProficiency{log: log, proficient: make(map[string]bool)}
}

func (f *fakeProficiency) IsProficient(ctx context.Context, userID, resourceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proficient[userID+"|"+resourceID], nil
}

func (f *fakeProficiency) Update(ctx context.Context, userID, courseID, resourceID string, accuracyPercent float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log.add("proficiency")
	f.updates = append(f.updates, accuracyPercent)
	if f.err != nil {
		return f.err
	}
	if accuracyPercent >= util.MasteryThreshold {
		f.proficient[userID+"|"+resourceID] = true
	}
	return nil
}

type memoryStreakStore struct {
	streaks map[string]model.UserStreak
}

func (m *memoryStreakStore) FindByUser(ctx context.Context, userID string) (*model.UserStreak, error) {
	s, ok := m.streaks[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryStreakStore) Save(ctx context.Context, s *model.UserStreak) error {
	m.streaks[s.UserID] = *s
	return nil
}

type memoryProficiencyStore struct {
	rows map[string]model.UserProficiency
	err  error
}

func (m *memoryProficiencyStore) Find(ctx context.Context, userID, resourceID string) (*model.UserProficiency, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.rows[userID+"|"+resourceID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memoryProficiencyStore) Save(ctx context.Context, p *model.UserProficiency) error {
	m.rows[p.UserID+"|"+p.ResourceID] = *p
	return nil
}

func (m *memoryProficiencyStore) ListByCourse(ctx context.Context, userID, courseID string) ([]model.UserProficiency, error) {
	var out []model.UserProficiency
	for _, p := range m.rows {
		if p.UserID == userID && p.CourseID == courseID {
			out = append(out, p)
		}
	}
	return out, nil
}

var errBoom = errors.New("boom")
