package repository

import (
	"context"
	"testing"

	"xp_engine/internal/model"
	"xp_engine/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUnitResourcesOrdering(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create([]model.CourseResource{
		{ID: "q1", CourseID: "c1", UnitID: "u-1", LessonSortOrder: 2, SortOrder: 1, Type: model.ResourceQuiz},
		{ID: "ex1", CourseID: "c1", UnitID: "u-1", LessonSortOrder: 1, SortOrder: 3, Type: model.ResourceExercise},
		{ID: "a1", CourseID: "c1", UnitID: "u-1", LessonSortOrder: 1, SortOrder: 1, Type: model.ResourceArticle},
		{ID: "v1", CourseID: "c1", UnitID: "u-1", LessonSortOrder: 1, SortOrder: 2, Type: model.ResourceVideo},
		{ID: "other", CourseID: "c1", UnitID: "u-2", LessonSortOrder: 0, SortOrder: 0, Type: model.ResourceArticle},
	}).Error)

	repo := NewCourseContentRepository(db)
	ctx := context.Background()
	list, err := repo.ListUnitResources(ctx, "c1", "u-1")
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a1", "v1", "ex1", "q1"}, ids)

	res, err := repo.FindResource(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.ResourceVideo, res.Type)

	_, err = repo.FindResource(ctx, "nope")
	assert.ErrorIs(t, err, util.ErrResourceNotFound)
}

func TestRecordCompletionKeepsBestScore(t *testing.T) {
	repo := NewResourceCompletionRepository(newTestDB(t))
	ctx := context.Background()

	got, err := repo.GetCompletion(ctx, "u1", "v1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.RecordCompletion(ctx, "u1", "v1", 100))
	require.NoError(t, repo.RecordCompletion(ctx, "u1", "v1", 40))
	require.NoError(t, repo.RecordCompletion(ctx, "u1", "v2", 60))

	got, err = repo.GetCompletion(ctx, "u1", "v1")
	require.NoError(t, err)
	assert.True(t, got.Perfect())

	m, err := repo.GetUserResourceCompletions(ctx, "u1", []string{"v1", "v2", "v3"})
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.True(t, m["v1"].Perfect())
	assert.False(t, m["v2"].Perfect())
}

func TestProficiencyAndStreakRepositories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	prof := NewProficiencyRepository(db)
	p, err := prof.Find(ctx, "u1", "q1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, prof.Save(ctx, &model.UserProficiency{UserID: "u1", ResourceID: "q1", CourseID: "c1", BestAccuracy: 60, Attempts: 1}))
	p, err = prof.Find(ctx, "u1", "q1")
	require.NoError(t, err)
	require.NotNil(t, p)
	p.Attempts++
	require.NoError(t, prof.Save(ctx, p))

	list, err := prof.ListByCourse(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Attempts)

	streaks := NewStreakRepository(db)
	s, err := streaks.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, s)
	require.NoError(t, streaks.Save(ctx, &model.UserStreak{UserID: "u1", CurrentStreak: 2, LongestStreak: 4, LastActiveDate: "2024-03-01"}))
	require.NoError(t, streaks.Save(ctx, &model.UserStreak{UserID: "u1", CurrentStreak: 3, LongestStreak: 4, LastActiveDate: "2024-03-02"}))
	s, err = streaks.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, s.CurrentStreak)
}
