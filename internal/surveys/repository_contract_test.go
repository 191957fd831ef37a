package surveys

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workpulse/survey/internal/models"
)

func sampleResponse(name, department string, obstacles ...string) *models.SurveyResponse {
	taipei, _ := time.LoadLocation("Asia/Taipei")
	if len(obstacles) == 0 {
		obstacles = []string{"Time", "Cost"}
	}
	return &models.SurveyResponse{
		Name:          name,
		Department:    department,
		Age:           31,
		FutureState:   "Remote",
		EmotionImpact: "Anxious",
		Obstacles:     obstacles,
		Solution:      "Training",
		HelpChannel:   "Manager",
		Avoid:         "Layoffs",
		Prefer:        "Flexibility",
		CreatedAt:     time.Date(2026, 3, 1, 9, 30, 15, 123000000, taipei),
	}
}

// runRepositoryContract exercises the behaviour every Repository implementation must share.
// newRepo must return an empty, schema-ready repository.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		repo := newRepo(t)
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		depts, err := repo.CountByDepartment(ctx)
		require.NoError(t, err)
		assert.Empty(t, depts)

		recent, err := repo.Recent(ctx, 20)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("insert then recent returns submitted values", func(t *testing.T) {
		repo := newRepo(t)
		in := sampleResponse("Amy", "Eng")

		id, err := repo.Insert(ctx, in)
		require.NoError(t, err)
		assert.Positive(t, id)
		assert.Equal(t, id, in.ID)

		recent, err := repo.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		got := recent[0]

		assert.Equal(t, id, got.ID)
		assert.Equal(t, "Amy", got.Name)
		assert.Equal(t, "Eng", got.Department)
		assert.Equal(t, 31, got.Age)
		assert.Equal(t, "Remote", got.FutureState)
		assert.Equal(t, "Anxious", got.EmotionImpact)
		assert.Equal(t, []string{"Time", "Cost"}, got.Obstacles)
		assert.Equal(t, "Time,Cost", got.ObstaclesText)
		assert.Equal(t, models.SplitObstacles(got.ObstaclesText), got.Obstacles)
		assert.Equal(t, "Training", got.Solution)
		assert.Equal(t, "Manager", got.HelpChannel)
		assert.Equal(t, "Layoffs", got.Avoid)
		assert.Equal(t, "Flexibility", got.Prefer)
		assert.True(t, in.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", in.CreatedAt, got.CreatedAt)
	})

	t.Run("labels containing the separator round-trip", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Insert(ctx, sampleResponse("Bo", "Ops", "Time, mostly", "Cost"))
		require.NoError(t, err)

		recent, err := repo.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, []string{"Time, mostly", "Cost"}, recent[0].Obstacles)
		assert.Equal(t, "Time, mostly,Cost", recent[0].ObstaclesText)
	})

	t.Run("ids increase and recent is newest first", func(t *testing.T) {
		repo := newRepo(t)
		var ids []int64
		for i := 0; i < 5; i++ {
			id, err := repo.Insert(ctx, sampleResponse(fmt.Sprintf("user-%d", i), "Eng"))
			require.NoError(t, err)
			if len(ids) > 0 {
				assert.Greater(t, id, ids[len(ids)-1])
			}
			ids = append(ids, id)
		}

		recent, err := repo.Recent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, ids[4], recent[0].ID)
		assert.Equal(t, ids[3], recent[1].ID)
		assert.Equal(t, ids[2], recent[2].ID)
		assert.Equal(t, "user-4", recent[0].Name)

		none, err := repo.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("all returns every record oldest first", func(t *testing.T) {
		repo := newRepo(t)
		all, err := repo.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		_, err = repo.Insert(ctx, sampleResponse("first", "Eng", "Time"))
		require.NoError(t, err)
		_, err = repo.Insert(ctx, sampleResponse("second", "Ops", "Cost, overhead", "Tooling"))
		require.NoError(t, err)
		_, err = repo.Insert(ctx, sampleResponse("third", "Eng"))
		require.NoError(t, err)

		all, err = repo.All(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "first", all[0].Name)
		assert.Equal(t, []string{"Time"}, all[0].Obstacles)
		assert.Equal(t, []string{"Cost, overhead", "Tooling"}, all[1].Obstacles)
		assert.Equal(t, "third", all[2].Name)
		assert.Equal(t, []string{"Time", "Cost"}, all[2].Obstacles)
	})

	t.Run("department counts sorted and sum to total", func(t *testing.T) {
		repo := newRepo(t)
		for _, d := range []string{"Ops", "Eng", "HR", "Eng", "Ops", "Eng", "Admin"} {
			_, err := repo.Insert(ctx, sampleResponse("x", d))
			require.NoError(t, err)
		}

		depts, err := repo.CountByDepartment(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.DepartmentCount{
			{Department: "Eng", Count: 3},
			{Department: "Ops", Count: 2},
			{Department: "Admin", Count: 1},
			{Department: "HR", Count: 1},
		}, depts)

		total, err := repo.Count(ctx)
		require.NoError(t, err)
		var sum int64
		for _, d := range depts {
			sum += d.Count
		}
		assert.Equal(t, total, sum)

		again, err := repo.CountByDepartment(ctx)
		require.NoError(t, err)
		assert.Equal(t, depts, again)
	})

	t.Run("missing field is rejected and nothing is written", func(t *testing.T) {
		repo := newRepo(t)
		bad := sampleResponse("Amy", "")
		_, err := repo.Insert(ctx, bad)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields, FieldDepartment)

		bad = sampleResponse("Amy", "Eng")
		bad.Obstacles = nil
		_, err = repo.Insert(ctx, bad)
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields, FieldObstacles)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("concurrent inserts are all counted", func(t *testing.T) {
		repo := newRepo(t)
		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.Insert(ctx, sampleResponse(fmt.Sprintf("w%d", i), "Eng"))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, writers, n)
	})

	t.Run("cancelled context is a storage error", func(t *testing.T) {
		repo := newRepo(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := repo.Insert(cctx, sampleResponse("Amy", "Eng"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStorage))

		var serr *StorageError
		assert.True(t, errors.As(err, &serr))
	})

	t.Run("ensure schema is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Insert(ctx, sampleResponse("Amy", "Eng"))
		require.NoError(t, err)

		require.NoError(t, repo.EnsureSchema(ctx))
		require.NoError(t, repo.EnsureSchema(ctx))

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}
