package patterns

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
	"github.com/arbor-coach/arbor/server/internal/store/sqlite"
)

func newAnalyzerStore(t *testing.T, userID string) store.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := sqlite.NewWithDB(db)
	_, err = s.Users().Create(context.Background(), &model.User{
		UserID: userID, Email: userID + "@example.test", TimeZone: "UTC",
	})
	require.NoError(t, err)
	return s
}

func TestAnalyzeEmitsStuckObservationFromStoreData(t *testing.T) {
	s := newAnalyzerStore(t, "u-an")
	ctx := context.Background()
	now := time.Now().UTC()

	for i, age := range []int{8, 9, 10} {
		task, err := s.Tasks().Create(ctx, &model.Task{
			UserID: "u-an", Domain: "work", Title: fmt.Sprintf("task %d", i),
		})
		require.NoError(t, err)
		require.NoError(t, s.Tasks().UpdateStatus(ctx, "u-an", task.TaskID, model.TaskInProgress, now.AddDate(0, 0, -age)))
	}

	a := NewAnalyzer(s, zerolog.Nop())
	obs, err := a.Analyze(ctx, "u-an")
	require.NoError(t, err)

	var stuck []*model.Observation
	for _, o := range obs {
		if o.Type == model.ObsStuck {
			stuck = append(stuck, o)
		}
	}
	require.Len(t, stuck, 1)
	assert.Equal(t, model.PriorityHigh, stuck[0].Priority)
}

// failingDetector stands in for a detector with a data problem.
type failingDetector struct{}

func (failingDetector) Name() string { return "failing" }
func (failingDetector) Detect(context.Context, *UserSnapshot) ([]*model.Observation, error) {
	return nil, fmt.Errorf("aggregate query broke")
}

type staticDetector struct{ obs []*model.Observation }

func (staticDetector) Name() string { return "static" }
func (d staticDetector) Detect(context.Context, *UserSnapshot) ([]*model.Observation, error) {
	return d.obs, nil
}

func TestAnalyzeIsolatesDetectorFailures(t *testing.T) {
	s := newAnalyzerStore(t, "u-iso")
	a := NewAnalyzer(s, zerolog.Nop())
	a.detectors = []Detector{
		failingDetector{},
		staticDetector{obs: []*model.Observation{{
			UserID: "u-iso", Type: model.ObsWin, Content: "good week",
			EvidenceKey: "health", Priority: model.PriorityLow,
		}}},
	}

	obs, err := a.Analyze(context.Background(), "u-iso")
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, model.ObsWin, obs[0].Type)
}

func TestAnalyzeTwiceThenDedupAtStore(t *testing.T) {
	s := newAnalyzerStore(t, "u-dedup")
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		task, err := s.Tasks().Create(ctx, &model.Task{
			UserID: "u-dedup", Domain: "work", Title: fmt.Sprintf("task %d", i),
		})
		require.NoError(t, err)
		require.NoError(t, s.Tasks().UpdateStatus(ctx, "u-dedup", task.TaskID, model.TaskInProgress, now.AddDate(0, 0, -9)))
	}

	a := NewAnalyzer(s, zerolog.Nop())
	persist := func() int {
		obs, err := a.Analyze(ctx, "u-dedup")
		require.NoError(t, err)
		inserted := 0
		for _, o := range obs {
			if _, err := s.Observations().Insert(ctx, o); err == nil {
				inserted++
			} else {
				require.ErrorIs(t, err, model.ErrDuplicate)
			}
		}
		return inserted
	}

	first := persist()
	assert.Greater(t, first, 0)

	// Unchanged data: every re-detected observation collapses into the
	// existing unsurfaced one.
	assert.Equal(t, 0, persist())
}
