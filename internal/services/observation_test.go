package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/patterns"
	"github.com/arbor-coach/arbor/server/internal/store"
	"github.com/arbor-coach/arbor/server/internal/store/sqlite"
)

func newObservationFixture(t *testing.T) (*ObservationService, store.Store) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := sqlite.NewWithDB(db)

	_, err = s.Users().Create(context.Background(), &model.User{
		UserID: "u-obs-svc", Email: "u-obs-svc@example.test", TimeZone: "UTC",
	})
	require.NoError(t, err)

	svc := NewObservationService(s, patterns.NewAnalyzer(s, zerolog.Nop()), zerolog.Nop())
	return svc, s
}

func TestAnalyzeAndPersistDeduplicatesAcrossRuns(t *testing.T) {
	svc, s := newObservationFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		task, err := s.Tasks().Create(ctx, &model.Task{
			UserID: "u-obs-svc", Domain: "work", Title: fmt.Sprintf("task %d", i),
		})
		require.NoError(t, err)
		require.NoError(t, s.Tasks().UpdateStatus(ctx, "u-obs-svc", task.TaskID, model.TaskInProgress, now.AddDate(0, 0, -9)))
	}

	inserted, err := svc.AnalyzeAndPersist(ctx, "u-obs-svc")
	require.NoError(t, err)
	assert.Greater(t, inserted, 0)

	// Unchanged data, second run: everything collapses into existing rows.
	inserted, err = svc.AnalyzeAndPersist(ctx, "u-obs-svc")
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func TestDismissObservation(t *testing.T) {
	svc, s := newObservationFixture(t)
	ctx := context.Background()

	o, err := s.Observations().Insert(ctx, &model.Observation{
		UserID: "u-obs-svc", Type: model.ObsConcern, Content: "slipping",
		EvidenceKey: "r1", Priority: model.PriorityMedium,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Dismiss(ctx, "u-obs-svc", o.ObservationID))

	live, err := svc.List(ctx, "u-obs-svc", false)
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := svc.List(ctx, "u-obs-svc", true)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
