package patterns

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/model"
)

func daysAgo(now time.Time, d int) *time.Time {
	t := now.AddDate(0, 0, -d)
	return &t
}

func TestStuckDetectorFiresAtThreeOldTasks(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	snap := &UserSnapshot{UserID: "u", Now: now}
	for i, age := range []int{8, 9, 10} {
		snap.Tasks = append(snap.Tasks, &model.Task{
			TaskID: fmt.Sprintf("t%d", i), Status: model.TaskInProgress,
			StartedTime: daysAgo(now, age),
		})
	}

	obs, err := stuckDetector{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, model.ObsStuck, obs[0].Type)
	assert.Equal(t, model.PriorityHigh, obs[0].Priority)
	assert.Equal(t, "t0,t1,t2", obs[0].EvidenceKey)
	assert.ElementsMatch(t, []string{"t0", "t1", "t2"}, obs[0].DataSummary["taskIds"])
}

func TestStuckDetectorIgnoresFreshOrFewTasks(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	// Only two old ones.
	snap := &UserSnapshot{UserID: "u", Now: now, Tasks: []*model.Task{
		{TaskID: "a", Status: model.TaskInProgress, StartedTime: daysAgo(now, 9)},
		{TaskID: "b", Status: model.TaskInProgress, StartedTime: daysAgo(now, 8)},
		{TaskID: "c", Status: model.TaskInProgress, StartedTime: daysAgo(now, 2)},
		{TaskID: "d", Status: model.TaskDone, StartedTime: daysAgo(now, 20)},
	}}
	obs, err := stuckDetector{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, obs)
}

func TestDomainShutdownDetector(t *testing.T) {
	snap := &UserSnapshot{UserID: "u", DomainStats: []model.DomainStats{
		{Domain: "music", Completions7d: 0, Completions30d: 0, StaleTasks: 5},
		{Domain: "health", Completions7d: 2, Completions30d: 9, StaleTasks: 4},
		{Domain: "admin", Completions7d: 0, Completions30d: 0, StaleTasks: 2},
	}}

	obs, err := domainShutdownDetector{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, model.ObsPattern, obs[0].Type)
	assert.Equal(t, "music", obs[0].EvidenceKey)
}

func TestRecurringAdherenceDetector(t *testing.T) {
	snap := &UserSnapshot{UserID: "u", RecurringStats: []model.RecurringStats{
		{TaskID: "r1", Title: "morning run", ExpectedCount: 10, DoneCount: 3},  // 30% -> fires
		{TaskID: "r2", Title: "weekly review", ExpectedCount: 4, DoneCount: 2}, // exactly 50% -> no
		{TaskID: "r3", Title: "water plants", ExpectedCount: 3, DoneCount: 0},  // too few expected
	}}

	obs, err := recurringAdherenceDetector{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, model.ObsConcern, obs[0].Type)
	assert.Equal(t, "r1", obs[0].EvidenceKey)
	assert.Contains(t, obs[0].Content, "morning run")
}

func TestWinDetector(t *testing.T) {
	snap := &UserSnapshot{UserID: "u", DomainStats: []model.DomainStats{
		{Domain: "health", Completions7d: 5, Completions30d: 12}, // avg 2.8 -> fires
		{Domain: "work", Completions7d: 2, Completions30d: 20},   // avg 4.7 -> no
		{Domain: "idle", Completions7d: 0, Completions30d: 0},    // nothing happened
	}}

	obs, err := winDetector{}.Detect(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, model.ObsWin, obs[0].Type)
	assert.Equal(t, model.PriorityLow, obs[0].Priority)
	assert.Equal(t, "health", obs[0].EvidenceKey)
}
