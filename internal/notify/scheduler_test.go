package notify

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/events"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
	"github.com/arbor-coach/arbor/server/internal/store/sqlite"
)

type fixture struct {
	sched *Scheduler
	store store.Store
	bus   *events.Bus
	now   time.Time
	user  *model.User
}

func newFixture(t *testing.T, inactiveDays int) *fixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := sqlite.NewWithDB(db)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	u, err := s.Users().Create(ctx, &model.User{
		UserID: "u-notify", Email: "u-notify@example.test", TimeZone: "UTC",
	})
	require.NoError(t, err)
	require.NoError(t, s.Users().TouchLastActive(ctx, u.UserID, now.AddDate(0, 0, -inactiveDays)))
	u, err = s.Users().Get(ctx, u.UserID)
	require.NoError(t, err)

	bus := events.NewBus(16)
	sched := NewScheduler(s, bus, zerolog.Nop()).WithClock(func() time.Time { return now })
	return &fixture{sched: sched, store: s, bus: bus, now: now, user: u}
}

func (f *fixture) drain() []model.NotificationPayload {
	var out []model.NotificationPayload
	for {
		select {
		case p := <-f.bus.Subscribe():
			out = append(out, p)
		default:
			return out
		}
	}
}

func (f *fixture) refreshUser(t *testing.T) {
	u, err := f.store.Users().Get(context.Background(), f.user.UserID)
	require.NoError(t, err)
	f.user = u
}

func TestDueRemindersAlwaysFireOncePerDay(t *testing.T) {
	f := newFixture(t, 0) // active today
	ctx := context.Background()

	due := f.now.Add(3 * time.Hour)
	_, err := f.store.Tasks().Create(ctx, &model.Task{
		UserID: f.user.UserID, Domain: "work", Title: "file taxes", DueTime: &due,
	})
	require.NoError(t, err)

	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	sent := f.drain()
	require.Len(t, sent, 1)
	assert.Equal(t, model.NotifyTaskReminder, sent[0].Type)
	assert.Contains(t, sent[0].Message, "file taxes")

	// Same day, second sweep: dedup marker blocks the resend.
	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	assert.Empty(t, f.drain())
}

func TestHighObservationRequiresThreeDaysInactivity(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		days     int
		expected int
	}{
		{days: 2, expected: 0},
		{days: 3, expected: 1}, // exact boundary sends
	} {
		f := newFixture(t, tc.days)
		_, err := f.store.Observations().Insert(ctx, &model.Observation{
			UserID: f.user.UserID, Type: model.ObsStuck, Content: "3 tasks stuck",
			EvidenceKey: "t1,t2,t3", Priority: model.PriorityHigh,
		})
		require.NoError(t, err)

		require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
		sent := f.drain()
		require.Len(t, sent, tc.expected, "inactive %d days", tc.days)
		if tc.expected == 1 {
			assert.Equal(t, model.NotifyObservation, sent[0].Type)
		}
	}
}

func TestHighObservationEscalatesOnlyOnce(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	_, err := f.store.Observations().Insert(ctx, &model.Observation{
		UserID: f.user.UserID, Type: model.ObsStuck, Content: "3 tasks stuck",
		EvidenceKey: "t1,t2,t3", Priority: model.PriorityHigh,
	})
	require.NoError(t, err)

	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	require.Len(t, f.drain(), 1)

	// Three days later the user is still away and the observation is still
	// unsurfaced; the escalation must not repeat.
	f.sched.WithClock(func() time.Time { return f.now.AddDate(0, 0, 3) })
	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	assert.Empty(t, f.drain())
}

func TestLowAndMediumObservationsAreNeverPushed(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	for _, p := range []model.Priority{model.PriorityLow, model.PriorityMedium} {
		_, err := f.store.Observations().Insert(ctx, &model.Observation{
			UserID: f.user.UserID, Type: model.ObsWin, Content: "nice",
			EvidenceKey: "k-" + string(p), Priority: p,
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	assert.Empty(t, f.drain())
}

func TestCheckInBoundaries(t *testing.T) {
	ctx := context.Background()

	// Six days away: no check-in yet.
	f := newFixture(t, 6)
	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	assert.Empty(t, f.drain())

	// Exactly seven days: one check-in, even across repeated sweeps.
	f = newFixture(t, 7)
	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	sent := f.drain()
	require.Len(t, sent, 1)
	assert.Equal(t, model.NotifyCheckIn, sent[0].Type)

	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	assert.Empty(t, f.drain())

	// The next day is still inside the 7-day window.
	f.sched.WithClock(func() time.Time { return f.now.AddDate(0, 0, 1) })
	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	assert.Empty(t, f.drain())

	// Eight days after the first check-in the window has passed.
	f.sched.WithClock(func() time.Time { return f.now.AddDate(0, 0, 8) })
	require.NoError(t, f.sched.EvaluateUser(ctx, f.user))
	assert.Len(t, f.drain(), 1)
}

func TestRunOnceSweepsAllActiveUsers(t *testing.T) {
	f := newFixture(t, 7)
	ctx := context.Background()

	_, err := f.store.Users().Create(ctx, &model.User{
		UserID: "u-second", Email: "u-second@example.test", TimeZone: "UTC",
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Users().TouchLastActive(ctx, "u-second", f.now.AddDate(0, 0, -10)))

	require.NoError(t, f.sched.RunOnce(ctx))
	sent := f.drain()
	assert.Len(t, sent, 2) // one check-in each
}
