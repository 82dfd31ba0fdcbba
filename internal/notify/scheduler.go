// Package notify implements the tiered notification policy: task-due
// reminders always fire, high-priority observations escalate only for
// inactive users, and long-absent users get a rate-limited check-in.
// Low and medium priority observations are never pushed.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/events"
	"github.com/arbor-coach/arbor/server/internal/metrics"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

const (
	observationInactivity = 3 * 24 * time.Hour
	checkInInactivity     = 7 * 24 * time.Hour
	checkInWindow         = 7 * 24 * time.Hour
	reminderHorizon       = 24 * time.Hour
)

// Scheduler evaluates the notification policy for every active user.
// Dedup markers make each decision idempotent under concurrent runs.
type Scheduler struct {
	store store.Store
	bus   *events.Bus
	log   zerolog.Logger
	now   func() time.Time
}

func NewScheduler(s store.Store, bus *events.Bus, log zerolog.Logger) *Scheduler {
	return &Scheduler{store: s, bus: bus, log: log, now: time.Now}
}

// WithClock overrides the scheduler's clock. Test hook.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// RunOnce evaluates the full policy for every active user. Per-user failures
// are logged and skipped so one bad row cannot stall the sweep.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	users, err := s.store.Users().ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	for _, u := range users {
		if err := s.EvaluateUser(ctx, u); err != nil {
			s.log.Error().Stack().Str("user_id", u.UserID).Err(err).Msg("notification evaluation failed")
		}
	}
	return nil
}

// EvaluateUser applies the tiered policy to one user.
func (s *Scheduler) EvaluateUser(ctx context.Context, u *model.User) error {
	now := s.now().UTC()

	if err := s.sendDueReminders(ctx, u, now); err != nil {
		return err
	}

	inactive := now.Sub(lastActive(u))

	if inactive >= observationInactivity {
		if err := s.sendHighObservations(ctx, u, now); err != nil {
			return err
		}
	}

	if inactive >= checkInInactivity {
		if err := s.sendCheckIn(ctx, u, now); err != nil {
			return err
		}
	}
	return nil
}

// sendDueReminders pushes one reminder per due task per day, regardless of
// how recently the user was active.
func (s *Scheduler) sendDueReminders(ctx context.Context, u *model.User, now time.Time) error {
	due, err := s.store.Tasks().ListDue(ctx, u.UserID, now.Add(reminderHorizon))
	if err != nil {
		return fmt.Errorf("list due tasks: %w", err)
	}
	day := dayBucket(now)
	for _, task := range due {
		ok, err := s.store.Notifications().MarkSent(ctx, u.UserID, model.NotifyTaskReminder, task.TaskID+":"+day, now)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		s.publish(model.NotificationPayload{
			UserID:  u.UserID,
			Type:    model.NotifyTaskReminder,
			Title:   "Task due soon",
			Message: fmt.Sprintf("%q is due soon", task.Title),
			Data:    map[string]interface{}{"taskId": task.TaskID},
		})
	}
	return nil
}

// sendHighObservations escalates each unsurfaced high-priority observation
// at most once, ever.
func (s *Scheduler) sendHighObservations(ctx context.Context, u *model.User, now time.Time) error {
	obs, err := s.store.Observations().ListUnsurfaced(ctx, u.UserID, 0)
	if err != nil {
		return fmt.Errorf("list unsurfaced observations: %w", err)
	}
	for _, o := range obs {
		if o.Priority != model.PriorityHigh {
			continue
		}
		ok, err := s.store.Notifications().MarkSent(ctx, u.UserID, model.NotifyObservation, o.ObservationID, now)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		s.publish(model.NotificationPayload{
			UserID:  u.UserID,
			Type:    model.NotifyObservation,
			Title:   "Your coach noticed something",
			Message: o.Content,
			Data:    map[string]interface{}{"observationId": o.ObservationID},
		})
	}
	return nil
}

// sendCheckIn pings a long-absent user at most once per trailing window.
func (s *Scheduler) sendCheckIn(ctx context.Context, u *model.User, now time.Time) error {
	recent, err := s.store.Notifications().SentSince(ctx, u.UserID, model.NotifyCheckIn, now.Add(-checkInWindow))
	if err != nil {
		return fmt.Errorf("check-in window lookup: %w", err)
	}
	if recent {
		return nil
	}
	ok, err := s.store.Notifications().MarkSent(ctx, u.UserID, model.NotifyCheckIn, dayBucket(now), now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.publish(model.NotificationPayload{
		UserID:  u.UserID,
		Type:    model.NotifyCheckIn,
		Title:   "Checking in",
		Message: "It's been a while. How are things going?",
	})
	return nil
}

func (s *Scheduler) publish(p model.NotificationPayload) {
	metrics.NotificationsSent.WithLabelValues(string(p.Type)).Inc()
	if !s.bus.Publish(p) {
		s.log.Warn().Str("user_id", p.UserID).Str("type", string(p.Type)).
			Msg("notification bus full, payload dropped")
	}
}

func lastActive(u *model.User) time.Time {
	if u.LastActiveTime != nil {
		return *u.LastActiveTime
	}
	return u.CreationTime
}

func dayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
