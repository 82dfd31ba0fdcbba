package patterns

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/arbor-coach/arbor/server/internal/model"
)

const (
	stuckThresholdCount = 3
	stuckThresholdAge   = 7 * 24 * time.Hour
	shutdownStaleFloor  = 3
	adherenceMinExpect  = 4
)

// Detector inspects one user's snapshot and emits zero or more observations.
// Finding nothing is a nil slice, not an error; errors are reserved for
// genuine data problems.
type Detector interface {
	Name() string
	Detect(ctx context.Context, snap *UserSnapshot) ([]*model.Observation, error)
}

// UserSnapshot is the read-only input shared by all detectors.
type UserSnapshot struct {
	UserID         string
	Now            time.Time
	Tasks          []*model.Task
	DomainStats    []model.DomainStats
	RecurringStats []model.RecurringStats
}

// stuckDetector fires when enough tasks have sat in progress for over a week.
type stuckDetector struct{}

func (stuckDetector) Name() string { return "stuck_tasks" }

func (stuckDetector) Detect(_ context.Context, snap *UserSnapshot) ([]*model.Observation, error) {
	var ids []string
	for _, t := range snap.Tasks {
		if t.Status != model.TaskInProgress {
			continue
		}
		since := t.CreationTime
		if t.StartedTime != nil {
			since = *t.StartedTime
		}
		if snap.Now.Sub(since) > stuckThresholdAge {
			ids = append(ids, t.TaskID)
		}
	}
	if len(ids) < stuckThresholdCount {
		return nil, nil
	}
	sort.Strings(ids)
	return []*model.Observation{{
		UserID:      snap.UserID,
		Type:        model.ObsStuck,
		Content:     fmt.Sprintf("%d tasks have been in progress for over a week without finishing", len(ids)),
		EvidenceKey: strings.Join(ids, ","),
		Priority:    model.PriorityHigh,
		DataSummary: map[string]interface{}{"taskIds": ids, "count": len(ids)},
	}}, nil
}

// domainShutdownDetector fires for a domain with no completions in either
// trailing window and a pile of stale tasks.
type domainShutdownDetector struct{}

func (domainShutdownDetector) Name() string { return "domain_shutdown" }

func (domainShutdownDetector) Detect(_ context.Context, snap *UserSnapshot) ([]*model.Observation, error) {
	var out []*model.Observation
	for _, d := range snap.DomainStats {
		if d.Completions7d == 0 && d.Completions30d == 0 && d.StaleTasks > shutdownStaleFloor {
			out = append(out, &model.Observation{
				UserID:      snap.UserID,
				Type:        model.ObsPattern,
				Content:     fmt.Sprintf("activity in %q has stopped: no completions in 30 days and %d tasks going stale", d.Domain, d.StaleTasks),
				EvidenceKey: d.Domain,
				Priority:    model.PriorityMedium,
				DataSummary: map[string]interface{}{"domain": d.Domain, "staleTasks": d.StaleTasks},
			})
		}
	}
	return out, nil
}

// recurringAdherenceDetector fires when a recurring task falls under half of
// its expected cadence, once enough repetitions were expected to judge.
type recurringAdherenceDetector struct{}

func (recurringAdherenceDetector) Name() string { return "recurring_adherence" }

func (recurringAdherenceDetector) Detect(_ context.Context, snap *UserSnapshot) ([]*model.Observation, error) {
	var out []*model.Observation
	for _, r := range snap.RecurringStats {
		if r.ExpectedCount < adherenceMinExpect {
			continue
		}
		if r.DoneCount*2 < r.ExpectedCount {
			out = append(out, &model.Observation{
				UserID:      snap.UserID,
				Type:        model.ObsConcern,
				Content:     fmt.Sprintf("%q was done %d of the expected %d times recently", r.Title, r.DoneCount, r.ExpectedCount),
				EvidenceKey: r.TaskID,
				Priority:    model.PriorityMedium,
				DataSummary: map[string]interface{}{"taskId": r.TaskID, "done": r.DoneCount, "expected": r.ExpectedCount},
			})
		}
	}
	return out, nil
}

// winDetector fires when a domain's 7-day completion count beats its
// trailing 30-day weekly average.
type winDetector struct{}

func (winDetector) Name() string { return "win" }

func (winDetector) Detect(_ context.Context, snap *UserSnapshot) ([]*model.Observation, error) {
	var out []*model.Observation
	for _, d := range snap.DomainStats {
		if d.Completions7d == 0 {
			continue
		}
		weeklyAvg := float64(d.Completions30d) * 7.0 / 30.0
		if float64(d.Completions7d) > weeklyAvg {
			out = append(out, &model.Observation{
				UserID:      snap.UserID,
				Type:        model.ObsWin,
				Content:     fmt.Sprintf("momentum in %q: %d completions this week, above the recent average", d.Domain, d.Completions7d),
				EvidenceKey: d.Domain,
				Priority:    model.PriorityLow,
				DataSummary: map[string]interface{}{"domain": d.Domain, "completions7d": d.Completions7d, "completions30d": d.Completions30d},
			})
		}
	}
	return out, nil
}

// DefaultDetectors returns the fixed detector set in evaluation order.
func DefaultDetectors() []Detector {
	return []Detector{
		stuckDetector{},
		domainShutdownDetector{},
		recurringAdherenceDetector{},
		winDetector{},
	}
}
