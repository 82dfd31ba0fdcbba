// Package patterns derives coaching observations from a user's behavioral
// history: task lifecycle, per-domain trends, and recurring-task adherence.
package patterns

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/metrics"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

// Analyzer runs the detector set over one user's snapshot. It performs no
// writes; the caller persists whatever it returns.
type Analyzer struct {
	store     store.Store
	detectors []Detector
	log       zerolog.Logger
	now       func() time.Time
}

func NewAnalyzer(s store.Store, log zerolog.Logger) *Analyzer {
	return &Analyzer{store: s, detectors: DefaultDetectors(), log: log, now: time.Now}
}

// WithClock overrides the analyzer's clock. Test hook.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze loads the user's snapshot and concatenates the output of every
// detector. One detector failing is logged and skipped; the others still
// report.
func (a *Analyzer) Analyze(ctx context.Context, userID string) ([]*model.Observation, error) {
	snap, err := a.snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []*model.Observation
	for _, d := range a.detectors {
		obs, err := d.Detect(ctx, snap)
		if err != nil {
			a.log.Error().Stack().
				Str("user_id", userID).
				Str("detector", d.Name()).
				Err(err).
				Msg("detector failed, continuing with the rest")
			continue
		}
		metrics.ObservationsDetected.WithLabelValues(d.Name()).Add(float64(len(obs)))
		out = append(out, obs...)
	}
	return out, nil
}

func (a *Analyzer) snapshot(ctx context.Context, userID string) (*UserSnapshot, error) {
	now := a.now().UTC()

	tasks, err := a.store.Tasks().List(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	domains, err := a.store.Tasks().DomainStats(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("load domain stats: %w", err)
	}
	recurring, err := a.store.Tasks().RecurringStats(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("load recurring stats: %w", err)
	}

	return &UserSnapshot{
		UserID:         userID,
		Now:            now,
		Tasks:          tasks,
		DomainStats:    domains,
		RecurringStats: recurring,
	}, nil
}
