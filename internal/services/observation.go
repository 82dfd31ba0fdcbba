package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/patterns"
	"github.com/arbor-coach/arbor/server/internal/store"
)

// ObservationService runs pattern analysis and owns observation persistence,
// including the dedup step between detection and insertion.
type ObservationService struct {
	store     store.Store
	analyzer  *patterns.Analyzer
	log       zerolog.Logger
	userLocks *keyedMutex
}

func NewObservationService(s store.Store, analyzer *patterns.Analyzer, log zerolog.Logger) *ObservationService {
	return &ObservationService{
		store:     s,
		analyzer:  analyzer,
		log:       log,
		userLocks: newKeyedMutex(),
	}
}

// AnalyzeAndPersist runs the detector set for one user and inserts whatever
// survives dedup. Returns the number of observations actually inserted.
// Runs for the same user are serialized; concurrent users don't contend.
func (s *ObservationService) AnalyzeAndPersist(ctx context.Context, userID string) (int, error) {
	unlock := s.userLocks.Lock(userID)
	defer unlock()

	obs, err := s.analyzer.Analyze(ctx, userID)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, o := range obs {
		if _, err := s.store.Observations().Insert(ctx, o); err != nil {
			if errors.Is(err, model.ErrDuplicate) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	if inserted > 0 {
		s.log.Info().Str("user_id", userID).Int("inserted", inserted).Msg("new observations persisted")
	}
	return inserted, nil
}

// AnalyzeAll sweeps every active user with at most parallelism users in
// flight. Per-user failures are logged and skipped. Returns the total number
// of observations inserted across the sweep.
func (s *ObservationService) AnalyzeAll(ctx context.Context, parallelism int) (int, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	users, err := s.store.Users().ListActive(ctx)
	if err != nil {
		return 0, err
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	sem := make(chan struct{}, parallelism)
	for _, u := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(userID string) {
			defer wg.Done()
			defer func() { <-sem }()
			n, err := s.AnalyzeAndPersist(ctx, userID)
			if err != nil {
				s.log.Error().Stack().Str("user_id", userID).Err(err).Msg("analysis sweep failed for user")
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(u.UserID)
	}
	wg.Wait()
	return total, nil
}

func (s *ObservationService) List(ctx context.Context, userID string, includeDismissed bool) ([]*model.Observation, error) {
	return s.store.Observations().List(ctx, userID, includeDismissed)
}

func (s *ObservationService) Dismiss(ctx context.Context, userID, observationID string) error {
	return s.store.Observations().Dismiss(ctx, userID, observationID)
}
