package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/config"
	"github.com/arbor-coach/arbor/server/internal/localstate"
	storepkg "github.com/arbor-coach/arbor/server/internal/store"
	storepg "github.com/arbor-coach/arbor/server/internal/store/postgres"
	storelite "github.com/arbor-coach/arbor/server/internal/store/sqlite"
)

// NewStore returns the store.Store selected by cfg.DBDriver: sqlite for the
// local build target, postgres for cloud targets. The Postgres schema check
// runs asynchronously so startup stays fast.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			var err error
			if path, err = localstate.DBPath(); err != nil {
				return nil, err
			}
		}
		return storelite.New(path)

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("ARBOR_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		go func() {
			bootstrapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := storepg.Bootstrap(bootstrapCtx, db); err != nil {
				log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap check failed")
			} else {
				log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap check completed")
			}
		}()

		return storepg.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
