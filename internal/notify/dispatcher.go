package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/events"
)

// Dispatcher drains the notification bus. This build logs each payload; a
// real delivery channel (push gateway, email) would replace the log call.
type Dispatcher struct {
	bus *events.Bus
	log zerolog.Logger
}

func NewDispatcher(bus *events.Bus, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{bus: bus, log: log}
}

// Run consumes payloads until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("notification dispatcher stopping")
			return
		case p := <-d.bus.Subscribe():
			d.log.Info().
				Str("user_id", p.UserID).
				Str("type", string(p.Type)).
				Str("title", p.Title).
				Str("message", p.Message).
				Msg("notification dispatched")
		}
	}
}
