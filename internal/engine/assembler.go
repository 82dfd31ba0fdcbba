package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

const (
	assembleTaskLimit = 25
	assembleNoteLimit = 10
	// At most this many unsurfaced observations are woven into a turn.
	assembleObservationCap = 3
)

// Snapshot is the read-only workspace context assembled for one turn.
type Snapshot struct {
	Profile      *model.Profile
	Tasks        []*model.Task
	Notes        []*model.Note
	Projects     []*model.Project
	Observations []*model.Observation
	Summary      string
}

// ObservationIDs lists the observations included in the snapshot, so the
// caller can mark them surfaced once the turn completes.
func (s *Snapshot) ObservationIDs() []string {
	out := make([]string, 0, len(s.Observations))
	for _, o := range s.Observations {
		out = append(out, o.ObservationID)
	}
	return out
}

// Assembler builds per-turn workspace snapshots. Pure reads; a missing or
// failing sub-resource degrades to an empty section rather than blocking the
// turn.
type Assembler struct {
	store store.Store
	log   zerolog.Logger
}

func NewAssembler(s store.Store, log zerolog.Logger) *Assembler {
	return &Assembler{store: s, log: log}
}

// Assemble gathers the user's workspace state for one orchestrator turn.
func (a *Assembler) Assemble(ctx context.Context, userID string, conv *model.Conversation) *Snapshot {
	snap := &Snapshot{}

	profile, err := a.store.Profiles().Get(ctx, userID)
	if err == nil {
		snap.Profile = profile
	} else if !errors.Is(err, model.ErrNotFound) {
		a.warn(userID, "profile", err)
	}

	if tasks, err := a.store.Tasks().List(ctx, userID, assembleTaskLimit); err != nil {
		a.warn(userID, "tasks", err)
	} else {
		snap.Tasks = tasks
	}

	if notes, err := a.store.Notes().ListRecent(ctx, userID, assembleNoteLimit); err != nil {
		a.warn(userID, "notes", err)
	} else {
		snap.Notes = notes
	}

	if projects, err := a.store.Projects().List(ctx, userID); err != nil {
		a.warn(userID, "projects", err)
	} else {
		snap.Projects = projects
	}

	if obs, err := a.store.Observations().ListUnsurfaced(ctx, userID, assembleObservationCap); err != nil {
		a.warn(userID, "observations", err)
	} else {
		snap.Observations = obs
	}

	if conv != nil && conv.Summary != nil {
		snap.Summary = *conv.Summary
	}

	return snap
}

func (a *Assembler) warn(userID, section string, err error) {
	a.log.Warn().Str("user_id", userID).Str("section", section).Err(err).
		Msg("context section unavailable, continuing without it")
}

// Render produces the workspace portion of the system prompt.
func (s *Snapshot) Render() string {
	var b strings.Builder

	if s.Profile != nil {
		b.WriteString("## About the user\n")
		if s.Profile.Summary != "" {
			b.WriteString(s.Profile.Summary)
			b.WriteString("\n")
		}
		for _, g := range s.Profile.Goals {
			fmt.Fprintf(&b, "- goal: %s\n", g)
		}
		b.WriteString("\n")
	}

	if len(s.Projects) > 0 {
		b.WriteString("## Projects\n")
		for _, p := range s.Projects {
			fmt.Fprintf(&b, "- %s (%s)\n", p.Name, p.Status)
		}
		b.WriteString("\n")
	}

	if len(s.Tasks) > 0 {
		b.WriteString("## Recent tasks\n")
		for _, t := range s.Tasks {
			line := fmt.Sprintf("- [%s] %s (%s", t.Status, t.Title, t.Domain)
			if t.DueTime != nil {
				line += ", due " + t.DueTime.Format(time.RFC3339)
			}
			b.WriteString(line + ")\n")
		}
		b.WriteString("\n")
	}

	if len(s.Notes) > 0 {
		b.WriteString("## Recent notes\n")
		for _, n := range s.Notes {
			fmt.Fprintf(&b, "- %s\n", n.Title)
		}
		b.WriteString("\n")
	}

	if len(s.Observations) > 0 {
		b.WriteString("## Coaching observations\n")
		b.WriteString("Weave these into the conversation naturally when relevant:\n")
		for _, o := range s.Observations {
			fmt.Fprintf(&b, "- (%s, %s) %s\n", o.Type, o.Priority, o.Content)
		}
		b.WriteString("\n")
	}

	if s.Summary != "" {
		b.WriteString("## Earlier in this conversation\n")
		b.WriteString(s.Summary)
		b.WriteString("\n")
	}

	return b.String()
}
