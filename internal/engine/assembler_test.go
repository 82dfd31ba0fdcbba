package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
	"github.com/arbor-coach/arbor/server/internal/store/sqlite"
)

func newAssemblerStore(t *testing.T, userID string) store.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := sqlite.NewWithDB(db)
	_, err = s.Users().Create(context.Background(), &model.User{
		UserID: userID, Email: userID + "@example.test", TimeZone: "UTC",
	})
	require.NoError(t, err)
	return s
}

func TestAssembleDegradesGracefullyWithEmptyWorkspace(t *testing.T) {
	s := newAssemblerStore(t, "u-empty")
	asm := NewAssembler(s, zerolog.Nop())

	snap := asm.Assemble(context.Background(), "u-empty", nil)
	require.NotNil(t, snap)
	assert.Nil(t, snap.Profile)
	assert.Empty(t, snap.Tasks)
	assert.Empty(t, snap.Observations)
	assert.Equal(t, "", snap.Render())
}

func TestAssembleCapsObservationsByPriority(t *testing.T) {
	s := newAssemblerStore(t, "u-obs")
	ctx := context.Background()

	priorities := []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityLow}
	types := []model.ObservationType{model.ObsPattern, model.ObsConcern, model.ObsStuck, model.ObsWin}
	for i, p := range priorities {
		_, err := s.Observations().Insert(ctx, &model.Observation{
			UserID: "u-obs", Type: types[i], Content: fmt.Sprintf("obs %d", i),
			EvidenceKey: fmt.Sprintf("k%d", i), Priority: p,
		})
		require.NoError(t, err)
	}

	snap := NewAssembler(s, zerolog.Nop()).Assemble(ctx, "u-obs", nil)
	require.Len(t, snap.Observations, 3)
	assert.Equal(t, model.PriorityHigh, snap.Observations[0].Priority)
	assert.Len(t, snap.ObservationIDs(), 3)
	assert.Contains(t, snap.Render(), "Coaching observations")
}

func TestAssembleIncludesWorkspaceSections(t *testing.T) {
	s := newAssemblerStore(t, "u-full")
	ctx := context.Background()

	_, err := s.Profiles().Put(ctx, &model.Profile{UserID: "u-full", Summary: "training for a marathon", Goals: []string{"run 10k"}})
	require.NoError(t, err)
	_, err = s.Tasks().Create(ctx, &model.Task{UserID: "u-full", Domain: "health", Title: "long run"})
	require.NoError(t, err)
	_, err = s.Notes().Create(ctx, &model.Note{UserID: "u-full", Title: "pace notes"})
	require.NoError(t, err)
	_, err = s.Projects().Create(ctx, &model.Project{UserID: "u-full", Name: "marathon"})
	require.NoError(t, err)

	summary := "earlier they discussed shoes"
	conv := &model.Conversation{Summary: &summary}

	out := NewAssembler(s, zerolog.Nop()).Assemble(ctx, "u-full", conv).Render()
	assert.Contains(t, out, "training for a marathon")
	assert.Contains(t, out, "run 10k")
	assert.Contains(t, out, "long run")
	assert.Contains(t, out, "pace notes")
	assert.Contains(t, out, "marathon")
	assert.Contains(t, out, "earlier they discussed shoes")
}

// failingNotes simulates a broken sub-resource.
type failingNotesStore struct{ store.Store }

func (s *failingNotesStore) Notes() store.Notes { return failingNotes{} }

type failingNotes struct{}

func (failingNotes) Create(context.Context, *model.Note) (*model.Note, error) {
	return nil, fmt.Errorf("notes backend down")
}
func (failingNotes) ListRecent(context.Context, string, int) ([]*model.Note, error) {
	return nil, fmt.Errorf("notes backend down")
}
func (failingNotes) Search(context.Context, string, string, int) ([]*model.Note, error) {
	return nil, fmt.Errorf("notes backend down")
}

func TestAssembleToleratesFailingSubResource(t *testing.T) {
	s := &failingNotesStore{Store: newAssemblerStore(t, "u-broken")}
	ctx := context.Background()
	_, err := s.Tasks().Create(ctx, &model.Task{UserID: "u-broken", Domain: "work", Title: "ship it"})
	require.NoError(t, err)

	snap := NewAssembler(s, zerolog.Nop()).Assemble(ctx, "u-broken", nil)
	assert.Empty(t, snap.Notes)
	assert.Len(t, snap.Tasks, 1)
}
