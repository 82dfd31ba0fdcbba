package services

import (
	"context"
	"time"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

// WorkspaceService covers the user's tasks, notes, and projects.
type WorkspaceService struct {
	store store.Store
}

func NewWorkspaceService(s store.Store) *WorkspaceService { return &WorkspaceService{store: s} }

func (s *WorkspaceService) CreateTask(ctx context.Context, t *model.Task) (*model.Task, error) {
	if t.Title == "" {
		return nil, model.ErrValidation
	}
	return s.store.Tasks().Create(ctx, t)
}

func (s *WorkspaceService) ListTasks(ctx context.Context, userID string, limit int) ([]*model.Task, error) {
	return s.store.Tasks().List(ctx, userID, limit)
}

func (s *WorkspaceService) UpdateTaskStatus(ctx context.Context, userID, taskID string, status model.TaskStatus) error {
	if !status.Valid() {
		return model.ErrValidation
	}
	return s.store.Tasks().UpdateStatus(ctx, userID, taskID, status, time.Now().UTC())
}

func (s *WorkspaceService) CreateNote(ctx context.Context, n *model.Note) (*model.Note, error) {
	if n.Title == "" {
		return nil, model.ErrValidation
	}
	return s.store.Notes().Create(ctx, n)
}

func (s *WorkspaceService) ListNotes(ctx context.Context, userID string, limit int) ([]*model.Note, error) {
	return s.store.Notes().ListRecent(ctx, userID, limit)
}

func (s *WorkspaceService) CreateProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	if p.Name == "" {
		return nil, model.ErrValidation
	}
	return s.store.Projects().Create(ctx, p)
}

func (s *WorkspaceService) ListProjects(ctx context.Context, userID string) ([]*model.Project, error) {
	return s.store.Projects().List(ctx, userID)
}
