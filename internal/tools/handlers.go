package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

const defaultListLimit = 20

type handlers struct {
	store store.Store
}

// decodeInput binds a loosely-typed tool input onto a typed struct so each
// handler sees validated fields instead of raw maps.
func decodeInput(input map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	return nil
}

type queryTasksInput struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (h *handlers) queryTasks(ctx context.Context, ac *auth.AuthContext, input map[string]interface{}) (string, error) {
	var in queryTasksInput
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if in.Status != "" && !model.TaskStatus(in.Status).Valid() {
		return "", fmt.Errorf("invalid tool input: unknown status %q", in.Status)
	}
	limit := in.Limit
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	var tasks []*model.Task
	var err error
	if in.Status != "" {
		tasks, err = h.store.Tasks().ListByStatus(ctx, ac.UserID, model.TaskStatus(in.Status), limit)
	} else {
		tasks, err = h.store.Tasks().List(ctx, ac.UserID, limit)
	}
	if err != nil {
		return "", fmt.Errorf("query tasks: %w", err)
	}
	return renderJSON(map[string]interface{}{"tasks": tasks, "count": len(tasks)})
}

type queryNotesInput struct {
	Limit int `json:"limit,omitempty"`
}

func (h *handlers) queryNotes(ctx context.Context, ac *auth.AuthContext, input map[string]interface{}) (string, error) {
	var in queryNotesInput
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	limit := in.Limit
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	notes, err := h.store.Notes().ListRecent(ctx, ac.UserID, limit)
	if err != nil {
		return "", fmt.Errorf("query notes: %w", err)
	}
	return renderJSON(map[string]interface{}{"notes": notes, "count": len(notes)})
}

func (h *handlers) queryProjects(ctx context.Context, ac *auth.AuthContext, input map[string]interface{}) (string, error) {
	var in struct{}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}

	projects, err := h.store.Projects().List(ctx, ac.UserID)
	if err != nil {
		return "", fmt.Errorf("query projects: %w", err)
	}
	return renderJSON(map[string]interface{}{"projects": projects, "count": len(projects)})
}

type searchNotesInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (h *handlers) searchNotes(ctx context.Context, ac *auth.AuthContext, input map[string]interface{}) (string, error) {
	var in searchNotesInput
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if in.Query == "" {
		return "", fmt.Errorf("invalid tool input: query is required")
	}
	limit := in.Limit
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	notes, err := h.store.Notes().Search(ctx, ac.UserID, in.Query, limit)
	if err != nil {
		return "", fmt.Errorf("search notes: %w", err)
	}
	return renderJSON(map[string]interface{}{"notes": notes, "count": len(notes)})
}

func renderJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render tool result: %w", err)
	}
	return string(raw), nil
}
