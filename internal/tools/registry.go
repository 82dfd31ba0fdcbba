// Package tools defines the closed catalog of model-invocable tools, the
// registry that resolves tool names, and the executor that runs server-side
// handlers with failure isolation.
package tools

import (
	"context"
	"fmt"

	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/llm"
	"github.com/arbor-coach/arbor/server/internal/store"
)

// Name identifies a tool. The set of valid names is closed: every Name the
// registry accepts is declared below, and anything else is rejected at the
// registry boundary.
type Name string

const (
	QueryTasks    Name = "query_tasks"
	QueryNotes    Name = "query_notes"
	QueryProjects Name = "query_projects"
	SearchNotes   Name = "search_notes"
	AskUser       Name = "ask_user"
	ProposeUpdate Name = "propose_update"
)

// Capability classifies how a tool executes.
type Capability int

const (
	// CapQuery tools are read-only and safe to auto-execute server-side.
	CapQuery Capability = iota
	// CapInteractive tools pause the loop for human input or approval.
	// They carry no server handler.
	CapInteractive
)

// ErrUnknownTool marks a tool name outside the catalog. It indicates a
// schema mismatch between client and server and is never retried.
type ErrUnknownTool struct{ Name string }

func (e *ErrUnknownTool) Error() string { return fmt.Sprintf("unknown tool %q", e.Name) }

// Handler executes one server-side tool invocation and returns the text
// placed in the tool result.
type Handler func(ctx context.Context, ac *auth.AuthContext, input map[string]interface{}) (string, error)

// Entry is one registered tool.
type Entry struct {
	Capability Capability
	Def        llm.ToolDef
	Handler    Handler
}

// Registry maps tool names to entries. Built once at startup; read-only
// afterwards.
type Registry struct {
	entries map[Name]Entry
}

// NewRegistry builds the full tool catalog over the given store.
func NewRegistry(s store.Store) *Registry {
	h := &handlers{store: s}
	return &Registry{entries: map[Name]Entry{
		QueryTasks: {
			Capability: CapQuery,
			Def: llm.ToolDef{
				Name:        string(QueryTasks),
				Description: "List the user's tasks, optionally filtered by status.",
				InputSchema: objectSchema(map[string]interface{}{
					"status": map[string]interface{}{
						"type": "string",
						"enum": []string{"todo", "in_progress", "done", "abandoned"},
					},
					"limit": map[string]interface{}{"type": "integer"},
				}),
			},
			Handler: h.queryTasks,
		},
		QueryNotes: {
			Capability: CapQuery,
			Def: llm.ToolDef{
				Name:        string(QueryNotes),
				Description: "List the user's most recent notes.",
				InputSchema: objectSchema(map[string]interface{}{
					"limit": map[string]interface{}{"type": "integer"},
				}),
			},
			Handler: h.queryNotes,
		},
		QueryProjects: {
			Capability: CapQuery,
			Def: llm.ToolDef{
				Name:        string(QueryProjects),
				Description: "List the user's projects.",
				InputSchema: objectSchema(nil),
			},
			Handler: h.queryProjects,
		},
		SearchNotes: {
			Capability: CapQuery,
			Def: llm.ToolDef{
				Name:        string(SearchNotes),
				Description: "Search the user's notes by keyword.",
				InputSchema: objectSchemaRequired(map[string]interface{}{
					"query": map[string]interface{}{"type": "string"},
					"limit": map[string]interface{}{"type": "integer"},
				}, "query"),
			},
			Handler: h.searchNotes,
		},
		AskUser: {
			Capability: CapInteractive,
			Def: llm.ToolDef{
				Name:        string(AskUser),
				Description: "Ask the user a clarifying question and wait for their answer.",
				InputSchema: objectSchemaRequired(map[string]interface{}{
					"question": map[string]interface{}{"type": "string"},
				}, "question"),
			},
		},
		ProposeUpdate: {
			Capability: CapInteractive,
			Def: llm.ToolDef{
				Name:        string(ProposeUpdate),
				Description: "Propose a change to the user's tasks or notes and wait for approval before anything is modified.",
				InputSchema: objectSchemaRequired(map[string]interface{}{
					"description": map[string]interface{}{"type": "string"},
				}, "description"),
			},
		},
	}}
}

// Resolve returns the entry for name. Unknown names return *ErrUnknownTool.
func (r *Registry) Resolve(name string) (Entry, error) {
	e, ok := r.entries[Name(name)]
	if !ok {
		return Entry{}, &ErrUnknownTool{Name: name}
	}
	return e, nil
}

// IsInteractive reports whether name is a registered interactive tool.
func (r *Registry) IsInteractive(name string) bool {
	e, ok := r.entries[Name(name)]
	return ok && e.Capability == CapInteractive
}

// Defs returns the tool schemas advertised to the model, in a stable order.
func (r *Registry) Defs() []llm.ToolDef {
	order := []Name{QueryTasks, QueryNotes, QueryProjects, SearchNotes, AskUser, ProposeUpdate}
	out := make([]llm.ToolDef, 0, len(order))
	for _, n := range order {
		out = append(out, r.entries[n].Def)
	}
	return out
}

func objectSchema(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		props = map[string]interface{}{}
	}
	return map[string]interface{}{"type": "object", "properties": props}
}

func objectSchemaRequired(props map[string]interface{}, required ...string) map[string]interface{} {
	s := objectSchema(props)
	s["required"] = required
	return s
}
