package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/arbor-coach/arbor/server/internal/api/respond"
	"github.com/arbor-coach/arbor/server/internal/api/validate"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/services"
)

type ChatHandler struct {
	svc *services.ConversationService
}

func NewChatHandler(svc *services.ConversationService) *ChatHandler { return &ChatHandler{svc: svc} }

// PostMessage handles POST /api/chat.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Scope     string  `json:"scope,omitempty"`
		ProjectID *string `json:"projectId,omitempty"`
		Text      string  `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.ChatText(in.Text); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	scope := model.ConversationScope(in.Scope)
	if in.Scope == "" {
		scope = model.ScopeGlobal
	}
	switch scope {
	case model.ScopeGlobal, model.ScopeTasks, model.ScopeNotes:
	case model.ScopeProject:
		if in.ProjectID == nil || *in.ProjectID == "" {
			respond.WriteBadRequest(w, "projectId is required for project scope")
			return
		}
	default:
		respond.WriteBadRequest(w, "unknown scope")
		return
	}

	reply, err := h.svc.HandleUserMessage(r.Context(), authFrom(r.Context()), scope, in.ProjectID, in.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, reply)
}

// ListMessages handles GET /api/conversations/{conversationId}/messages.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversationId"]
	msgs, err := h.svc.ListMessages(r.Context(), authFrom(r.Context()), conversationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs, "count": len(msgs)})
}
