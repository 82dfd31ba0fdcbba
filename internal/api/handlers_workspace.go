package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/arbor-coach/arbor/server/internal/api/respond"
	"github.com/arbor-coach/arbor/server/internal/api/validate"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/services"
)

type WorkspaceHandler struct {
	svc *services.WorkspaceService
}

func NewWorkspaceHandler(svc *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc}
}

func (h *WorkspaceHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	var in struct {
		Title       string     `json:"title"`
		Domain      string     `json:"domain,omitempty"`
		ProjectID   *string    `json:"projectId,omitempty"`
		DueTime     *time.Time `json:"dueTime,omitempty"`
		CadenceDays *int       `json:"cadenceDays,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Title("title", in.Title); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	task, err := h.svc.CreateTask(r.Context(), &model.Task{
		UserID:      ac.UserID,
		Title:       in.Title,
		Domain:      in.Domain,
		ProjectID:   in.ProjectID,
		DueTime:     in.DueTime,
		CadenceDays: in.CadenceDays,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, task)
}

func (h *WorkspaceHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tasks, err := h.svc.ListTasks(r.Context(), ac.UserID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks, "count": len(tasks)})
}

func (h *WorkspaceHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	var in struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}

	err := h.svc.UpdateTaskStatus(r.Context(), ac.UserID, mux.Vars(r)["taskId"], model.TaskStatus(in.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkspaceHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Title("title", in.Title); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	note, err := h.svc.CreateNote(r.Context(), &model.Note{UserID: ac.UserID, Title: in.Title, Content: in.Content})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, note)
}

func (h *WorkspaceHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	notes, err := h.svc.ListNotes(r.Context(), ac.UserID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"notes": notes, "count": len(notes)})
}

func (h *WorkspaceHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.Title("name", in.Name); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	project, err := h.svc.CreateProject(r.Context(), &model.Project{UserID: ac.UserID, Name: in.Name})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, project)
}

func (h *WorkspaceHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	projects, err := h.svc.ListProjects(r.Context(), ac.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"projects": projects, "count": len(projects)})
}
