package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arbor-coach/arbor/server/internal/api/recovery"
	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/health"
	"github.com/arbor-coach/arbor/server/internal/services"
)

// Deps bundles everything the router needs.
type Deps struct {
	Authorizer    auth.Authorizer
	Users         *services.UserService
	Conversations *services.ConversationService
	Observations  *services.ObservationService
	Workspace     *services.WorkspaceService
	Checkers      []health.HealthChecker
}

// NewRouter wires all HTTP routes. Everything under /api except health,
// metrics, and user provisioning requires a valid API key.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	healthHandler := NewHealthHandler(d.Checkers...)
	userHandler := NewUserHandler(d.Users)
	chatHandler := NewChatHandler(d.Conversations)
	obsHandler := NewObservationHandler(d.Observations)
	wsHandler := NewWorkspaceHandler(d.Workspace)

	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/api/users", userHandler.CreateUser).Methods("POST")
	router.HandleFunc("/api/users/{userId}", userHandler.GetUser).Methods("GET")

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(authMiddleware(d.Authorizer))

	authed.HandleFunc("/chat", chatHandler.PostMessage).Methods("POST")
	authed.HandleFunc("/conversations/{conversationId}/messages", chatHandler.ListMessages).Methods("GET")

	authed.HandleFunc("/observations", obsHandler.List).Methods("GET")
	authed.HandleFunc("/observations/analyze", obsHandler.Analyze).Methods("POST")
	authed.HandleFunc("/observations/{observationId}", obsHandler.Dismiss).Methods("DELETE")

	authed.HandleFunc("/tasks", wsHandler.CreateTask).Methods("POST")
	authed.HandleFunc("/tasks", wsHandler.ListTasks).Methods("GET")
	authed.HandleFunc("/tasks/{taskId}/status", wsHandler.UpdateTaskStatus).Methods("PUT")

	authed.HandleFunc("/notes", wsHandler.CreateNote).Methods("POST")
	authed.HandleFunc("/notes", wsHandler.ListNotes).Methods("GET")

	authed.HandleFunc("/projects", wsHandler.CreateProject).Methods("POST")
	authed.HandleFunc("/projects", wsHandler.ListProjects).Methods("GET")

	return router
}
