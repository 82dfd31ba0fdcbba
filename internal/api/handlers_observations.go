package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/arbor-coach/arbor/server/internal/api/respond"
	"github.com/arbor-coach/arbor/server/internal/services"
)

type ObservationHandler struct {
	svc *services.ObservationService
}

func NewObservationHandler(svc *services.ObservationService) *ObservationHandler {
	return &ObservationHandler{svc: svc}
}

// List handles GET /api/observations?includeDismissed=true.
func (h *ObservationHandler) List(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	includeDismissed := r.URL.Query().Get("includeDismissed") == "true"

	obs, err := h.svc.List(r.Context(), ac.UserID, includeDismissed)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"observations": obs, "count": len(obs)})
}

// Dismiss handles DELETE /api/observations/{observationId}.
func (h *ObservationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	if err := h.svc.Dismiss(r.Context(), ac.UserID, mux.Vars(r)["observationId"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Analyze handles POST /api/observations/analyze, a manual trigger for the
// same pass the worker runs on its schedule.
func (h *ObservationHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ac := authFrom(r.Context())
	inserted, err := h.svc.AnalyzeAndPersist(r.Context(), ac.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"inserted": inserted})
}
