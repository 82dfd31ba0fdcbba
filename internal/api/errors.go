package api

import (
	"errors"
	"net/http"

	"github.com/arbor-coach/arbor/server/internal/api/respond"
	"github.com/arbor-coach/arbor/server/internal/engine"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/tools"
)

// writeServiceError maps service-layer errors onto HTTP responses. Fatal
// engine conditions become a single clear message; internal details never
// reach the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, "invalid request")
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, "not found")
	case errors.Is(err, model.ErrConflict):
		respond.WriteError(w, http.StatusConflict, "conflict")
	case errors.Is(err, engine.ErrTooManyToolCalls):
		respond.WriteError(w, http.StatusBadGateway, engine.ErrTooManyToolCalls.Error())
	default:
		var protocolErr *engine.ProtocolError
		var unknownTool *tools.ErrUnknownTool
		if errors.As(err, &protocolErr) || errors.As(err, &unknownTool) {
			respond.WriteError(w, http.StatusBadGateway, "the assistant hit an unexpected problem; please try again")
			return
		}
		respond.WriteInternalError(w, "internal error")
	}
}
