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

type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID      string  `json:"userId"`
		Email       string  `json:"email"`
		DisplayName *string `json:"displayName,omitempty"`
		TimeZone    string  `json:"timeZone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if err := validate.UserID(in.UserID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Email(in.Email); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.MaxLen("displayName", in.DisplayName, 100); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if in.TimeZone == "" {
		in.TimeZone = "UTC"
	}

	u := &model.User{UserID: in.UserID, Email: in.Email, DisplayName: in.DisplayName, TimeZone: in.TimeZone}
	out, err := h.svc.CreateUser(r.Context(), u)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	u, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}
