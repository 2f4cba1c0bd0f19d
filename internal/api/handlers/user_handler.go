package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	middleware "github.com/markdave123-py/leaselens/internal/api/middlewares"
	"github.com/markdave123-py/leaselens/internal/core"
	"github.com/markdave123-py/leaselens/internal/services"
)

type UserHandler struct {
	users *services.UserService
	log   *zap.SugaredLogger
}

func NewUserHandler(users *services.UserService, log *zap.SugaredLogger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// Get returns the caller's account, creating it on first access.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.users.Get(r.Context(), id.UserID, id.Email, id.City)
	if err != nil {
		h.log.Errorw("User: fetch failed", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateCityRequest struct {
	City string `json:"city"`
}

func (h *UserHandler) UpdateCity(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body updateCityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.UpdateCity(r.Context(), id.UserID, id.Email, body.City)
	if errors.Is(err, core.ErrValidation) {
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), core.ErrValidation.Error()+": "))
		return
	}
	if err != nil {
		h.log.Errorw("User: update city failed", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update city")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
