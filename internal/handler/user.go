package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/store"
)

type UserHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewUserHandler(us *store.UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, logger: logger}
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoUrl"`
}

// Upsert handles POST /api/users
func (h *UserHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeText(w, http.StatusBadRequest, "Missing email")
		return
	}

	if _, err := h.users.Upsert(req.Email, req.Name, req.PhotoURL); err != nil {
		h.logger.Error("save user", "error", err)
		writeText(w, http.StatusInternalServerError, "Failed to save user")
		return
	}

	writeText(w, http.StatusOK, "User saved")
}

// GetByEmail handles GET /api/users/email/{email}
func (h *UserHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByEmail(r.PathValue("email"))
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeText(w, http.StatusInternalServerError, "Server error")
		return
	}
	if user == nil {
		writeText(w, http.StatusNotFound, "User not found")
		return
	}
	if user.DNDLogs == nil {
		user.DNDLogs = []model.DNDSession{}
	}
	writeJSON(w, http.StatusOK, user)
}

type dndRequest struct {
	Email     string          `json:"email"`
	Action    string          `json:"action"`
	Timestamp EpochMillis     `json:"timestamp"`
	Location  *model.Location `json:"location"`
}

// LogDND handles POST /api/log-dnd
func (h *UserHandler) LogDND(w http.ResponseWriter, r *http.Request) {
	var req dndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	known := req.Action == model.DNDActionOn || req.Action == model.DNDActionOff
	if known && !req.Timestamp.Set {
		writeText(w, http.StatusBadRequest, "Missing timestamp")
		return
	}

	err := h.users.LogDND(req.Email, req.Action, time.UnixMilli(req.Timestamp.Value), req.Location)
	if errors.Is(err, store.ErrUserNotFound) {
		writeText(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("log dnd", "email", req.Email, "action", req.Action, "error", err)
		writeText(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeText(w, http.StatusOK, "DND log updated")
}
