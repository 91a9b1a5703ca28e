package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/drivemode/internal/backup"
	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/store"
)

type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backups: bs, logger: logger}
}

// Create handles POST /api/backups. The upload continues in the background.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	record, err := h.manager.RunAsync(r.Context())
	switch {
	case errors.Is(err, backup.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backups are not configured"})
		return
	case errors.Is(err, backup.ErrInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a backup is already running"})
		return
	case err != nil:
		h.logger.Error("start backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start backup"})
		return
	}
	writeJSON(w, http.StatusAccepted, record)
}

// List handles GET /api/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.backups.List(50)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list backups"})
		return
	}
	if list == nil {
		list = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.manager.Status(),
		"backups": list,
	})
}
