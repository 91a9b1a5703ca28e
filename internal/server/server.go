package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/drivemode/internal/backup"
	"github.com/dukerupert/drivemode/internal/handler"
	"github.com/dukerupert/drivemode/internal/middleware"
	"github.com/dukerupert/drivemode/internal/outbox"
	"github.com/dukerupert/drivemode/internal/push"
	"github.com/dukerupert/drivemode/internal/store"
	ws "github.com/dukerupert/drivemode/internal/websocket"
)

// Deps are the long-lived collaborators the HTTP layer needs.
type Deps struct {
	DB         *sql.DB
	Hub        *ws.Hub
	Outbox     *outbox.Dispatcher
	Classifier handler.EmergencyClassifier
	Push       *push.Service
	Backups    *backup.Manager
}

type Server struct {
	hub         *ws.Hub
	userH       *handler.UserHandler
	missedCallH *handler.MissedCallHandler
	emergencyH  *handler.EmergencyHandler
	pushH       *handler.PushHandler
	outboxH     *handler.OutboxHandler
	backupH     *handler.BackupHandler
	corsOrigins []string
	logger      *slog.Logger
}

func New(d Deps, corsOrigins []string, logger *slog.Logger) *Server {
	return &Server{
		hub:         d.Hub,
		userH:       handler.NewUserHandler(store.NewUserStore(d.DB), logger.With("component", "user")),
		missedCallH: handler.NewMissedCallHandler(store.NewMissedCallStore(d.DB), d.Outbox, d.Hub, logger.With("component", "missed_call")),
		emergencyH:  handler.NewEmergencyHandler(d.Classifier, logger.With("component", "emergency")),
		pushH:       handler.NewPushHandler(store.NewPushStore(d.DB), d.Push, logger.With("component", "push_handler")),
		outboxH:     handler.NewOutboxHandler(store.NewOutboxStore(d.DB), d.Outbox, logger.With("component", "outbox_handler")),
		backupH:     handler.NewBackupHandler(d.Backups, store.NewBackupStore(d.DB), logger.With("component", "backup_handler")),
		corsOrigins: corsOrigins,
		logger:      logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	mux.HandleFunc("POST /api/users", s.userH.Upsert)
	mux.HandleFunc("GET /api/users/email/{email}", s.userH.GetByEmail)
	mux.HandleFunc("POST /api/log-dnd", s.userH.LogDND)

	mux.HandleFunc("POST /api/missed-calls", s.missedCallH.Create)
	mux.HandleFunc("GET /api/missed-calls", s.missedCallH.List)

	mux.HandleFunc("POST /api/check-emergency", s.emergencyH.Check)

	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	mux.HandleFunc("GET /api/outbox", s.outboxH.List)
	mux.HandleFunc("POST /api/outbox/{id}/retry", s.outboxH.Retry)

	mux.HandleFunc("POST /api/backups", s.backupH.Create)
	mux.HandleFunc("GET /api/backups", s.backupH.List)

	h := middleware.CORS(s.corsOrigins)(mux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
