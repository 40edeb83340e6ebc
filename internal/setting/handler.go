package setting

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/utilities"
)

// Pinger is the database health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the health endpoint.
type Handler struct {
	settings *Settings
	db       Pinger
	logger   *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(s *Settings, db Pinger, logger *zap.SugaredLogger) *Handler {
	return &Handler{settings: s, db: db, logger: logger}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Database    string `json:"database"`
	AppName     string `json:"app_name"`
	AppVersion  string `json:"app_version"`
	Mode        string `json:"mode"`
}

// Health reports liveness. A failed database ping is reported in the body
// but does not change the status code.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warnw("health: database ping failed", "err", err)
		dbStatus = "error: " + err.Error()
	}
	utilities.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Environment: h.settings.Environment,
		Database:    dbStatus,
		AppName:     h.settings.App.Name,
		AppVersion:  h.settings.App.Version,
		Mode:        h.settings.Mode,
	})
}
