package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/logger"
)

// Migrator applies pending schema migrations.
type Migrator interface {
	RunMigrations() (uint, error)
}

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	migrator Migrator
	pinger   Pinger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(migrator Migrator, pinger Pinger) *AdminHandler {
	return &AdminHandler{migrator: migrator, pinger: pinger}
}

// MigrateResponse reports the schema version after migrating.
type MigrateResponse struct {
	Success bool `json:"success"`
	Version uint `json:"version"`
}

// Migrate applies pending migrations
// @Summary     Run database migrations
// @Tags        admin
// @Produce     json
// @Param       X-API-Key header string true "Admin API key"
// @Success     200 {object} MigrateResponse
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Admin endpoints not configured"
// @Router      /admin/migrate [post]
func (h *AdminHandler) Migrate(c *gin.Context) {
	version, err := h.migrator.RunMigrations()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	logger.Get().Infow("migrations applied via admin endpoint", "version", version, "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, MigrateResponse{Success: true, Version: version})
}

// Health reports liveness and database reachability
// @Summary     Health check
// @Tags        admin
// @Produce     json
// @Success     200 {object} map[string]string
// @Failure     503 {object} map[string]string
// @Router      /health [get]
func (h *AdminHandler) Health(c *gin.Context) {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request.Context()); err != nil {
			logger.Get().Warnw("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
