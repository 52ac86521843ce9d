package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/clients-api/internal/jobs"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db            Pinger
	worker        *jobs.Worker
	storageDriver string
}

func NewHealthHandler(db Pinger, worker *jobs.Worker, storageDriver string) *HealthHandler {
	return &HealthHandler{db: db, worker: worker, storageDriver: storageDriver}
}

// @Summary Health Check
// @Description Checks if the API and its database are reachable
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Index(c *gin.Context) {
	status, code := "ok", http.StatusOK
	database := "ok"

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status, code, database = "degraded", http.StatusServiceUnavailable, "unreachable"
		}
	}

	body := gin.H{
		"status":   status,
		"service":  "clients-api",
		"version":  "1.0.0",
		"database": database,
		"storage":  h.storageDriver,
	}
	if h.worker != nil {
		body["worker"] = h.worker.GetStats()
	}
	c.JSON(code, body)
}
