package handlers

import (
	"github.com/sjperalta/clients-api/internal/config"
	"github.com/sjperalta/clients-api/internal/jobs"
	"github.com/sjperalta/clients-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health *HealthHandler
	Client *ClientHandler
	Audit  *AuditHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, cfg *config.Config, db Pinger, worker *jobs.Worker) *Handlers {
	RegisterValidators()
	return &Handlers{
		Health: NewHealthHandler(db, worker, cfg.StorageDriver),
		Client: NewClientHandler(svcs.Client, svcs.Validator, svcs.Export, cfg.MaxUploadSize),
		Audit:  NewAuditHandler(svcs.Audit),
	}
}
