package services

import (
	"context"

	"github.com/sjperalta/clients-api/internal/jobs"
	"github.com/sjperalta/clients-api/internal/models"
	"github.com/sjperalta/clients-api/internal/repository"
	"github.com/sjperalta/clients-api/pkg/logger"
)

// AuditService records who-changed-what entries. Writes go through the worker
// so a slow audit table never delays a request.
type AuditService struct {
	repo   repository.AuditRepository
	worker *jobs.Worker
}

func NewAuditService(repo repository.AuditRepository, worker *jobs.Worker) *AuditService {
	return &AuditService{repo: repo, worker: worker}
}

// Log records an audit entry in the background. A nil service does nothing.
func (s *AuditService) Log(action, entity, entityID, details string) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Details:  details,
	}

	if s.worker == nil {
		if err := s.repo.Create(context.Background(), entry); err != nil {
			logger.Error("Error writing audit log", "action", action, "error", err)
		}
		return
	}
	s.worker.Enqueue(func(ctx context.Context) error {
		return s.repo.Create(ctx, entry)
	})
}

// List retrieves audit logs, newest first
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]models.AuditLog, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}
