package services

import (
	"github.com/sjperalta/clients-api/internal/config"
	"github.com/sjperalta/clients-api/internal/jobs"
	"github.com/sjperalta/clients-api/internal/metrics"
	"github.com/sjperalta/clients-api/internal/repository"
	"github.com/sjperalta/clients-api/internal/storage"
)

// Services holds all service instances
type Services struct {
	Client    *ClientService
	Validator DocumentValidator
	Audit     *AuditService
	Export    *ExportService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, store storage.ObjectStorage, cfg *config.Config, m *metrics.Metrics) *Services {
	auditSvc := NewAuditService(repos.Audit, worker)
	validator := NewCedulaValidatorService(
		WithLatency(cfg.Validator.MinLatency, cfg.Validator.MaxLatency),
		WithFailureRate(cfg.Validator.FailureRate),
		WithValidatorMetrics(m),
	)
	imageSvc := NewImageService(cfg.MaxUploadSize, DefaultMaxImageDimension)

	return &Services{
		Client:    NewClientService(repos.Client, store, validator, imageSvc, auditSvc, m),
		Validator: validator,
		Audit:     auditSvc,
		Export:    NewExportService(),
	}
}
