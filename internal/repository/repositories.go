package repository

import (
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Client ClientRepository
	Audit  AuditRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Client: NewClientRepository(db),
		Audit:  NewAuditRepository(db),
	}
}
