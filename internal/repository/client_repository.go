package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sjperalta/clients-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository errors
var (
	ErrNotFound  = errors.New("registro no encontrado")
	ErrDuplicate = errors.New("registro duplicado")

	ErrDuplicateEmail    = fmt.Errorf("%w: correo electrónico", ErrDuplicate)
	ErrDuplicateDocument = fmt.Errorf("%w: número de documento", ErrDuplicate)
)

// Unique constraint names, see the gorm tags on models.Client and models.Document
const (
	clientsEmailKey            = "clients_email_key"
	documentsDocumentNumberKey = "documents_document_number_key"
)

// ClientRepository defines the interface for client data access
type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
	FindByEmail(ctx context.Context, email string) (*models.Client, error)
	FindDocumentByNumber(ctx context.Context, number string) (*models.Document, error)
	CreateWithDocument(ctx context.Context, client *models.Client, document *models.Document) error
	Update(ctx context.Context, client *models.Client) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query *ClientQuery) ([]models.Client, error)
}

// ClientQuery holds the filters accepted when listing clients
type ClientQuery struct {
	Search string
	Type   models.ClientType
}

type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).
		Preload("Documents").
		Where("id = ?", id).
		First(&client).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &client, nil
}

func (r *clientRepository) FindByEmail(ctx context.Context, email string) (*models.Client, error) {
	var client models.Client
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&client).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &client, nil
}

func (r *clientRepository) FindDocumentByNumber(ctx context.Context, number string) (*models.Document, error) {
	var document models.Document
	err := r.db.WithContext(ctx).
		Preload("Client").
		Where("document_number = ?", number).
		First(&document).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &document, nil
}

// CreateWithDocument inserts the client and its first document in one transaction.
// On success client.Documents holds the persisted document.
func (r *clientRepository) CreateWithDocument(ctx context.Context, client *models.Client, document *models.Document) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(client).Error; err != nil {
			return err
		}
		document.ClientID = client.ID
		return tx.Omit(clause.Associations).Create(document).Error
	})
	if err != nil {
		return translateError(err)
	}
	client.Documents = []models.Document{*document}
	return nil
}

func (r *clientRepository) Update(ctx context.Context, client *models.Client) error {
	result := r.db.WithContext(ctx).
		Model(&models.Client{ID: client.ID}).
		Select("Type", "Name", "LastName", "LegalName", "Email", "Phone", "Address").
		Updates(client)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the client and its documents. Documents are deleted explicitly
// so the behaviour does not depend on the database enforcing ON DELETE CASCADE.
func (r *clientRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Client{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *clientRepository) List(ctx context.Context, query *ClientQuery) ([]models.Client, error) {
	var clients []models.Client

	db := r.db.WithContext(ctx).Model(&models.Client{})

	if query != nil && query.Type != "" {
		db = db.Where("type = ?", query.Type)
	}

	// Apply search over names, email and document numbers
	if query != nil && query.Search != "" {
		search := "%" + strings.ToLower(query.Search) + "%"
		documents := r.db.Model(&models.Document{}).
			Select("client_id").
			Where("document_number LIKE ?", "%"+query.Search+"%")
		db = db.Where(
			"LOWER(name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(legal_name) LIKE ? OR LOWER(email) LIKE ? OR id IN (?)",
			search, search, search, search, documents,
		)
	}

	err := db.Preload("Documents").
		Order("created_at DESC").
		Find(&clients).Error
	return clients, err
}

func translateError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case isDuplicateKeyError(err, clientsEmailKey):
		return ErrDuplicateEmail
	case isDuplicateKeyError(err, documentsDocumentNumberKey):
		return ErrDuplicateDocument
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func isDuplicateKeyError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraintName
	}
	return false
}
