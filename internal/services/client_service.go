package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sjperalta/clients-api/internal/metrics"
	"github.com/sjperalta/clients-api/internal/models"
	"github.com/sjperalta/clients-api/internal/repository"
	"github.com/sjperalta/clients-api/internal/storage"
	"github.com/sjperalta/clients-api/pkg/logger"
)

const (
	msgEmailTaken          = "Ya existe un cliente con este correo electrónico"
	msgEmailInUse          = "El correo electrónico ya está en uso por otro cliente"
	msgFrontImageRequired  = "La imagen frontal del documento es obligatoria"
	msgClientDeleted       = "Cliente eliminado exitosamente"
	msgInvalidClientType   = "El tipo debe ser NATURAL_PERSON o COMPANY"
	msgInvalidDocumentType = "El tipo de documento debe ser CEDULA o RUC"
	msgNameTooShort        = "El nombre debe tener al menos 2 caracteres"
	msgLastNameRequired    = "El apellido es obligatorio para personas naturales"
	msgLegalNameRequired   = "El nombre legal es obligatorio para empresas"
	msgEmailRequired       = "El correo es obligatorio"
	msgDocumentFormat      = "El documento debe tener entre 10 y 13 dígitos"
	msgCedulaLength        = "La cédula debe tener 10 dígitos"
	msgPhoneFormat         = "El teléfono debe tener 10 dígitos"
)

var (
	documentNumberPattern = regexp.MustCompile(`^[0-9]{10,13}$`)
	phonePattern          = regexp.MustCompile(`^[0-9]{10}$`)
)

// IsValidDocumentNumber reports whether s has the 10 to 13 digits of a cédula or RUC
func IsValidDocumentNumber(s string) bool {
	return documentNumberPattern.MatchString(s)
}

// IsValidPhone reports whether s is a 10 digit phone number
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// CreateClientInput holds the fields of a new client and its identity document
type CreateClientInput struct {
	Type           models.ClientType
	Name           string
	LastName       string
	LegalName      string
	Email          string
	Phone          string
	Address        string
	DocumentType   models.DocumentType
	DocumentNumber string
}

// UpdateClientInput holds a partial update; nil fields are left unchanged and
// empty optional fields are cleared
type UpdateClientInput struct {
	Type      *models.ClientType
	Name      *string
	LastName  *string
	LegalName *string
	Email     *string
	Phone     *string
	Address   *string
}

// ClientService handles client onboarding and maintenance
type ClientService struct {
	repo      repository.ClientRepository
	storage   storage.ObjectStorage
	validator DocumentValidator
	images    *ImageService
	auditSvc  *AuditService
	metrics   *metrics.Metrics
}

func NewClientService(
	repo repository.ClientRepository,
	store storage.ObjectStorage,
	validator DocumentValidator,
	images *ImageService,
	auditSvc *AuditService,
	m *metrics.Metrics,
) *ClientService {
	return &ClientService{
		repo:      repo,
		storage:   store,
		validator: validator,
		images:    images,
		auditSvc:  auditSvc,
		metrics:   m,
	}
}

// Create registers a client together with its identity document.
//
// Checks run cheapest first and stop at the first failure. Images are uploaded
// only after every check passed; if the client cannot be persisted afterwards
// the uploaded images are deleted and the persistence error is returned.
func (s *ClientService) Create(ctx context.Context, input *CreateClientInput, front, back *storage.File) (client *models.Client, err error) {
	defer func() {
		if err != nil {
			s.metrics.IncRejected(rejectReason(err))
		}
	}()

	if front == nil || len(front.Data) == 0 {
		return nil, newError(ErrBadRequest, msgFrontImageRequired)
	}
	if back != nil && len(back.Data) == 0 {
		back = nil
	}

	// Normalise a copy; the caller's input is left as given
	normalized := *input
	normalized.Email = strings.ToLower(strings.TrimSpace(input.Email))
	normalized.DocumentNumber = strings.TrimSpace(input.DocumentNumber)
	input = &normalized
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, input.Email); err == nil {
		return nil, newError(ErrConflict, msgEmailTaken)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	front, err = s.images.Prepare(front)
	if err != nil {
		return nil, err
	}
	if back != nil {
		if back, err = s.images.Prepare(back); err != nil {
			return nil, err
		}
	}

	if existing, err := s.repo.FindDocumentByNumber(ctx, input.DocumentNumber); err == nil {
		return nil, newError(ErrConflict, documentTakenMessage(input.DocumentNumber, existing.Client))
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if input.DocumentType == models.DocumentTypeCedula {
		outcome, err := s.validator.ValidateDocument(ctx, input.DocumentNumber)
		if err != nil {
			return nil, err
		}
		if !outcome.Valid {
			return nil, newError(ErrBadRequest, outcome.Message)
		}
	}

	frontURL, err := s.storage.Upload(ctx, front, storage.DocumentsFolder)
	if err != nil {
		return nil, err
	}

	document := &models.Document{
		Type:           input.DocumentType,
		DocumentNumber: input.DocumentNumber,
		FrontImageURL:  frontURL,
	}
	if back != nil {
		backURL, err := s.storage.Upload(ctx, back, storage.DocumentsFolder)
		if err != nil {
			s.compensate(ctx, frontURL)
			return nil, err
		}
		document.BackImageURL = &backURL
	}

	client = &models.Client{
		Type:      input.Type,
		Name:      strings.TrimSpace(input.Name),
		LastName:  optionalString(input.LastName),
		LegalName: optionalString(input.LegalName),
		Email:     input.Email,
		Phone:     optionalString(input.Phone),
		Address:   optionalString(input.Address),
	}
	client.NormalizeNames()

	if err := s.repo.CreateWithDocument(ctx, client, document); err != nil {
		s.compensate(ctx, document.ImageURLs()...)
		return nil, persistError(err, input.DocumentNumber)
	}

	s.metrics.IncClientCreated()
	s.auditSvc.Log(models.AuditActionCreate, "Client", client.ID,
		fmt.Sprintf("Cliente creado: %s (%s) - Documento %s %s", client.DisplayName(), client.Email, document.Type, document.DocumentNumber))

	logger.Info("Client created", "client_id", client.ID, "type", client.Type)
	return client, nil
}

// FindAll lists clients matching query, newest first
func (s *ClientService) FindAll(ctx context.Context, query *repository.ClientQuery) ([]models.Client, error) {
	if query != nil && query.Type != "" && !query.Type.IsValid() {
		return nil, newError(ErrBadRequest, msgInvalidClientType)
	}
	return s.repo.List(ctx, query)
}

func (s *ClientService) FindOne(ctx context.Context, id string) (*models.Client, error) {
	client, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, wrapError(ErrNotFound, fmt.Sprintf("Cliente con ID %s no encontrado", id), err)
	}
	return client, err
}

// Update applies a partial update to the client's contact data
func (s *ClientService) Update(ctx context.Context, id string, input *UpdateClientInput) (*models.Client, error) {
	client, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if email == "" {
			return nil, newError(ErrBadRequest, msgEmailRequired)
		}
		if email != strings.ToLower(client.Email) {
			existing, err := s.repo.FindByEmail(ctx, email)
			if err == nil && existing.ID != client.ID {
				return nil, newError(ErrConflict, msgEmailInUse)
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
		}
		client.Email = email
	}

	if input.Type != nil {
		if !input.Type.IsValid() {
			return nil, newError(ErrBadRequest, msgInvalidClientType)
		}
		client.Type = *input.Type
	}
	if input.Name != nil {
		client.Name = strings.TrimSpace(*input.Name)
	}
	if input.LastName != nil {
		client.LastName = optionalString(*input.LastName)
	}
	if input.LegalName != nil {
		client.LegalName = optionalString(*input.LegalName)
	}
	if input.Phone != nil {
		client.Phone = optionalString(*input.Phone)
	}
	if input.Address != nil {
		client.Address = optionalString(*input.Address)
	}
	client.NormalizeNames()

	if err := validateClient(client); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, client); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, wrapError(ErrNotFound, fmt.Sprintf("Cliente con ID %s no encontrado", id), err)
		case errors.Is(err, repository.ErrDuplicate):
			return nil, wrapError(ErrConflict, msgEmailInUse, err)
		}
		return nil, err
	}

	s.auditSvc.Log(models.AuditActionUpdate, "Client", client.ID, fmt.Sprintf("Cliente actualizado: %s", client.Email))
	return client, nil
}

// Remove deletes the client, its documents and every stored image. Images are
// removed first; failures there are logged and do not stop the deletion.
func (s *ClientService) Remove(ctx context.Context, id string) (string, error) {
	client, err := s.FindOne(ctx, id)
	if err != nil {
		return "", err
	}

	for _, url := range client.ImageURLs() {
		s.storage.Delete(ctx, url)
	}

	if err := s.repo.Delete(ctx, client.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", wrapError(ErrNotFound, fmt.Sprintf("Cliente con ID %s no encontrado", id), err)
		}
		return "", err
	}

	s.auditSvc.Log(models.AuditActionDelete, "Client", client.ID, fmt.Sprintf("Cliente eliminado: %s (%s)", client.DisplayName(), client.Email))
	return msgClientDeleted, nil
}

// compensate deletes images uploaded for a registration that did not complete.
// It runs even when ctx was cancelled.
func (s *ClientService) compensate(ctx context.Context, urls ...string) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, url := range urls {
		logger.Warn("Removing uploaded image after failed registration", "url", url)
		s.storage.Delete(cleanupCtx, url)
		s.metrics.IncCompensation()
	}
}

func validateCreateInput(input *CreateClientInput) error {
	if !input.Type.IsValid() {
		return newError(ErrBadRequest, msgInvalidClientType)
	}
	if utf8.RuneCountInString(strings.TrimSpace(input.Name)) < 2 {
		return newError(ErrBadRequest, msgNameTooShort)
	}
	if input.Type == models.ClientTypeNaturalPerson && strings.TrimSpace(input.LastName) == "" {
		return newError(ErrBadRequest, msgLastNameRequired)
	}
	if input.Type == models.ClientTypeCompany && strings.TrimSpace(input.LegalName) == "" {
		return newError(ErrBadRequest, msgLegalNameRequired)
	}
	if input.Email == "" {
		return newError(ErrBadRequest, msgEmailRequired)
	}
	if input.Phone != "" && !IsValidPhone(input.Phone) {
		return newError(ErrBadRequest, msgPhoneFormat)
	}
	if !input.DocumentType.IsValid() {
		return newError(ErrBadRequest, msgInvalidDocumentType)
	}
	if !IsValidDocumentNumber(input.DocumentNumber) {
		return newError(ErrBadRequest, msgDocumentFormat)
	}
	if input.DocumentType == models.DocumentTypeCedula && len(input.DocumentNumber) != cedulaLength {
		return newError(ErrBadRequest, msgCedulaLength)
	}
	return nil
}

func validateClient(client *models.Client) error {
	if utf8.RuneCountInString(client.Name) < 2 {
		return newError(ErrBadRequest, msgNameTooShort)
	}
	if client.Type == models.ClientTypeNaturalPerson && client.LastName == nil {
		return newError(ErrBadRequest, msgLastNameRequired)
	}
	if client.Type == models.ClientTypeCompany && client.LegalName == nil {
		return newError(ErrBadRequest, msgLegalNameRequired)
	}
	if client.Phone != nil && !IsValidPhone(*client.Phone) {
		return newError(ErrBadRequest, msgPhoneFormat)
	}
	return nil
}

// persistError maps a unique violation caught by the database to a conflict,
// keeping the repository error as the cause
func persistError(err error, documentNumber string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return wrapError(ErrConflict, msgEmailTaken, err)
	case errors.Is(err, repository.ErrDuplicateDocument):
		return wrapError(ErrConflict, documentTakenMessage(documentNumber, nil), err)
	case errors.Is(err, repository.ErrDuplicate):
		return wrapError(ErrConflict, "Ya existe un cliente con estos datos", err)
	}
	return err
}

func documentTakenMessage(number string, owner *models.Client) string {
	if owner == nil {
		return fmt.Sprintf("El documento %s ya está registrado", number)
	}
	return fmt.Sprintf("El documento %s ya está registrado para el cliente %s", number, owner.DisplayName())
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrValidatorUnavailable):
		return "validator_unavailable"
	}
	return "error"
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
