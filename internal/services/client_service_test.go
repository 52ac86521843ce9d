package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sjperalta/clients-api/internal/metrics"
	"github.com/sjperalta/clients-api/internal/models"
	"github.com/sjperalta/clients-api/internal/repository"
	"github.com/sjperalta/clients-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClientRepo struct {
	repository.ClientRepository
	calls []string

	mockFindByID             func(ctx context.Context, id string) (*models.Client, error)
	mockFindByEmail          func(ctx context.Context, email string) (*models.Client, error)
	mockFindDocumentByNumber func(ctx context.Context, number string) (*models.Document, error)
	mockCreateWithDocument   func(ctx context.Context, client *models.Client, document *models.Document) error
	mockUpdate               func(ctx context.Context, client *models.Client) error
	mockDelete               func(ctx context.Context, id string) error
	mockList                 func(ctx context.Context, query *repository.ClientQuery) ([]models.Client, error)
}

func (m *mockClientRepo) FindByID(ctx context.Context, id string) (*models.Client, error) {
	m.calls = append(m.calls, "FindByID")
	return m.mockFindByID(ctx, id)
}

func (m *mockClientRepo) FindByEmail(ctx context.Context, email string) (*models.Client, error) {
	m.calls = append(m.calls, "FindByEmail")
	if m.mockFindByEmail == nil {
		return nil, repository.ErrNotFound
	}
	return m.mockFindByEmail(ctx, email)
}

func (m *mockClientRepo) FindDocumentByNumber(ctx context.Context, number string) (*models.Document, error) {
	m.calls = append(m.calls, "FindDocumentByNumber")
	if m.mockFindDocumentByNumber == nil {
		return nil, repository.ErrNotFound
	}
	return m.mockFindDocumentByNumber(ctx, number)
}

func (m *mockClientRepo) CreateWithDocument(ctx context.Context, client *models.Client, document *models.Document) error {
	m.calls = append(m.calls, "CreateWithDocument")
	if m.mockCreateWithDocument == nil {
		client.ID = "c0a80101-0000-4000-8000-000000000001"
		document.ClientID = client.ID
		client.Documents = []models.Document{*document}
		return nil
	}
	return m.mockCreateWithDocument(ctx, client, document)
}

func (m *mockClientRepo) Update(ctx context.Context, client *models.Client) error {
	m.calls = append(m.calls, "Update")
	if m.mockUpdate == nil {
		return nil
	}
	return m.mockUpdate(ctx, client)
}

func (m *mockClientRepo) Delete(ctx context.Context, id string) error {
	m.calls = append(m.calls, "Delete")
	if m.mockDelete == nil {
		return nil
	}
	return m.mockDelete(ctx, id)
}

func (m *mockClientRepo) List(ctx context.Context, query *repository.ClientQuery) ([]models.Client, error) {
	m.calls = append(m.calls, "List")
	return m.mockList(ctx, query)
}

type mockStorage struct {
	mu         sync.Mutex
	uploads    []string
	exts       []string
	deletes    []string
	deleteCtxs []context.Context
	failOn     map[int]error // upload index -> error
}

func (m *mockStorage) Upload(ctx context.Context, file *storage.File, folder string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.uploads)
	if err := m.failOn[idx]; err != nil {
		m.uploads = append(m.uploads, "")
		return "", err
	}
	url := fmt.Sprintf("https://s3.example.com/bucket/%s/%d-%s", folder, idx, file.Name)
	m.uploads = append(m.uploads, url)
	m.exts = append(m.exts, file.Ext())
	return url, nil
}

func (m *mockStorage) Delete(ctx context.Context, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, url)
	m.deleteCtxs = append(m.deleteCtxs, ctx)
}

type mockValidator struct {
	calls   int
	outcome ValidationOutcome
	err     error
}

func (m *mockValidator) ValidateDocument(ctx context.Context, number string) (ValidationOutcome, error) {
	m.calls++
	return m.outcome, m.err
}

type clientServiceFixture struct {
	repo      *mockClientRepo
	storage   *mockStorage
	validator *mockValidator
	metrics   *metrics.Metrics
	service   *ClientService
}

func newClientServiceFixture() *clientServiceFixture {
	f := &clientServiceFixture{
		repo:      &mockClientRepo{},
		storage:   &mockStorage{},
		validator: &mockValidator{outcome: ValidationOutcome{Valid: true, Message: msgCedulaValid}},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	f.service = NewClientService(f.repo, f.storage, f.validator, NewImageService(1024*1024, 0), nil, f.metrics)
	return f
}

func naturalPersonInput() *CreateClientInput {
	return &CreateClientInput{
		Type:           models.ClientTypeNaturalPerson,
		Name:           "Juan",
		LastName:       "Pérez",
		LegalName:      "ignored",
		Email:          "Juan@Test.com ",
		Phone:          "0987654321",
		DocumentType:   models.DocumentTypeCedula,
		DocumentNumber: "1710034065",
	}
}

func TestClientService_Create_Success(t *testing.T) {
	f := newClientServiceFixture()

	client, err := f.service.Create(context.Background(), naturalPersonInput(), pngFile(t, "front.png"), pngFile(t, "back.png"))
	require.NoError(t, err)

	assert.Equal(t, "juan@test.com", client.Email)
	assert.Nil(t, client.LegalName)
	require.NotNil(t, client.LastName)
	assert.Equal(t, "Pérez", *client.LastName)

	require.Len(t, client.Documents, 1)
	doc := client.Documents[0]
	assert.Equal(t, f.storage.uploads[0], doc.FrontImageURL)
	require.NotNil(t, doc.BackImageURL)
	assert.Equal(t, f.storage.uploads[1], *doc.BackImageURL)
	assert.Contains(t, doc.FrontImageURL, "/documents/")

	assert.Equal(t, 1, f.validator.calls)
	assert.Empty(t, f.storage.deletes)
	assert.Equal(t, []string{"FindByEmail", "FindDocumentByNumber", "CreateWithDocument"}, f.repo.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ClientsCreated))
}

func TestClientService_Create_AcceptsImagesWithoutExtension(t *testing.T) {
	f := newClientServiceFixture()
	front := &storage.File{Name: "blob", ContentType: "image/png", Data: pngBytes(t, 4, 4)}

	client, err := f.service.Create(context.Background(), naturalPersonInput(), front, nil)
	require.NoError(t, err)

	require.Len(t, client.Documents, 1)
	assert.Equal(t, []string{".png"}, f.storage.exts)
}

func TestClientService_Create_LeavesCallerInputUntouched(t *testing.T) {
	f := newClientServiceFixture()
	input := naturalPersonInput()
	input.DocumentNumber = " 1710034065 "

	client, err := f.service.Create(context.Background(), input, pngFile(t, "front.png"), nil)
	require.NoError(t, err)

	assert.Equal(t, "juan@test.com", client.Email)
	assert.Equal(t, "1710034065", client.Documents[0].DocumentNumber)
	assert.Equal(t, "Juan@Test.com ", input.Email)
	assert.Equal(t, " 1710034065 ", input.DocumentNumber)
}

func TestClientService_Create_DuplicateEmail(t *testing.T) {
	f := newClientServiceFixture()
	f.repo.mockFindByEmail = func(ctx context.Context, email string) (*models.Client, error) {
		assert.Equal(t, "juan@test.com", email)
		return &models.Client{ID: "other", Email: email}, nil
	}

	client, err := f.service.Create(context.Background(), naturalPersonInput(), pngFile(t, "front.png"), nil)

	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Ya existe un cliente con este correo electrónico", err.Error())
	assert.Empty(t, f.storage.uploads)
	assert.Zero(t, f.validator.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OnboardingRejected.WithLabelValues("conflict")))
}

func TestClientService_Create_MissingFrontImageCallsNothing(t *testing.T) {
	for name, front := range map[string]*storage.File{
		"nil":   nil,
		"empty": {Name: "front.png"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newClientServiceFixture()

			_, err := f.service.Create(context.Background(), naturalPersonInput(), front, pngFile(t, "back.png"))

			assert.ErrorIs(t, err, ErrBadRequest)
			assert.Equal(t, "La imagen frontal del documento es obligatoria", err.Error())
			assert.Empty(t, f.repo.calls)
			assert.Empty(t, f.storage.uploads)
			assert.Zero(t, f.validator.calls)
		})
	}
}

func TestClientService_Create_DocumentAlreadyRegistered(t *testing.T) {
	f := newClientServiceFixture()
	f.repo.mockFindDocumentByNumber = func(ctx context.Context, number string) (*models.Document, error) {
		lastName := "López"
		return &models.Document{
			DocumentNumber: number,
			Client:         &models.Client{Type: models.ClientTypeNaturalPerson, Name: "María", LastName: &lastName},
		}, nil
	}

	_, err := f.service.Create(context.Background(), naturalPersonInput(), pngFile(t, "front.png"), nil)

	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "María López")
	assert.Empty(t, f.storage.uploads)
	assert.Zero(t, f.validator.calls)
}

func TestClientService_Create_ValidatorUnavailablePropagates(t *testing.T) {
	f := newClientServiceFixture()
	f.validator.err = ErrValidatorUnavailable

	_, err := f.service.Create(context.Background(), naturalPersonInput(), pngFile(t, "front.png"), nil)

	assert.Same(t, ErrValidatorUnavailable, err)
	assert.Equal(t, 1, f.validator.calls)
	assert.Empty(t, f.storage.uploads)
	assert.NotContains(t, f.repo.calls, "CreateWithDocument")
}

func TestClientService_Create_InvalidCedula(t *testing.T) {
	f := newClientServiceFixture()
	f.validator.outcome = ValidationOutcome{Valid: false, Message: msgCedulaInvalid}

	_, err := f.service.Create(context.Background(), naturalPersonInput(), pngFile(t, "front.png"), nil)

	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "Cédula no válida o no encontrada en registro civil", err.Error())
	assert.Empty(t, f.storage.uploads)
}

func TestClientService_Create_RUCSkipsValidator(t *testing.T) {
	f := newClientServiceFixture()
	input := &CreateClientInput{
		Type:           models.ClientTypeCompany,
		Name:           "ACME",
		LastName:       "ignored",
		LegalName:      "Acme Ecuador S.A.",
		Email:          "ventas@acme.ec",
		DocumentType:   models.DocumentTypeRUC,
		DocumentNumber: "1790012345001",
	}

	client, err := f.service.Create(context.Background(), input, pngFile(t, "front.png"), nil)
	require.NoError(t, err)

	assert.Zero(t, f.validator.calls)
	assert.Nil(t, client.LastName)
	assert.Equal(t, "Acme Ecuador S.A.", client.DisplayName())
	assert.Len(t, f.storage.uploads, 1)
	assert.Nil(t, client.Documents[0].BackImageURL)
}

func TestClientService_Create_InputValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(in *CreateClientInput)
		message string
	}{
		{"unknown type", func(in *CreateClientInput) { in.Type = "ROBOT" }, msgInvalidClientType},
		{"short name", func(in *CreateClientInput) { in.Name = " J " }, msgNameTooShort},
		{"natural person without last name", func(in *CreateClientInput) { in.LastName = "" }, msgLastNameRequired},
		{"company without legal name", func(in *CreateClientInput) {
			in.Type = models.ClientTypeCompany
			in.LegalName = " "
		}, msgLegalNameRequired},
		{"missing email", func(in *CreateClientInput) { in.Email = "  " }, msgEmailRequired},
		{"bad phone", func(in *CreateClientInput) { in.Phone = "12345" }, msgPhoneFormat},
		{"unknown document type", func(in *CreateClientInput) { in.DocumentType = "PASSPORT" }, msgInvalidDocumentType},
		{"letters in document", func(in *CreateClientInput) { in.DocumentNumber = "17100340AB" }, msgDocumentFormat},
		{"cedula with ruc length", func(in *CreateClientInput) { in.DocumentNumber = "1710034065001" }, msgCedulaLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newClientServiceFixture()
			input := naturalPersonInput()
			tt.modify(input)

			_, err := f.service.Create(context.Background(), input, pngFile(t, "front.png"), nil)

			assert.ErrorIs(t, err, ErrBadRequest)
			assert.Equal(t, tt.message, err.Error())
			assert.Empty(t, f.repo.calls)
		})
	}
}

func TestClientService_Create_UnsupportedImage(t *testing.T) {
	f := newClientServiceFixture()

	_, err := f.service.Create(context.Background(), naturalPersonInput(), &storage.File{Name: "front.gif", Data: []byte("GIF89a")}, nil)

	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Empty(t, f.storage.uploads)
	assert.Zero(t, f.validator.calls)
}

func TestClientService_Create_BackUploadFailureDeletesFront(t *testing.T) {
	f := newClientServiceFixture()
	uploadErr := errors.New("bucket unavailable")
	f.storage.failOn = map[int]error{1: uploadErr}

	_, err := f.service.Create(context.Background(), naturalPersonInput(), pngFile(t, "front.png"), pngFile(t, "back.png"))

	assert.ErrorIs(t, err, uploadErr)
	assert.Equal(t, []string{f.storage.uploads[0]}, f.storage.deletes)
	assert.NotContains(t, f.repo.calls, "CreateWithDocument")
}

func TestClientService_Create_FrontUploadFailureDeletesNothing(t *testing.T) {
	f := newClientServiceFixture()
	uploadErr := errors.New("bucket unavailable")
	f.storage.failOn = map[int]error{0: uploadErr}

	_, err := f.service.Create(context.Background(), naturalPersonInput(), pngFile(t, "front.png"), pngFile(t, "back.png"))

	assert.ErrorIs(t, err, uploadErr)
	assert.Len(t, f.storage.uploads, 1)
	assert.Empty(t, f.storage.deletes)
}

func TestClientService_Create_PersistFailureCompensates(t *testing.T) {
	f := newClientServiceFixture()
	dbErr := errors.New("connection refused")

	// The request context is already gone when persistence fails
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.repo.mockCreateWithDocument = func(_ context.Context, client *models.Client, document *models.Document) error {
		cancel()
		return dbErr
	}

	client, err := f.service.Create(ctx, naturalPersonInput(), pngFile(t, "front.png"), pngFile(t, "back.png"))

	assert.Nil(t, client)
	assert.Same(t, dbErr, err)
	assert.ElementsMatch(t, f.storage.uploads, f.storage.deletes)
	assert.Len(t, f.storage.deletes, 2)
	for _, dctx := range f.storage.deleteCtxs {
		assert.NoError(t, dctx.Err())
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Compensations))
}

func TestClientService_Create_DuplicateAtPersistIsConflict(t *testing.T) {
	f := newClientServiceFixture()
	f.repo.mockCreateWithDocument = func(ctx context.Context, client *models.Client, document *models.Document) error {
		return repository.ErrDuplicateDocument
	}

	_, err := f.service.Create(context.Background(), naturalPersonInput(), pngFile(t, "front.png"), nil)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, repository.ErrDuplicateDocument)
	assert.Contains(t, err.Error(), "1710034065")
	assert.Equal(t, f.storage.uploads, f.storage.deletes)
}

func TestClientService_FindOne_NotFound(t *testing.T) {
	f := newClientServiceFixture()
	f.repo.mockFindByID = func(ctx context.Context, id string) (*models.Client, error) {
		return nil, repository.ErrNotFound
	}

	_, err := f.service.FindOne(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Cliente con ID abc no encontrado", err.Error())
}

func TestClientService_FindAll_RejectsUnknownType(t *testing.T) {
	f := newClientServiceFixture()

	_, err := f.service.FindAll(context.Background(), &repository.ClientQuery{Type: "ROBOT"})
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Empty(t, f.repo.calls)
}

func existingClient() *models.Client {
	lastName := "Pérez"
	back := "https://s3.example.com/bucket/documents/back.png"
	return &models.Client{
		ID:       "c0a80101-0000-4000-8000-000000000001",
		Type:     models.ClientTypeNaturalPerson,
		Name:     "Juan",
		LastName: &lastName,
		Email:    "juan@test.com",
		Documents: []models.Document{{
			DocumentNumber: "1710034065",
			FrontImageURL:  "https://s3.example.com/bucket/documents/front.png",
			BackImageURL:   &back,
		}},
	}
}

func TestClientService_Update(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	t.Run("email used by another client", func(t *testing.T) {
		f := newClientServiceFixture()
		f.repo.mockFindByID = func(ctx context.Context, id string) (*models.Client, error) { return existingClient(), nil }
		f.repo.mockFindByEmail = func(ctx context.Context, email string) (*models.Client, error) {
			return &models.Client{ID: "someone-else", Email: email}, nil
		}

		_, err := f.service.Update(context.Background(), "id", &UpdateClientInput{Email: strPtr("ana@test.com")})
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "El correo electrónico ya está en uso por otro cliente", err.Error())
		assert.NotContains(t, f.repo.calls, "Update")
	})

	t.Run("same email skips the lookup", func(t *testing.T) {
		f := newClientServiceFixture()
		f.repo.mockFindByID = func(ctx context.Context, id string) (*models.Client, error) { return existingClient(), nil }

		client, err := f.service.Update(context.Background(), "id", &UpdateClientInput{
			Email: strPtr("JUAN@test.com"),
			Phone: strPtr("0999999999"),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"FindByID", "Update"}, f.repo.calls)
		assert.Equal(t, "0999999999", *client.Phone)
	})

	t.Run("switching to company requires a legal name", func(t *testing.T) {
		f := newClientServiceFixture()
		f.repo.mockFindByID = func(ctx context.Context, id string) (*models.Client, error) { return existingClient(), nil }
		company := models.ClientTypeCompany

		_, err := f.service.Update(context.Background(), "id", &UpdateClientInput{Type: &company})
		assert.ErrorIs(t, err, ErrBadRequest)

		client, err := f.service.Update(context.Background(), "id", &UpdateClientInput{Type: &company, LegalName: strPtr("Pérez Cía. Ltda.")})
		require.NoError(t, err)
		assert.Nil(t, client.LastName)
		assert.Equal(t, "Pérez Cía. Ltda.", client.DisplayName())
	})

	t.Run("missing client", func(t *testing.T) {
		f := newClientServiceFixture()
		f.repo.mockFindByID = func(ctx context.Context, id string) (*models.Client, error) { return nil, repository.ErrNotFound }

		_, err := f.service.Update(context.Background(), "id", &UpdateClientInput{Name: strPtr("Pedro")})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestClientService_Remove(t *testing.T) {
	f := newClientServiceFixture()
	f.repo.mockFindByID = func(ctx context.Context, id string) (*models.Client, error) { return existingClient(), nil }

	msg, err := f.service.Remove(context.Background(), "id")
	require.NoError(t, err)

	assert.Equal(t, "Cliente eliminado exitosamente", msg)
	assert.Equal(t, []string{
		"https://s3.example.com/bucket/documents/front.png",
		"https://s3.example.com/bucket/documents/back.png",
	}, f.storage.deletes)
	assert.Equal(t, []string{"FindByID", "Delete"}, f.repo.calls)
}

func TestError_UnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := wrapError(ErrConflict, "ya existe", cause)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "ya existe", err.Error())

	var svcErr *Error
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &svcErr))
	assert.Equal(t, "ya existe", svcErr.Message)
}
