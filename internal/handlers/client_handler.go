package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sjperalta/clients-api/internal/models"
	"github.com/sjperalta/clients-api/internal/repository"
	"github.com/sjperalta/clients-api/internal/services"
	"github.com/sjperalta/clients-api/internal/storage"
	"github.com/sjperalta/clients-api/pkg/logger"
)

const (
	msgCedulaLength    = "Número de cédula debe tener 10 dígitos"
	msgInvalidClientID = "ID de cliente inválido"
	msgImageType       = "Solo se permiten imágenes JPG o PNG"
)

type ClientHandler struct {
	clientService *services.ClientService
	validator     services.DocumentValidator
	exportService *services.ExportService
	maxUpload     int64
}

func NewClientHandler(clientService *services.ClientService, validator services.DocumentValidator, exportService *services.ExportService, maxUpload int64) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		validator:     validator,
		exportService: exportService,
		maxUpload:     maxUpload,
	}
}

type ValidateCedulaRequest struct {
	DocumentNumber string `json:"documentNumber" example:"1710034065"`
}

type ValidateCedulaResponse struct {
	Success bool   `json:"success"`
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// @Summary Validate Cédula
// @Description Checks a cédula against the civil registry. The registry fails often; failures are reported with success=false.
// @Tags Clients
// @Accept json
// @Produce json
// @Param request body ValidateCedulaRequest true "Document number"
// @Success 200 {object} ValidateCedulaResponse
// @Failure 400 {object} map[string]string
// @Router /clients/validate-cedula [post]
func (h *ClientHandler) ValidateCedula(c *gin.Context) {
	var req ValidateCedulaRequest
	if err := c.ShouldBindJSON(&req); err != nil || !isTenDigits(req.DocumentNumber) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgCedulaLength})
		return
	}

	outcome, err := h.validator.ValidateDocument(c.Request.Context(), req.DocumentNumber)
	if err != nil {
		if !services.IsValidatorUnavailable(err) {
			logger.Warn("Cédula validation aborted", "error", err)
		}
		c.JSON(http.StatusOK, ValidateCedulaResponse{
			Success: false,
			Valid:   false,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ValidateCedulaResponse{
		Success: true,
		Valid:   outcome.Valid,
		Message: outcome.Message,
	})
}

type CreateClientRequest struct {
	Type           string `form:"type" binding:"required,oneof=NATURAL_PERSON COMPANY"`
	Name           string `form:"name" binding:"required,min=2"`
	LastName       string `form:"lastName" binding:"required_if=Type NATURAL_PERSON"`
	LegalName      string `form:"legalName" binding:"required_if=Type COMPANY"`
	Email          string `form:"email" binding:"required,email"`
	Phone          string `form:"phone" binding:"omitempty,phone10"`
	Address        string `form:"address"`
	DocumentType   string `form:"documentType" binding:"required,oneof=CEDULA RUC"`
	DocumentNumber string `form:"documentNumber" binding:"required,docnumber"`
}

// @Summary Create Client
// @Description Registers a client with its identity document images
// @Tags Clients
// @Accept multipart/form-data
// @Produce json
// @Param type formData string true "NATURAL_PERSON or COMPANY"
// @Param name formData string true "Name"
// @Param lastName formData string false "Last name (natural persons)"
// @Param legalName formData string false "Legal name (companies)"
// @Param email formData string true "Email"
// @Param phone formData string false "Phone, 10 digits"
// @Param address formData string false "Address"
// @Param documentType formData string true "CEDULA or RUC"
// @Param documentNumber formData string true "Document number"
// @Param frontImage formData file true "Front image (JPG/PNG)"
// @Param backImage formData file false "Back image (JPG/PNG)"
// @Success 201 {object} models.Client
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /clients [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	front, err := h.readImage(c, "frontImage")
	if err != nil {
		respondError(c, err)
		return
	}
	back, err := h.readImage(c, "backImage")
	if err != nil {
		respondError(c, err)
		return
	}

	input := &services.CreateClientInput{
		Type:           models.ClientType(req.Type),
		Name:           req.Name,
		LastName:       req.LastName,
		LegalName:      req.LegalName,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		DocumentType:   models.DocumentType(req.DocumentType),
		DocumentNumber: req.DocumentNumber,
	}

	client, err := h.clientService.Create(c.Request.Context(), input, front, back)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// @Summary List Clients
// @Description Lists clients, newest first
// @Tags Clients
// @Produce json
// @Param search query string false "Search by name, last name, legal name, email or document number"
// @Param type query string false "NATURAL_PERSON or COMPANY"
// @Success 200 {array} models.Client
// @Router /clients [get]
func (h *ClientHandler) Index(c *gin.Context) {
	clients, err := h.clientService.FindAll(c.Request.Context(), listQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// @Summary Get Client
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID (UUID)"
// @Success 200 {object} models.Client
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /clients/{id} [get]
func (h *ClientHandler) Show(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	client, err := h.clientService.FindOne(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

type UpdateClientRequest struct {
	Type      *string `json:"type" binding:"omitempty,oneof=NATURAL_PERSON COMPANY"`
	Name      *string `json:"name" binding:"omitempty,min=2"`
	LastName  *string `json:"lastName"`
	LegalName *string `json:"legalName"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone" binding:"omitempty,phone10"`
	Address   *string `json:"address"`
}

// @Summary Update Client
// @Description Partially updates a client's contact data
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID (UUID)"
// @Param request body UpdateClientRequest true "Fields to change"
// @Success 200 {object} models.Client
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /clients/{id} [patch]
func (h *ClientHandler) Update(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}

	var req UpdateClientRequest
	if err := BindNestedOrFlat(c, "client", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	input := &services.UpdateClientInput{
		Name:      req.Name,
		LastName:  req.LastName,
		LegalName: req.LegalName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
	}
	if req.Type != nil {
		t := models.ClientType(*req.Type)
		input.Type = &t
	}

	client, err := h.clientService.Update(c.Request.Context(), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// @Summary Delete Client
// @Description Deletes a client, its documents and their stored images
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID (UUID)"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /clients/{id} [delete]
func (h *ClientHandler) Delete(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	msg, err := h.clientService.Remove(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// @Summary Export Clients
// @Description Downloads the client list as XLSX (default) or CSV
// @Tags Clients
// @Produce application/octet-stream
// @Param format query string false "xlsx or csv" default(xlsx)
// @Param search query string false "Search filter"
// @Param type query string false "NATURAL_PERSON or COMPANY"
// @Success 200 {file} file
// @Router /clients/export [get]
func (h *ClientHandler) Export(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "xlsx"))
	if format != "xlsx" && format != "csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato no soportado (xlsx o csv)"})
		return
	}

	clients, err := h.clientService.FindAll(c.Request.Context(), listQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}

	var (
		data        []byte
		filename    string
		contentType string
	)
	if format == "csv" {
		data, filename, err = h.exportService.ExportClientsCSV(clients)
		contentType = "text/csv"
	} else {
		data, filename, err = h.exportService.ExportClientsXLSX(clients)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, data)
}

// @Summary Client Record PDF
// @Tags Clients
// @Produce application/pdf
// @Param id path string true "Client ID (UUID)"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /clients/{id}/pdf [get]
func (h *ClientHandler) PDF(c *gin.Context) {
	id, ok := clientID(c)
	if !ok {
		return
	}
	client, err := h.clientService.FindOne(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	data, filename, err := h.exportService.ExportClientPDF(client)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

// readImage loads an optional multipart image; a missing field yields nil
func (h *ClientHandler) readImage(c *gin.Context, field string) (*storage.File, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &services.Error{Kind: services.ErrBadRequest, Message: "No se pudo leer la imagen " + field, Err: err}
	}

	if h.maxUpload > 0 && header.Size > h.maxUpload {
		return nil, &services.Error{
			Kind:    services.ErrBadRequest,
			Message: fmt.Sprintf("La imagen %s excede el tamaño máximo de %d MB", header.Filename, h.maxUpload/(1024*1024)),
		}
	}

	contentType := header.Header.Get("Content-Type")
	if !storage.IsValidContentType(contentType) {
		return nil, &services.Error{Kind: services.ErrBadRequest, Message: msgImageType}
	}

	data, err := readAll(header)
	if err != nil {
		return nil, err
	}
	return &storage.File{Name: header.Filename, ContentType: contentType, Data: data}, nil
}

func readAll(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func listQuery(c *gin.Context) *repository.ClientQuery {
	return &repository.ClientQuery{
		Search: strings.TrimSpace(c.Query("search")),
		Type:   models.ClientType(c.Query("type")),
	}
}

// clientID validates the :id path parameter, writing a 400 when it is not a UUID
func clientID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidClientID})
		return "", false
	}
	return id.String(), true
}

func isTenDigits(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
