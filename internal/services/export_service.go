package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/sjperalta/clients-api/internal/models"
	"github.com/xuri/excelize/v2"
)

const dateLayout = "2006-01-02 15:04"

var clientColumns = []string{"ID", "Tipo", "Nombre", "Apellido", "Razón social", "Correo", "Teléfono", "Dirección", "Tipo de documento", "Número de documento", "Fecha de registro"}

// ExportService renders client listings and records as downloadable files
type ExportService struct {
	now func() time.Time
}

func NewExportService() *ExportService {
	return &ExportService{now: time.Now}
}

func (s *ExportService) ExportClientsCSV(clients []models.Client) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(clientColumns); err != nil {
		return nil, "", err
	}
	for i := range clients {
		if err := writer.Write(clientRow(&clients[i])); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), s.filename("clientes", "csv"), nil
}

func (s *ExportService) ExportClientsXLSX(clients []models.Client) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Clientes"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	if err := f.SetSheetRow(sheet, "A1", &clientColumns); err != nil {
		return nil, "", err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(clientColumns))
	_ = f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	for i := range clients {
		row := clientRow(&clients[i])
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, "", err
		}
	}
	_ = f.SetColWidth(sheet, "A", lastCol, 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), s.filename("clientes", "xlsx"), nil
}

// ExportClientPDF renders a one-page record of the client and its documents
func (s *ExportService) ExportClientPDF(client *models.Client) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, tr("Ficha de cliente"))
	pdf.Ln(12)

	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(50, 8, tr(label+":"))
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(120, 8, tr(value))
		pdf.Ln(7)
	}

	field("Nombre", client.DisplayName())
	field("Tipo", typeLabel(client.Type))
	field("Correo", client.Email)
	field("Teléfono", deref(client.Phone))
	field("Dirección", deref(client.Address))
	field("Fecha de registro", client.CreatedAt.Format(dateLayout))
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, tr("Documentos"))
	pdf.Ln(10)

	for _, doc := range client.Documents {
		field("Tipo de documento", string(doc.Type))
		field("Número", doc.DocumentNumber)
		field("Imagen frontal", doc.FrontImageURL)
		if doc.BackImageURL != nil {
			field("Imagen posterior", *doc.BackImageURL)
		}
		pdf.Ln(4)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("cliente_%s.pdf", strings.ReplaceAll(strings.ToLower(client.Name), " ", "_"))
	return buf.Bytes(), filename, nil
}

func (s *ExportService) filename(base, ext string) string {
	return fmt.Sprintf("%s_%s.%s", base, s.now().Format("2006-01-02"), ext)
}

func clientRow(c *models.Client) []string {
	var docType, docNumber string
	if len(c.Documents) > 0 {
		docType = string(c.Documents[0].Type)
		docNumber = c.Documents[0].DocumentNumber
	}
	return []string{
		c.ID,
		typeLabel(c.Type),
		c.Name,
		deref(c.LastName),
		deref(c.LegalName),
		c.Email,
		deref(c.Phone),
		deref(c.Address),
		docType,
		docNumber,
		c.CreatedAt.Format(dateLayout),
	}
}

func typeLabel(t models.ClientType) string {
	switch t {
	case models.ClientTypeNaturalPerson:
		return "Persona natural"
	case models.ClientTypeCompany:
		return "Empresa"
	}
	return string(t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
