package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientType distinguishes natural persons from companies
type ClientType string

// Client type constants
const (
	ClientTypeNaturalPerson ClientType = "NATURAL_PERSON"
	ClientTypeCompany       ClientType = "COMPANY"
)

// IsValid reports whether t is a known client type
func (t ClientType) IsValid() bool {
	return t == ClientTypeNaturalPerson || t == ClientTypeCompany
}

// DocumentType identifies the kind of identity document
type DocumentType string

// Document type constants
const (
	DocumentTypeCedula DocumentType = "CEDULA"
	DocumentTypeRUC    DocumentType = "RUC"
)

// IsValid reports whether t is a known document type
func (t DocumentType) IsValid() bool {
	return t == DocumentTypeCedula || t == DocumentTypeRUC
}

// Client represents a natural person or company registered in the system
type Client struct {
	ID        string     `gorm:"type:uuid;primaryKey" json:"id"`
	Type      ClientType `gorm:"size:20;not null;index" json:"type"`
	Name      string     `gorm:"not null" json:"name"`
	LastName  *string    `json:"lastName,omitempty"`
	LegalName *string    `json:"legalName,omitempty"`
	Email     string     `gorm:"uniqueIndex:clients_email_key;not null" json:"email"`
	Phone     *string    `gorm:"size:20" json:"phone,omitempty"`
	Address   *string    `gorm:"type:text" json:"address,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	// Associations
	Documents []Document `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"documents"`
}

// TableName specifies the table name for Client
func (Client) TableName() string {
	return "clients"
}

// BeforeCreate assigns a UUID when the caller did not
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// DisplayName returns the name used to identify the client to other users:
// "Name LastName" for natural persons and the legal name for companies.
func (c *Client) DisplayName() string {
	if c.Type == ClientTypeCompany && c.LegalName != nil && *c.LegalName != "" {
		return *c.LegalName
	}
	if c.LastName != nil && *c.LastName != "" {
		return strings.TrimSpace(c.Name + " " + *c.LastName)
	}
	return c.Name
}

// NormalizeNames drops the name field that does not apply to the client type
func (c *Client) NormalizeNames() {
	switch c.Type {
	case ClientTypeNaturalPerson:
		c.LegalName = nil
	case ClientTypeCompany:
		c.LastName = nil
	}
}

// ImageURLs lists every stored image URL across the client's documents
func (c *Client) ImageURLs() []string {
	urls := make([]string, 0, len(c.Documents)*2)
	for _, d := range c.Documents {
		urls = append(urls, d.ImageURLs()...)
	}
	return urls
}

// Document is an identity document with its scanned images
type Document struct {
	ID             string       `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID       string       `gorm:"type:uuid;not null;index" json:"clientId"`
	Type           DocumentType `gorm:"size:10;not null" json:"type"`
	DocumentNumber string       `gorm:"size:13;uniqueIndex:documents_document_number_key;not null" json:"documentNumber"`
	FrontImageURL  string       `gorm:"column:front_image_url;type:text;not null" json:"frontImageUrl"`
	BackImageURL   *string      `gorm:"column:back_image_url;type:text" json:"backImageUrl,omitempty"`
	UploadedAt     time.Time    `gorm:"autoCreateTime" json:"uploadedAt"`

	// Associations
	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

// TableName specifies the table name for Document
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate assigns a UUID when the caller did not
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// ImageURLs returns the front image URL followed by the back one, if any
func (d *Document) ImageURLs() []string {
	urls := []string{d.FrontImageURL}
	if d.BackImageURL != nil && *d.BackImageURL != "" {
		urls = append(urls, *d.BackImageURL)
	}
	return urls
}
