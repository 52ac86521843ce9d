package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestClient_DisplayName(t *testing.T) {
	tests := []struct {
		name   string
		client Client
		want   string
	}{
		{
			name:   "natural person with last name",
			client: Client{Type: ClientTypeNaturalPerson, Name: "Juan", LastName: strPtr("Pérez")},
			want:   "Juan Pérez",
		},
		{
			name:   "company uses legal name",
			client: Client{Type: ClientTypeCompany, Name: "ACME", LegalName: strPtr("Acme S.A.")},
			want:   "Acme S.A.",
		},
		{
			name:   "company without legal name falls back to name",
			client: Client{Type: ClientTypeCompany, Name: "ACME"},
			want:   "ACME",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.client.DisplayName())
		})
	}
}

func TestClient_NormalizeNames(t *testing.T) {
	person := Client{Type: ClientTypeNaturalPerson, LastName: strPtr("Pérez"), LegalName: strPtr("X")}
	person.NormalizeNames()
	assert.Nil(t, person.LegalName)
	assert.NotNil(t, person.LastName)

	company := Client{Type: ClientTypeCompany, LastName: strPtr("Pérez"), LegalName: strPtr("X")}
	company.NormalizeNames()
	assert.Nil(t, company.LastName)
	assert.NotNil(t, company.LegalName)
}

func TestClient_ImageURLs(t *testing.T) {
	c := Client{Documents: []Document{
		{FrontImageURL: "https://s3/front-1.jpg", BackImageURL: strPtr("https://s3/back-1.jpg")},
		{FrontImageURL: "https://s3/front-2.jpg"},
		{FrontImageURL: "https://s3/front-3.jpg", BackImageURL: strPtr("")},
	}}

	assert.Equal(t, []string{
		"https://s3/front-1.jpg",
		"https://s3/back-1.jpg",
		"https://s3/front-2.jpg",
		"https://s3/front-3.jpg",
	}, c.ImageURLs())
}

func TestTypesValidity(t *testing.T) {
	assert.True(t, ClientTypeCompany.IsValid())
	assert.False(t, ClientType("PERSON").IsValid())
	assert.True(t, DocumentTypeRUC.IsValid())
	assert.False(t, DocumentType("PASSPORT").IsValid())
}
