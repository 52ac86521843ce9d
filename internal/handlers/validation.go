package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sjperalta/clients-api/internal/services"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("docnumber", func(fl validator.FieldLevel) bool {
			return services.IsValidDocumentNumber(fl.Field().String())
		})
		_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
			return services.IsValidPhone(fl.Field().String())
		})
	})
}

// fieldName reports fields by the name clients send them with
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

var validationMessages = map[string]string{
	"type.required":            "El tipo de cliente es obligatorio",
	"type.oneof":               "El tipo debe ser NATURAL_PERSON o COMPANY",
	"name.required":            "El nombre es obligatorio",
	"name.min":                 "El nombre debe tener al menos 2 caracteres",
	"lastName.required_if":     "El apellido es obligatorio para personas naturales",
	"legalName.required_if":    "El nombre legal es obligatorio para empresas",
	"email.required":           "El correo es obligatorio",
	"email.email":              "Debe ser un correo electrónico válido",
	"phone.phone10":            "El teléfono debe tener 10 dígitos",
	"documentType.required":    "El tipo de documento es obligatorio",
	"documentType.oneof":       "El tipo de documento debe ser CEDULA o RUC",
	"documentNumber.required":  "El número de documento es obligatorio",
	"documentNumber.docnumber": "El documento debe tener entre 10 y 13 dígitos",
}

// validationMessage turns a binding error into a message for the client
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Datos de solicitud inválidos"
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := validationMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("El campo %s no es válido", fe.Field())
		}
		messages = append(messages, msg)
	}
	return strings.Join(messages, "; ")
}
