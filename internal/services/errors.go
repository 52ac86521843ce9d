package services

import "errors"

// Error kinds. Handlers map each kind to an HTTP status.
var (
	ErrNotFound             = errors.New("registro no encontrado")
	ErrConflict             = errors.New("conflicto con un registro existente")
	ErrBadRequest           = errors.New("solicitud inválida")
	ErrValidatorUnavailable = errors.New("Servicio de validación no disponible temporalmente. Intente nuevamente.")
)

// Error carries a user-facing message together with its kind.
// errors.Is matches both Kind and the underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}
