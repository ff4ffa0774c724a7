// Package faults clasifica los errores de los consumidores para decidir
// reintento, dead-letter y compensación por parte del dueño del evento.
package faults

import (
	"errors"
	"fmt"
)

type Reason string

const (
	// ReasonValidation: el evento tiene un valor que el consumidor rechaza.
	// El dueño puede corregirlo y volver a publicarlo.
	ReasonValidation Reason = "validation"
	// ReasonMalformed: el mensaje no se puede decodificar. No se reintenta.
	ReasonMalformed Reason = "malformed"
	// ReasonUnknown: error sin clasificar, solo acaba en dead-letter.
	ReasonUnknown Reason = "unknown"
)

// Error es un fallo clasificado de un consumidor.
type Error struct {
	Reason Reason
	Field  string
	Err    error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s fault on %q: %v", e.Reason, e.Field, e.Err)
	}
	return fmt.Sprintf("%s fault: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field string, err error) error {
	return &Error{Reason: ReasonValidation, Field: field, Err: err}
}

func Malformed(err error) error {
	return &Error{Reason: ReasonMalformed, Err: err}
}

// Classify extrae el fallo clasificado de una cadena de errores.
func Classify(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ReasonOf devuelve la razón de un error, ReasonUnknown si no está clasificado.
func ReasonOf(err error) Reason {
	if fe, ok := Classify(err); ok {
		return fe.Reason
	}
	return ReasonUnknown
}

// IsPermanent indica que reintentar no tiene sentido.
func IsPermanent(err error) bool {
	return ReasonOf(err) == ReasonMalformed
}

// IsCompensable indica que el dueño del evento debe recibir un Fault.
func IsCompensable(err error) bool {
	return ReasonOf(err) == ReasonValidation
}
