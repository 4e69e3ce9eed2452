package errors

import "errors"

var (
	ErrNotFound = errors.New("reserva not found")

	ErrDuplicate = errors.New("reserva already exists")
)
