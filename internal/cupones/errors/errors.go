package errors

import "errors"

var (
	ErrNotFound = errors.New("cupon not found")

	ErrDuplicateCodigo = errors.New("cupon with the same codigo already exists for this centro")
)
