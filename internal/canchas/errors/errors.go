package errors

import "errors"

var ErrNotFound = errors.New("cancha not found")
