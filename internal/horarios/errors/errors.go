package errors

import "errors"

var (
	ErrNotFound = errors.New("horario not found")

	ErrDuplicate = errors.New("horario with the same cancha, fecha and times already exists")

	ErrLocked = errors.New("horarios for this cancha and fecha are being modified")
)
