package validator

import (
	"canchas/pkg/logger"
	"canchas/pkg/model"
	"canchas/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type ReservaValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservaValidator(log *logger.Logger) *ReservaValidator {
	v := validation.New(log)
	log.Info("Reserva validator initialized successfully")

	return &ReservaValidator{
		validate: v,
		logger:   log,
	}
}

func (v *ReservaValidator) ValidateCreate(r *model.ReservaCreate) error {
	return validation.Struct(v.validate, r)
}

func (v *ReservaValidator) ValidateUpdate(r *model.ReservaUpdate) error {
	return validation.Struct(v.validate, r)
}

func (v *ReservaValidator) ValidateEstado(r *model.ReservaEstadoChange) error {
	return validation.Struct(v.validate, r)
}
