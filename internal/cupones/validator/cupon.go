package validator

import (
	"canchas/pkg/logger"
	"canchas/pkg/model"
	"canchas/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type CuponValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewCuponValidator(log *logger.Logger) *CuponValidator {
	v := validation.New(log)
	log.Info("Cupon validator initialized successfully")

	return &CuponValidator{
		validate: v,
		logger:   log,
	}
}

func (v *CuponValidator) Validate(c *model.CuponDescuento) error {
	return validation.Struct(v.validate, c)
}

func (v *CuponValidator) ValidateUpdate(u *model.CuponUpdate) error {
	return validation.Struct(v.validate, u)
}

func (v *CuponValidator) ValidateCheck(c *model.CuponCheck) error {
	return validation.Struct(v.validate, c)
}
