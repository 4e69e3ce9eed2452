package validator

import (
	"canchas/pkg/logger"
	"canchas/pkg/model"
	"canchas/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type HorarioValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewHorarioValidator(log *logger.Logger) *HorarioValidator {
	v := validation.New(log)
	log.Info("Horario validator initialized successfully")

	return &HorarioValidator{
		validate: v,
		logger:   log,
	}
}

func (v *HorarioValidator) Validate(h *model.Horario) error {
	return validation.Struct(v.validate, h)
}

// ValidateUpdate checks the individual fields and, once merged with the
// current record, the resulting time range.
func (v *HorarioValidator) ValidateUpdate(u *model.HorarioUpdate, current *model.Horario) error {
	if err := validation.Struct(v.validate, u); err != nil {
		return err
	}
	inicio, fin := current.HoraInicio, current.HoraFin
	if u.HoraInicio != nil {
		inicio = *u.HoraInicio
	}
	if u.HoraFin != nil {
		fin = *u.HoraFin
	}
	if _, err := model.NewInterval(inicio, fin); err != nil {
		return validation.ValidationErrors{{Field: "hora_fin", Message: "hora_fin must be after hora_inicio"}}
	}
	return nil
}
