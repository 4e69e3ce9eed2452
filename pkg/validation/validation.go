// Package validation holds the field-level validation shared by the horario,
// reserva and cupon validators: the custom tags for dates, times of day and
// coupon codes, and the translation of validator errors into API messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	apperrors "canchas/pkg/errors"
	"canchas/pkg/logger"
	"canchas/pkg/model"

	"github.com/go-playground/validator/v10"
)

var codigoRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{2,39}$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// New returns a validator with the domain tags registered. Field names in
// errors follow the json tags.
func New(log *logger.Logger) *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	tags := map[string]validator.Func{
		"fecha":           validateFecha,
		"hora":            validateHora,
		"hora_after":      validateHoraAfter,
		"codigo":          validateCodigo,
		"valor_descuento": validateValorDescuento,
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatal("Failed to register validator", "tag", tag, "error", err)
		}
	}

	return v
}

func validateFecha(fl validator.FieldLevel) bool {
	_, err := model.ParseFecha(fl.Field().String())
	return err == nil
}

func validateHora(fl validator.FieldLevel) bool {
	_, err := model.ParseHora(fl.Field().String())
	return err == nil
}

// validateHoraAfter checks that the field is a later time of day than the
// sibling field named in the param.
func validateHoraAfter(fl validator.FieldLevel) bool {
	other := fl.Parent().FieldByName(fl.Param())
	if !other.IsValid() || other.Kind() != reflect.String {
		return false
	}
	_, err := model.NewInterval(other.String(), fl.Field().String())
	return err == nil
}

func validateCodigo(fl validator.FieldLevel) bool {
	return codigoRegex.MatchString(fl.Field().String())
}

// validateValorDescuento caps percentage discounts at 100.
func validateValorDescuento(fl validator.FieldLevel) bool {
	tipo := fl.Parent().FieldByName("TipoDescuento")
	if tipo.IsValid() && model.TipoDescuento(tipo.String()) == model.DescuentoPorcentaje {
		return fl.Field().Float() <= 100
	}
	return true
}

// Struct validates s and returns ValidationErrors for field failures.
func Struct(v *validator.Validate, s any) error {
	if err := v.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return Translate(validationErrs)
		}
		return err
	}
	return nil
}

func Translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gt", "gte":
			message = fmt.Sprintf("%s must be greater than %s%s", err.Field(), orEqual(err.Tag()), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "unique":
			message = fmt.Sprintf("%s must not contain duplicates", err.Field())
		case "fecha":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "hora":
			message = fmt.Sprintf("%s must be a time of day in HH:MM 24-hour format", err.Field())
		case "hora_after":
			message = "hora_fin must be after hora_inicio"
		case "codigo":
			message = "codigo must be 3-40 upper-case letters, digits, '-' or '_'"
		case "valor_descuento":
			message = "valor must be at most 100 for percentage discounts"
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

func orEqual(tag string) string {
	if tag == "gte" {
		return "or equal to "
	}
	return ""
}

// ToAppError converts a validation failure into a VALIDATION_ERROR AppError
// listing every field problem.
func ToAppError(err error) error {
	if err == nil {
		return nil
	}
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(verrs.Error(), map[string]any{"errors": verrs})
	}
	var verr ValidationError
	if errors.As(err, &verr) {
		return apperrors.Validation(verr.Message, map[string]any{"field": verr.Field})
	}
	return apperrors.Validation(err.Error(), nil)
}
