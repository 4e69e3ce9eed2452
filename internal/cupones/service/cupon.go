package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	cuponerrors "canchas/internal/cupones/errors"
	"canchas/internal/cupones/repository"
	"canchas/internal/cupones/validator"
	"canchas/internal/pricing"
	"canchas/pkg/cas"
	"canchas/pkg/config"
	apperrors "canchas/pkg/errors"
	"canchas/pkg/identity"
	"canchas/pkg/model"
	"canchas/pkg/sanitizer"
	"canchas/pkg/validation"

	"github.com/google/uuid"
)

// userIDRegex restricts user ids to characters that are safe inside a
// dotted document path.
var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type CuponService interface {
	Create(ctx context.Context, c *model.CuponDescuento) error
	GetByID(ctx context.Context, id string) (*model.CuponDescuento, error)
	ListByCentro(ctx context.Context, centroID string, limit int, offset int64) ([]*model.CuponDescuento, int64, error)
	Update(ctx context.Context, id string, u *model.CuponUpdate) (*model.CuponDescuento, error)
	Delete(ctx context.Context, id string) error
	Check(ctx context.Context, req *model.CuponCheck) (*model.CuponCheckResult, error)

	Resolve(ctx context.Context, centroID string, codigo string) (*model.CuponDescuento, error)
	Lookup(ctx context.Context, id string) (*model.CuponDescuento, error)
	Apply(ctx context.Context, c *model.CuponDescuento, userID string, total float64) (float64, error)
	Revert(ctx context.Context, cuponID string, userID string) error
}

type cuponService struct {
	repo      repository.CuponRepository
	validator *validator.CuponValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewCuponService(
	repo repository.CuponRepository,
	validator *validator.CuponValidator,
	cfg *config.Config,
) CuponService {
	return &cuponService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *cuponService) Create(ctx context.Context, c *model.CuponDescuento) error {
	c.CentroID = sanitizer.NormalizeID(c.CentroID)
	c.Codigo = sanitizer.NormalizeCodigo(c.Codigo)
	c.ID = uuid.New().String()
	c.UsuariosUsos = map[string]int{}

	if err := s.requireOperator(ctx, c.CentroID); err != nil {
		return err
	}

	if err := s.validator.Validate(c); err != nil {
		s.cfg.Log.Warn("Cupon validation failed",
			"centro_id", c.CentroID,
			"codigo", c.Codigo,
			"error", err,
		)
		return validation.ToAppError(err)
	}

	if err := s.ensureUniqueCode(ctx, c.CentroID, c.Codigo, ""); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		s.cfg.Log.Error("Failed to create cupon",
			"centro_id", c.CentroID,
			"codigo", c.Codigo,
			"error", err,
		)
		return s.mapError(err, c.ID)
	}

	s.cfg.Log.Info("Cupon created successfully",
		"id", c.ID,
		"centro_id", c.CentroID,
		"codigo", c.Codigo,
		"tipo_descuento", c.TipoDescuento,
	)
	return nil
}

func (s *cuponService) GetByID(ctx context.Context, id string) (*model.CuponDescuento, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Cupon ID cannot be empty")
	}

	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	if err := s.requireOperator(ctx, c.CentroID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cuponService) ListByCentro(ctx context.Context, centroID string, limit int, offset int64) ([]*model.CuponDescuento, int64, error) {
	centroID = sanitizer.NormalizeID(centroID)
	if centroID == "" {
		return nil, 0, apperrors.InvalidInput("centro_id is required")
	}
	if err := s.requireOperator(ctx, centroID); err != nil {
		return nil, 0, err
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		count            int64
		cupones          []*model.CuponDescuento
		errCount, errFnd error
		wg               sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		if count, err = s.repo.CountByCentro(ctx, centroID); err != nil {
			s.cfg.Log.Error("Failed to count cupones", "centro_id", centroID, "error", err)
			errCount = apperrors.Internal("Failed to count cupones", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		if cupones, err = s.repo.FindByCentro(ctx, centroID, limit, offset); err != nil {
			s.cfg.Log.Error("Failed to list cupones", "centro_id", centroID, "error", err)
			errFnd = apperrors.Internal("Failed to retrieve cupones", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFnd != nil {
		return nil, 0, errFnd
	}
	return cupones, count, nil
}

func (s *cuponService) Update(ctx context.Context, id string, u *model.CuponUpdate) (*model.CuponDescuento, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Cupon ID cannot be empty")
	}
	if u.Codigo != nil {
		v := sanitizer.NormalizeCodigo(*u.Codigo)
		u.Codigo = &v
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	if err := s.requireOperator(ctx, current.CentroID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUpdate(u); err != nil {
		return nil, validation.ToAppError(err)
	}

	merged := *current
	set := cas.Set{}
	if u.Codigo != nil && *u.Codigo != current.Codigo {
		if current.TotalUsos() > 0 {
			return nil, apperrors.InvalidState("Codigo cannot change once the cupon has been used")
		}
		if err := s.ensureUniqueCode(ctx, current.CentroID, *u.Codigo, id); err != nil {
			return nil, err
		}
		merged.Codigo = *u.Codigo
		set["codigo"] = merged.Codigo
	}
	if u.TipoDescuento != nil {
		merged.TipoDescuento = *u.TipoDescuento
		set["tipo_descuento"] = merged.TipoDescuento
	}
	if u.Valor != nil {
		merged.Valor = *u.Valor
		set["valor"] = merged.Valor
	}
	if u.FechaInicio != nil {
		merged.FechaInicio = u.FechaInicio.UTC()
		set["fecha_inicio"] = merged.FechaInicio
	}
	if u.FechaFin != nil {
		merged.FechaFin = u.FechaFin.UTC()
		set["fecha_fin"] = merged.FechaFin
	}
	if u.MaximoUsos != nil {
		if highest := current.MaxUsosPorUsuario(); *u.MaximoUsos < highest {
			return nil, apperrors.Conflict(fmt.Sprintf("Maximo usos cannot go below the %d uses already recorded for one user", highest)).
				WithDetails(map[string]any{"maximo_usos": *u.MaximoUsos, "usos_registrados": highest})
		}
		merged.MaximoUsos = *u.MaximoUsos
		set["maximo_usos"] = merged.MaximoUsos
	}

	if err := s.validator.Validate(&merged); err != nil {
		s.cfg.Log.Warn("Cupon validation failed", "id", id, "error", err)
		return nil, validation.ToAppError(err)
	}
	if len(set) == 0 {
		return current, nil
	}

	// Matching the version also catches a usage recorded after the read,
	// which could make the codigo immutable or exceed a lowered cap.
	if err := s.repo.CompareAndSwap(ctx, id, cas.Expect{cas.FieldVersion: current.Version}, set); err != nil {
		s.cfg.Log.Error("Failed to update cupon", "id", id, "error", err)
		return nil, s.mapError(err, id)
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	s.cfg.Log.Info("Cupon updated successfully", "id", id, "codigo", updated.Codigo)
	return updated, nil
}

// Delete removes a cupon. One with recorded usage must have expired first.
func (s *cuponService) Delete(ctx context.Context, id string) error {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return apperrors.InvalidInput("Cupon ID cannot be empty")
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapError(err, id)
	}
	if err := s.requireOperator(ctx, current.CentroID); err != nil {
		return err
	}
	if current.TotalUsos() > 0 && !current.Expired(s.now()) {
		return apperrors.Conflict("Cupon has recorded usage and can only be deleted after it expires")
	}

	if err := s.repo.Delete(ctx, id, cas.Expect{cas.FieldVersion: current.Version}); err != nil {
		s.cfg.Log.Error("Failed to delete cupon", "id", id, "error", err)
		return s.mapError(err, id)
	}

	s.cfg.Log.Info("Cupon deleted successfully", "id", id, "codigo", current.Codigo)
	return nil
}

// Check previews the discount for the caller without recording a use.
func (s *cuponService) Check(ctx context.Context, req *model.CuponCheck) (*model.CuponCheckResult, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	req.CentroID = sanitizer.NormalizeID(req.CentroID)
	req.Codigo = sanitizer.NormalizeCodigo(req.Codigo)
	if err := s.validator.ValidateCheck(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	c, err := s.Resolve(ctx, req.CentroID, req.Codigo)
	if err != nil {
		return nil, err
	}

	used, _ := c.UsosDe(caller.UserID)
	if used >= c.MaximoUsos {
		return nil, usageExhausted(c)
	}

	discount := pricing.Discount(req.Total, c)
	return &model.CuponCheckResult{
		CuponID:    c.ID,
		Codigo:     c.Codigo,
		Descuento:  pricing.Applied(req.Total, discount),
		TotalFinal: pricing.Final(req.Total, discount),
		UsosUsados: used,
		MaximoUsos: c.MaximoUsos,
	}, nil
}

// Resolve finds the cupon for (centroID, codigo) and checks it is vigente.
func (s *cuponService) Resolve(ctx context.Context, centroID string, codigo string) (*model.CuponDescuento, error) {
	codigo = sanitizer.NormalizeCodigo(codigo)

	c, err := s.repo.FindByCodigo(ctx, centroID, codigo)
	if err != nil {
		if errors.Is(err, cuponerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Cupon", codigo)
		}
		return nil, apperrors.Internal("Failed to retrieve cupon", err)
	}
	if err := s.validate(c, s.now()); err != nil {
		return nil, err
	}
	return c, nil
}

// Lookup loads a cupon without permission or vigency checks, for recomputing
// the discount of a reserva that already holds a use.
func (s *cuponService) Lookup(ctx context.Context, id string) (*model.CuponDescuento, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return c, nil
}

func (s *cuponService) validate(c *model.CuponDescuento, now time.Time) error {
	if !c.Vigente(now) {
		return apperrors.Validation(fmt.Sprintf("Cupon %s is not valid at this time", c.Codigo), map[string]any{
			"fecha_inicio": c.FechaInicio,
			"fecha_fin":    c.FechaFin,
		})
	}
	return nil
}

// Apply records one use of c by userID and returns the discount it grants on
// total. The per-user counter is incremented with a compare-and-swap on the
// value read, or on its absence for a first use, and on the cap read.
func (s *cuponService) Apply(ctx context.Context, c *model.CuponDescuento, userID string, total float64) (float64, error) {
	if !userIDRegex.MatchString(userID) {
		return 0, apperrors.InvalidInput("Invalid user ID")
	}

	current, err := s.repo.FindByID(ctx, c.ID)
	if err != nil {
		return 0, s.mapError(err, c.ID)
	}
	if err := s.validate(current, s.now()); err != nil {
		return 0, err
	}

	field := "usuarios_usos." + userID
	used, exists := current.UsosDe(userID)
	if used >= current.MaximoUsos {
		s.cfg.Log.Warn("Cupon usage limit reached",
			"cupon_id", current.ID,
			"user_id", userID,
			"usos", used,
		)
		return 0, usageExhausted(current)
	}

	// The cap read above must still hold when the increment lands.
	expect := cas.Expect{field: cas.Absent, "maximo_usos": current.MaximoUsos}
	if exists {
		expect[field] = used
	}
	if err := s.repo.CompareAndSwap(ctx, current.ID, expect, cas.Set{field: used + 1}); err != nil {
		return 0, s.mapError(err, current.ID)
	}

	discount := pricing.Discount(total, current)
	s.cfg.Log.Info("Cupon applied",
		"cupon_id", current.ID,
		"user_id", userID,
		"usos", used+1,
		"descuento", discount,
	)
	return discount, nil
}

// Revert gives back one use recorded by Apply.
func (s *cuponService) Revert(ctx context.Context, cuponID string, userID string) error {
	if !userIDRegex.MatchString(userID) {
		return apperrors.InvalidInput("Invalid user ID")
	}

	current, err := s.repo.FindByID(ctx, cuponID)
	if err != nil {
		return s.mapError(err, cuponID)
	}
	used, _ := current.UsosDe(userID)
	if used == 0 {
		return nil
	}

	field := "usuarios_usos." + userID
	if err := s.repo.CompareAndSwap(ctx, cuponID, cas.Expect{field: used}, cas.Set{field: used - 1}); err != nil {
		return s.mapError(err, cuponID)
	}

	s.cfg.Log.Info("Cupon use reverted", "cupon_id", cuponID, "user_id", userID, "usos", used-1)
	return nil
}

func (s *cuponService) ensureUniqueCode(ctx context.Context, centroID, codigo, selfID string) error {
	existing, err := s.repo.FindByCodigo(ctx, centroID, codigo)
	if err != nil {
		if errors.Is(err, cuponerrors.ErrNotFound) {
			return nil
		}
		return apperrors.Internal("Failed to check cupon codigo", err)
	}
	if existing.ID != selfID {
		return apperrors.Conflict(fmt.Sprintf("Cupon %s already exists for this centro", codigo))
	}
	return nil
}

func (s *cuponService) requireOperator(ctx context.Context, centroID string) error {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return apperrors.Unauthorized("Authentication required")
	}
	if !caller.CanOperate(centroID) {
		return apperrors.Forbidden("Only operators of the centro can manage its cupones")
	}
	return nil
}

func (s *cuponService) mapError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, cuponerrors.ErrNotFound):
		return apperrors.NotFoundWithID("Cupon", id)
	case errors.Is(err, cas.ErrConflict):
		return apperrors.ConcurrentModification("Cupon", id)
	case errors.Is(err, cuponerrors.ErrDuplicateCodigo):
		return apperrors.Conflict("Cupon with the same codigo already exists for this centro")
	default:
		return apperrors.Internal("Failed to access cupones", err)
	}
}

func usageExhausted(c *model.CuponDescuento) error {
	return apperrors.Conflict(fmt.Sprintf("Cupon %s has already been used the maximum number of times", c.Codigo)).
		WithDetails(map[string]any{"maximo_usos": c.MaximoUsos})
}
