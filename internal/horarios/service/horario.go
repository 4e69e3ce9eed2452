package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	canchaerrors "canchas/internal/canchas/errors"
	canchasrepo "canchas/internal/canchas/repository"
	horarioerrors "canchas/internal/horarios/errors"
	"canchas/internal/horarios/repository"
	"canchas/internal/horarios/validator"
	"canchas/pkg/cas"
	"canchas/pkg/config"
	apperrors "canchas/pkg/errors"
	"canchas/pkg/identity"
	"canchas/pkg/model"
	"canchas/pkg/sanitizer"
	"canchas/pkg/validation"

	"github.com/google/uuid"
)

const dayLockTTL = 10 * time.Second

type HorarioService interface {
	Create(ctx context.Context, h *model.Horario) error
	BulkCreate(ctx context.Context, horarios []*model.Horario) (*model.BulkResult, error)
	GetByID(ctx context.Context, id string) (*model.Horario, error)
	GetMany(ctx context.Context, ids []string) ([]*model.Horario, error)
	List(ctx context.Context, canchaID string, fecha string) ([]*model.Horario, error)
	Update(ctx context.Context, id string, u *model.HorarioUpdate) (*model.Horario, error)
	Delete(ctx context.Context, id string) error

	ClaimForReservation(ctx context.Context, id string, reservaID string) error
	Release(ctx context.Context, id string, reservaID string) (bool, error)
	MarkPaid(ctx context.Context, id string, reservaID string) error
	RevertPaid(ctx context.Context, id string, reservaID string) error
}

type horarioService struct {
	repo      repository.HorarioRepository
	locks     repository.DayLockRepository
	canchas   canchasrepo.CanchaRepository
	validator *validator.HorarioValidator
	cfg       *config.Config
}

func NewHorarioService(
	repo repository.HorarioRepository,
	locks repository.DayLockRepository,
	canchas canchasrepo.CanchaRepository,
	validator *validator.HorarioValidator,
	cfg *config.Config,
) HorarioService {
	return &horarioService{
		repo:      repo,
		locks:     locks,
		canchas:   canchas,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *horarioService) Create(ctx context.Context, h *model.Horario) error {
	s.sanitize(h)
	if err := s.prepareNew(h); err != nil {
		s.cfg.Log.Warn("Horario validation failed",
			"cancha_id", h.CanchaID,
			"fecha", h.Fecha,
			"error", err,
		)
		return err
	}

	if _, err := s.requireOperator(ctx, h.CanchaID); err != nil {
		return err
	}

	interval, _ := h.Interval()
	err := s.withDayLock(ctx, h.CanchaID, h.Fecha, func() error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			siblings, err := s.repo.FindByCanchaAndFecha(txCtx, h.CanchaID, h.Fecha)
			if err != nil {
				return apperrors.Internal("Failed to check for overlapping horarios", err)
			}
			if other := findOverlap(interval, siblings, ""); other != nil {
				return overlapConflict(other)
			}
			if err := s.repo.Create(txCtx, h); err != nil {
				return s.mapError(err, h.ID)
			}
			return nil
		})
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create horario",
			"cancha_id", h.CanchaID,
			"fecha", h.Fecha,
			"hora_inicio", h.HoraInicio,
			"hora_fin", h.HoraFin,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Horario created successfully",
		"id", h.ID,
		"cancha_id", h.CanchaID,
		"fecha", h.Fecha,
		"hora_inicio", h.HoraInicio,
		"hora_fin", h.HoraFin,
	)
	return nil
}

type groupKey struct {
	canchaID string
	fecha    string
}

type bulkEntry struct {
	index    int
	horario  *model.Horario
	interval model.Interval
}

// BulkCreate classifies every entry independently as created, duplicate or
// error. Entries are processed in submission order inside each
// (cancha, fecha) group; the first of two overlapping entries wins.
func (s *horarioService) BulkCreate(ctx context.Context, horarios []*model.Horario) (*model.BulkResult, error) {
	if len(horarios) == 0 {
		return nil, apperrors.Validation("At least one horario is required", nil)
	}
	if len(horarios) > config.DefaultBulkCreateLimit {
		return nil, apperrors.Validation(
			fmt.Sprintf("At most %d horarios can be created at once", config.DefaultBulkCreateLimit), nil)
	}
	if _, ok := identity.FromContext(ctx); !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	result := &model.BulkResult{
		Created:    []*model.Horario{},
		Duplicates: []model.BulkEntryError{},
		Errors:     []model.BulkEntryError{},
	}

	groups := map[groupKey][]bulkEntry{}
	var order []groupKey
	for i, h := range horarios {
		if h == nil {
			result.Errors = append(result.Errors, entryError(i, nil, apperrors.Validation("Horario is empty", nil)))
			continue
		}
		s.sanitize(h)
		if err := s.prepareNew(h); err != nil {
			result.Errors = append(result.Errors, entryError(i, h, err))
			continue
		}
		interval, _ := h.Interval()
		key := groupKey{canchaID: h.CanchaID, fecha: h.Fecha}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], bulkEntry{index: i, horario: h, interval: interval})
	}

	for _, key := range order {
		s.bulkCreateGroup(ctx, key, groups[key], result)
	}

	s.cfg.Log.Info("Horario bulk create finished",
		"submitted", len(horarios),
		"created", len(result.Created),
		"duplicates", len(result.Duplicates),
		"errors", len(result.Errors),
	)
	return result, nil
}

func (s *horarioService) bulkCreateGroup(ctx context.Context, key groupKey, entries []bulkEntry, result *model.BulkResult) {
	failAll := func(err error) {
		for _, e := range entries {
			result.Errors = append(result.Errors, entryError(e.index, e.horario, err))
		}
	}

	if _, err := s.requireOperator(ctx, key.canchaID); err != nil {
		failAll(err)
		return
	}

	err := s.withDayLock(ctx, key.canchaID, key.fecha, func() error {
		existing, err := s.repo.FindByCanchaAndFecha(ctx, key.canchaID, key.fecha)
		if err != nil {
			return apperrors.Internal("Failed to check for overlapping horarios", err)
		}

		var accepted []*model.Horario
		for _, e := range entries {
			h := e.horario
			if dup := findExact(h, accepted); dup != nil {
				result.Duplicates = append(result.Duplicates, entryError(e.index, h,
					apperrors.Conflict("Duplicates another entry in the same request")))
				continue
			}
			if other := findOverlap(e.interval, accepted, ""); other != nil {
				result.Errors = append(result.Errors, entryError(e.index, h,
					apperrors.Conflict(fmt.Sprintf("Overlaps %s-%s in the same request", other.HoraInicio, other.HoraFin))))
				continue
			}
			if dup := findExact(h, existing); dup != nil {
				result.Duplicates = append(result.Duplicates, entryError(e.index, h,
					apperrors.Conflict(fmt.Sprintf("Horario already exists with id %s", dup.ID))))
				continue
			}
			if other := findOverlap(e.interval, existing, ""); other != nil {
				result.Errors = append(result.Errors, entryError(e.index, h, overlapConflict(other)))
				continue
			}

			if err := s.repo.Create(ctx, h); err != nil {
				if errors.Is(err, horarioerrors.ErrDuplicate) {
					result.Duplicates = append(result.Duplicates, entryError(e.index, h,
						apperrors.Conflict("Horario already exists")))
					continue
				}
				s.cfg.Log.Error("Failed to create horario in bulk",
					"cancha_id", h.CanchaID,
					"fecha", h.Fecha,
					"error", err,
				)
				result.Errors = append(result.Errors, entryError(e.index, h, apperrors.Internal("Failed to create horario", err)))
				continue
			}
			accepted = append(accepted, h)
			result.Created = append(result.Created, h)
		}
		return nil
	})
	if err != nil {
		failAll(err)
	}
}

func (s *horarioService) GetByID(ctx context.Context, id string) (*model.Horario, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Horario ID cannot be empty")
	}

	h, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return h, nil
}

// GetMany returns the horarios in the order of ids. A missing id is a
// NotFound error.
func (s *horarioService) GetMany(ctx context.Context, ids []string) ([]*model.Horario, error) {
	ids = sanitizer.NormalizeIDs(ids)
	if len(ids) == 0 {
		return nil, apperrors.InvalidInput("At least one horario ID is required")
	}

	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, s.mapError(err, "")
	}
	byID := make(map[string]*model.Horario, len(found))
	for _, h := range found {
		byID[h.ID] = h
	}

	horarios := make([]*model.Horario, 0, len(ids))
	for _, id := range ids {
		h, ok := byID[id]
		if !ok {
			return nil, apperrors.NotFoundWithID("Horario", id)
		}
		horarios = append(horarios, h)
	}
	return horarios, nil
}

func (s *horarioService) List(ctx context.Context, canchaID string, fecha string) ([]*model.Horario, error) {
	canchaID = sanitizer.NormalizeID(canchaID)
	fecha = sanitizer.NormalizeFecha(fecha)
	if canchaID == "" || fecha == "" {
		return nil, apperrors.InvalidInput("cancha_id and fecha are required")
	}
	if _, err := model.ParseFecha(fecha); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	horarios, err := s.repo.FindByCanchaAndFecha(ctx, canchaID, fecha)
	if err != nil {
		s.cfg.Log.Error("Failed to list horarios",
			"cancha_id", canchaID,
			"fecha", fecha,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve horarios", err)
	}
	return horarios, nil
}

func (s *horarioService) Update(ctx context.Context, id string, u *model.HorarioUpdate) (*model.Horario, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Horario ID cannot be empty")
	}
	s.sanitizeUpdate(u)

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	if _, err := s.requireOperator(ctx, current.CanchaID); err != nil {
		return nil, err
	}

	set := cas.Set{}
	timeChanged := false
	if u.Fecha != nil && *u.Fecha != current.Fecha {
		set["fecha"] = *u.Fecha
		timeChanged = true
	}
	if u.HoraInicio != nil && *u.HoraInicio != current.HoraInicio {
		set["hora_inicio"] = *u.HoraInicio
		timeChanged = true
	}
	if u.HoraFin != nil && *u.HoraFin != current.HoraFin {
		set["hora_fin"] = *u.HoraFin
		timeChanged = true
	}
	if timeChanged && current.Claimed() {
		s.cfg.Log.Warn("Rejected time change on claimed horario",
			"id", id,
			"estado", current.Estado,
		)
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Horario %s is %s and its time range cannot change", id, current.Estado))
	}

	if u.Estado != nil && *u.Estado != current.Estado {
		if current.ReservaID != nil || (current.Estado != model.HorarioDisponible && current.Estado != model.HorarioOcupado) {
			return nil, apperrors.InvalidState(
				fmt.Sprintf("Horario %s is %s and its estado is managed by its reserva", id, current.Estado))
		}
		set["estado"] = *u.Estado
	}

	if err := s.validator.ValidateUpdate(u, current); err != nil {
		s.cfg.Log.Warn("Horario validation failed", "id", id, "error", err)
		return nil, validation.ToAppError(err)
	}

	if len(set) == 0 {
		return current, nil
	}

	expect := cas.Expect{
		cas.FieldVersion: current.Version,
		"estado":         current.Estado,
		"reserva_id":     nil,
	}

	swap := func(ctx context.Context) error {
		if err := s.repo.CompareAndSwap(ctx, id, expect, set); err != nil {
			return s.mapError(err, id)
		}
		return nil
	}

	if timeChanged {
		merged := *current
		if u.Fecha != nil {
			merged.Fecha = *u.Fecha
		}
		if u.HoraInicio != nil {
			merged.HoraInicio = *u.HoraInicio
		}
		if u.HoraFin != nil {
			merged.HoraFin = *u.HoraFin
		}
		interval, _ := merged.Interval()

		err = s.withDayLock(ctx, merged.CanchaID, merged.Fecha, func() error {
			return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
				siblings, err := s.repo.FindByCanchaAndFecha(txCtx, merged.CanchaID, merged.Fecha)
				if err != nil {
					return apperrors.Internal("Failed to check for overlapping horarios", err)
				}
				if other := findOverlap(interval, siblings, id); other != nil {
					return overlapConflict(other)
				}
				return swap(txCtx)
			})
		})
	} else {
		err = swap(ctx)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to update horario", "id", id, "error", err)
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}

	s.cfg.Log.Info("Horario updated successfully",
		"id", id,
		"fecha", updated.Fecha,
		"hora_inicio", updated.HoraInicio,
		"hora_fin", updated.HoraFin,
		"estado", updated.Estado,
	)
	return updated, nil
}

func (s *horarioService) Delete(ctx context.Context, id string) error {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return apperrors.InvalidInput("Horario ID cannot be empty")
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapError(err, id)
	}
	if _, err := s.requireOperator(ctx, current.CanchaID); err != nil {
		return err
	}
	if current.ReservaID != nil || current.Estado == model.HorarioReservado || current.Estado == model.HorarioPagado {
		return apperrors.InvalidState(fmt.Sprintf("Horario %s is claimed by a reserva and cannot be deleted", id))
	}

	expect := cas.Expect{
		cas.FieldVersion: current.Version,
		"reserva_id":     nil,
	}
	if err := s.repo.Delete(ctx, id, expect); err != nil {
		s.cfg.Log.Error("Failed to delete horario", "id", id, "error", err)
		return s.mapError(err, id)
	}

	s.cfg.Log.Info("Horario deleted successfully", "id", id)
	return nil
}

// ClaimForReservation moves a free slot to Reservado on behalf of reservaID.
func (s *horarioService) ClaimForReservation(ctx context.Context, id string, reservaID string) error {
	expect := cas.Expect{
		"estado":     model.HorarioDisponible,
		"reserva_id": nil,
	}
	set := cas.Set{
		"estado":     model.HorarioReservado,
		"reserva_id": reservaID,
	}
	if err := s.repo.CompareAndSwap(ctx, id, expect, set); err != nil {
		s.cfg.Log.Warn("Failed to claim horario",
			"id", id,
			"reserva_id", reservaID,
			"error", err,
		)
		return s.mapError(err, id)
	}

	s.cfg.Log.Info("Horario claimed", "id", id, "reserva_id", reservaID)
	return nil
}

// Release frees a slot held by reservaID and reports whether this call
// changed it. A slot that is already free is left alone; one held by another
// reserva is a conflict.
func (s *horarioService) Release(ctx context.Context, id string, reservaID string) (bool, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, s.mapError(err, id)
	}
	if current.ReservaID == nil {
		return false, nil
	}
	if !current.OwnedBy(reservaID) {
		return false, apperrors.Conflict(fmt.Sprintf("Horario %s is held by another reserva", id))
	}

	expect := cas.Expect{
		"estado":     current.Estado,
		"reserva_id": reservaID,
	}
	set := cas.Set{
		"estado":     model.HorarioDisponible,
		"reserva_id": nil,
	}
	if err := s.repo.CompareAndSwap(ctx, id, expect, set); err != nil {
		return false, s.mapError(err, id)
	}

	s.cfg.Log.Info("Horario released", "id", id, "reserva_id", reservaID)
	return true, nil
}

func (s *horarioService) MarkPaid(ctx context.Context, id string, reservaID string) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapError(err, id)
	}
	if !current.OwnedBy(reservaID) {
		return apperrors.Conflict(fmt.Sprintf("Horario %s is not held by reserva %s", id, reservaID))
	}
	if current.Estado == model.HorarioPagado {
		return nil
	}

	expect := cas.Expect{
		"estado":     model.HorarioReservado,
		"reserva_id": reservaID,
	}
	if err := s.repo.CompareAndSwap(ctx, id, expect, cas.Set{"estado": model.HorarioPagado}); err != nil {
		return s.mapError(err, id)
	}
	return nil
}

// RevertPaid undoes MarkPaid. A slot already back in Reservado is left alone.
func (s *horarioService) RevertPaid(ctx context.Context, id string, reservaID string) error {
	expect := cas.Expect{
		"estado":     model.HorarioPagado,
		"reserva_id": reservaID,
	}
	err := s.repo.CompareAndSwap(ctx, id, expect, cas.Set{"estado": model.HorarioReservado})
	if errors.Is(err, cas.ErrConflict) {
		current, ferr := s.repo.FindByID(ctx, id)
		if ferr == nil && current.OwnedBy(reservaID) && current.Estado == model.HorarioReservado {
			return nil
		}
	}
	if err != nil {
		return s.mapError(err, id)
	}
	return nil
}

// prepareNew assigns the id and initial state and validates h.
func (s *horarioService) prepareNew(h *model.Horario) error {
	if h.Estado == "" {
		h.Estado = model.HorarioDisponible
	}
	if h.Estado != model.HorarioDisponible && h.Estado != model.HorarioOcupado {
		return apperrors.Validation("Horarios can only be created Disponible or Ocupado", map[string]any{
			"estado": h.Estado,
		})
	}
	h.ReservaID = nil
	h.ID = uuid.New().String()

	if err := s.validator.Validate(h); err != nil {
		return validation.ToAppError(err)
	}
	return nil
}

func (s *horarioService) requireOperator(ctx context.Context, canchaID string) (*model.Cancha, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	cancha, err := s.canchas.FindByID(ctx, canchaID)
	if err != nil {
		if errors.Is(err, canchaerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Cancha", canchaID)
		}
		return nil, apperrors.Internal("Failed to retrieve cancha", err)
	}

	if !caller.CanOperate(cancha.CentroID) {
		s.cfg.Log.Warn("Caller cannot manage horarios of this centro",
			"user_id", caller.UserID,
			"centro_id", cancha.CentroID,
		)
		return nil, apperrors.Forbidden("Only operators of the centro can manage its horarios")
	}
	return cancha, nil
}

// withDayLock serialises overlap checks for one cancha and fecha across
// replicas.
func (s *horarioService) withDayLock(ctx context.Context, canchaID, fecha string, fn func() error) error {
	key := repository.LockKey(canchaID, fecha)
	owner := uuid.New().String()

	if err := s.locks.Acquire(ctx, key, owner, dayLockTTL); err != nil {
		if errors.Is(err, horarioerrors.ErrLocked) {
			return apperrors.ConcurrentModification("Horarios", key)
		}
		return apperrors.Internal("Failed to lock horarios", err)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), key, owner); err != nil {
			s.cfg.Log.Warn("Failed to release horario lock", "key", key, "error", err)
		}
	}()

	return fn()
}

func (s *horarioService) mapError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, horarioerrors.ErrNotFound):
		return apperrors.NotFoundWithID("Horario", id)
	case errors.Is(err, cas.ErrConflict):
		return apperrors.ConcurrentModification("Horario", id)
	case errors.Is(err, horarioerrors.ErrDuplicate):
		return apperrors.Conflict("Horario with the same cancha, fecha and times already exists")
	default:
		return apperrors.Internal("Failed to access horarios", err)
	}
}

func (s *horarioService) sanitize(h *model.Horario) {
	h.CanchaID = sanitizer.NormalizeID(h.CanchaID)
	h.Fecha = sanitizer.NormalizeFecha(h.Fecha)
	h.HoraInicio = sanitizer.NormalizeHora(h.HoraInicio)
	h.HoraFin = sanitizer.NormalizeHora(h.HoraFin)
}

func (s *horarioService) sanitizeUpdate(u *model.HorarioUpdate) {
	if u.Fecha != nil {
		v := sanitizer.NormalizeFecha(*u.Fecha)
		u.Fecha = &v
	}
	if u.HoraInicio != nil {
		v := sanitizer.NormalizeHora(*u.HoraInicio)
		u.HoraInicio = &v
	}
	if u.HoraFin != nil {
		v := sanitizer.NormalizeHora(*u.HoraFin)
		u.HoraFin = &v
	}
}

// findOverlap returns the first sibling, other than excludeID, whose interval
// intersects candidate.
func findOverlap(candidate model.Interval, siblings []*model.Horario, excludeID string) *model.Horario {
	for _, other := range siblings {
		if other.ID == excludeID {
			continue
		}
		iv, err := other.Interval()
		if err != nil {
			continue
		}
		if candidate.Overlaps(iv) {
			return other
		}
	}
	return nil
}

func findExact(h *model.Horario, siblings []*model.Horario) *model.Horario {
	for _, other := range siblings {
		if other.CanchaID == h.CanchaID && other.Fecha == h.Fecha &&
			other.HoraInicio == h.HoraInicio && other.HoraFin == h.HoraFin {
			return other
		}
	}
	return nil
}

func overlapConflict(other *model.Horario) error {
	return apperrors.Conflict(fmt.Sprintf("Horario overlaps existing horario %s (%s-%s)",
		other.ID, other.HoraInicio, other.HoraFin)).WithDetails(map[string]any{
		"conflicting_id": other.ID,
	})
}

func entryError(index int, h *model.Horario, err error) model.BulkEntryError {
	appErr := apperrors.AsAppError(err)
	return model.BulkEntryError{
		Index:   index,
		Horario: h,
		Code:    appErr.Code,
		Reason:  appErr.Message,
	}
}
