package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	canchaerrors "canchas/internal/canchas/errors"
	canchasrepo "canchas/internal/canchas/repository"
	cuponservice "canchas/internal/cupones/service"
	"canchas/internal/events"
	horarioservice "canchas/internal/horarios/service"
	"canchas/internal/pricing"
	reservaerrors "canchas/internal/reservas/errors"
	"canchas/internal/reservas/repository"
	"canchas/internal/reservas/validator"
	"canchas/pkg/cas"
	"canchas/pkg/config"
	mongotx "canchas/pkg/db/mongo"
	apperrors "canchas/pkg/errors"
	"canchas/pkg/identity"
	"canchas/pkg/model"
	"canchas/pkg/saga"
	"canchas/pkg/sanitizer"
	"canchas/pkg/validation"

	"github.com/google/uuid"
)

type ReservaService interface {
	Create(ctx context.Context, req *model.ReservaCreate) (*model.Reserva, error)
	GetByID(ctx context.Context, id string) (*model.Reserva, error)
	ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reserva, int64, error)
	Update(ctx context.Context, id string, req *model.ReservaUpdate) (*model.Reserva, error)
	ChangeState(ctx context.Context, id string, estado model.EstadoReserva) (*model.Reserva, error)
	Cancel(ctx context.Context, id string) (*model.Reserva, error)
	ConfirmPayment(ctx context.Context, id string) error
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// reservaService orchestrates horarios, cupones and pricing. Every command
// that writes more than one record runs as a saga inside a transaction:
// atomic when the store supports transactions, compensated otherwise.
type reservaService struct {
	repo      repository.ReservaRepository
	horarios  horarioservice.HorarioService
	cupones   cuponservice.CuponService
	canchas   canchasrepo.CanchaRepository
	tx        mongotx.TransactionManager
	publisher events.Publisher
	validator *validator.ReservaValidator
	cfg       *config.Config
}

func NewReservaService(
	repo repository.ReservaRepository,
	horarios horarioservice.HorarioService,
	cupones cuponservice.CuponService,
	canchas canchasrepo.CanchaRepository,
	tx mongotx.TransactionManager,
	publisher events.Publisher,
	validator *validator.ReservaValidator,
	cfg *config.Config,
) ReservaService {
	return &reservaService{
		repo:      repo,
		horarios:  horarios,
		cupones:   cupones,
		canchas:   canchas,
		tx:        tx,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *reservaService) Create(ctx context.Context, req *model.ReservaCreate) (*model.Reserva, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	req.CanchaID = sanitizer.NormalizeID(req.CanchaID)
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Reserva validation failed", "user_id", caller.UserID, "error", err)
		return nil, validation.ToAppError(err)
	}
	ids := sanitizer.NormalizeIDs(req.HorarioIDs)

	codes := req.Codes()
	if len(codes) > 1 {
		return nil, apperrors.Validation("Only one codigo promocional can be applied per reserva", map[string]any{
			"codigos": codes,
		})
	}

	cancha, err := s.cancha(ctx, req.CanchaID)
	if err != nil {
		return nil, err
	}
	if req.Total != nil && !caller.CanOperate(cancha.CentroID) {
		return nil, apperrors.Forbidden("Only operators of the centro can set the total of a reserva")
	}

	horarios, err := s.horarios.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	fecha, err := s.checkSlots(horarios, cancha.ID, "")
	if err != nil {
		return nil, err
	}

	total, manual, err := s.baseTotal(horarios, cancha, req.Total)
	if err != nil {
		return nil, err
	}

	var cupon *model.CuponDescuento
	if len(codes) == 1 {
		if cupon, err = s.cupones.Resolve(ctx, cancha.CentroID, codes[0]); err != nil {
			return nil, err
		}
		if cupon.CentroID != cancha.CentroID {
			return nil, apperrors.Validation("Cupon does not belong to the centro of this cancha", nil)
		}
	}

	reserva := &model.Reserva{
		ID:          uuid.New().String(),
		CanchaID:    cancha.ID,
		CentroID:    cancha.CentroID,
		UserID:      caller.UserID,
		HorarioIDs:  ids,
		Fecha:       fecha,
		Estado:      model.ReservaPendiente,
		Total:       total,
		TotalManual: manual,
	}

	err = s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		sg := saga.New("create-reserva", s.cfg.Log)

		if cupon != nil {
			sg.Add(saga.NewStep("apply-cupon",
				func(ctx context.Context) error {
					discount, err := s.cupones.Apply(ctx, cupon, caller.UserID, total)
					if err != nil {
						return err
					}
					reserva.DescuentoAplicado = pricing.Applied(total, discount)
					reserva.Total = pricing.Final(total, discount)
					reserva.CodigoPromoAplicado = &cupon.Codigo
					reserva.CuponID = &cupon.ID
					return nil
				},
				func(ctx context.Context) error {
					return s.cupones.Revert(ctx, cupon.ID, caller.UserID)
				},
			))
		}

		sg.Add(saga.NewStep("insert-reserva",
			func(ctx context.Context) error {
				if err := s.repo.Create(ctx, reserva); err != nil {
					return s.mapError(err, reserva.ID)
				}
				return nil
			},
			func(ctx context.Context) error {
				return s.repo.Delete(ctx, reserva.ID, cas.Expect{})
			},
		))

		for _, id := range ids {
			sg.Add(s.claimStep(id, reserva.ID))
		}

		return sg.Run(txCtx, !s.tx.Atomic())
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to create reserva",
			"user_id", caller.UserID,
			"cancha_id", cancha.ID,
			"horario_ids", ids,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Reserva created successfully",
		"id", reserva.ID,
		"user_id", reserva.UserID,
		"cancha_id", reserva.CanchaID,
		"fecha", reserva.Fecha,
		"total", reserva.Total,
		"descuento", reserva.DescuentoAplicado,
	)
	s.publish(ctx, events.ReservaCreada, reserva)
	return reserva, nil
}

func (s *reservaService) GetByID(ctx context.Context, id string) (*model.Reserva, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(r.UserID, r.CentroID) {
		return nil, apperrors.Forbidden("Reserva belongs to another user")
	}
	return r, nil
}

func (s *reservaService) ListByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reserva, int64, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return nil, 0, apperrors.Unauthorized("Authentication required")
	}
	userID = sanitizer.NormalizeID(userID)
	if userID == "" {
		userID = caller.UserID
	}
	if userID != caller.UserID && !caller.IsPrivileged() {
		return nil, 0, apperrors.Forbidden("Reservas of other users are not visible")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		count            int64
		reservas         []*model.Reserva
		errCount, errFnd error
		wg               sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		if count, err = s.repo.CountByUser(ctx, userID); err != nil {
			s.cfg.Log.Error("Failed to count reservas", "user_id", userID, "error", err)
			errCount = apperrors.Internal("Failed to count reservas", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		if reservas, err = s.repo.FindByUser(ctx, userID, limit, offset); err != nil {
			s.cfg.Log.Error("Failed to list reservas", "user_id", userID, "error", err)
			errFnd = apperrors.Internal("Failed to retrieve reservas", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFnd != nil {
		return nil, 0, errFnd
	}
	return reservas, count, nil
}

// Update reconciles the slot set of a Pendiente reserva: slots no longer
// requested are released, new ones claimed, and the total recomputed. A
// previously applied cupon is re-priced without consuming another use.
func (s *reservaService) Update(ctx context.Context, id string, req *model.ReservaUpdate) (*model.Reserva, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if err := s.validator.ValidateUpdate(req); err != nil {
		return nil, validation.ToAppError(err)
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(current.UserID, current.CentroID) {
		return nil, apperrors.Forbidden("Reserva belongs to another user")
	}
	if current.Estado != model.ReservaPendiente {
		return nil, apperrors.InvalidState(fmt.Sprintf("Reserva %s is %s and can no longer be modified", id, current.Estado))
	}
	if req.Total != nil && !caller.CanOperate(current.CentroID) {
		return nil, apperrors.Forbidden("Only operators of the centro can set the total of a reserva")
	}

	ids := current.HorarioIDs
	if len(req.HorarioIDs) > 0 {
		ids = sanitizer.NormalizeIDs(req.HorarioIDs)
	}
	toRelease := difference(current.HorarioIDs, ids)
	toClaim := difference(ids, current.HorarioIDs)

	cancha, err := s.cancha(ctx, current.CanchaID)
	if err != nil {
		return nil, err
	}
	horarios, err := s.horarios.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	fecha, err := s.checkSlots(horarios, cancha.ID, current.ID)
	if err != nil {
		return nil, err
	}

	total, manual, err := s.baseTotal(horarios, cancha, req.Total)
	if err != nil {
		return nil, err
	}
	discount := current.DescuentoAplicado
	if current.CuponID != nil {
		cupon, err := s.cupones.Lookup(ctx, *current.CuponID)
		switch {
		case err == nil:
			discount = pricing.Discount(total, cupon)
		case apperrors.HasCode(err, apperrors.CodeNotFound):
			// The cupon was deleted after use; the recorded discount stands.
			s.cfg.Log.Warn("Cupon of reserva no longer exists, keeping applied discount",
				"id", id,
				"cupon_id", *current.CuponID,
				"descuento", discount,
			)
		default:
			return nil, err
		}
	}

	set := cas.Set{
		"horario_ids":        ids,
		"fecha":              fecha,
		"total":              pricing.Final(total, discount),
		"descuento_aplicado": pricing.Applied(total, discount),
		"total_manual":       manual,
	}

	err = s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		sg := saga.New("update-reserva", s.cfg.Log)
		for _, hid := range toClaim {
			sg.Add(s.claimStep(hid, id))
		}
		for _, hid := range toRelease {
			sg.Add(s.releaseStep(hid, id, model.HorarioReservado))
		}
		sg.Add(saga.NewStep("swap-reserva",
			func(ctx context.Context) error {
				expect := cas.Expect{cas.FieldVersion: current.Version, "estado": model.ReservaPendiente}
				if err := s.repo.CompareAndSwap(ctx, id, expect, set); err != nil {
					return s.mapError(err, id)
				}
				return nil
			},
			nil,
		))
		return sg.Run(txCtx, !s.tx.Atomic())
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to update reserva", "id", id, "error", err)
		return nil, err
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Reserva updated successfully",
		"id", id,
		"claimed", toClaim,
		"released", toRelease,
		"total", updated.Total,
	)
	s.publish(ctx, events.ReservaActualizada, updated)
	return updated, nil
}

// ChangeState applies one transition of the reserva state machine. Staying in
// the same state is rejected like any other illegal transition.
func (s *reservaService) ChangeState(ctx context.Context, id string, estado model.EstadoReserva) (*model.Reserva, error) {
	caller, ok := identity.FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if err := s.validator.ValidateEstado(&model.ReservaEstadoChange{Estado: estado}); err != nil {
		return nil, validation.ToAppError(err)
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch estado {
	case model.ReservaPagado:
		if !caller.CanOperate(current.CentroID) {
			return nil, apperrors.Forbidden("Only operators of the centro can mark a reserva as paid")
		}
	default:
		if !caller.CanAccess(current.UserID, current.CentroID) {
			return nil, apperrors.Forbidden("Reserva belongs to another user")
		}
	}

	if !current.Estado.CanTransitionTo(estado) {
		return nil, apperrors.InvalidState(fmt.Sprintf("Reserva %s cannot move from %s to %s", id, current.Estado, estado))
	}

	switch estado {
	case model.ReservaPagado:
		err = s.markPaid(ctx, current)
	case model.ReservaCancelado:
		err = s.cancel(ctx, current)
	}
	if err != nil {
		s.cfg.Log.Warn("Failed to change reserva estado",
			"id", id,
			"from", current.Estado,
			"to", estado,
			"error", err,
		)
		return nil, err
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Reserva estado changed", "id", id, "from", current.Estado, "to", estado)

	eventType := events.ReservaPagada
	if estado == model.ReservaCancelado {
		eventType = events.ReservaCancelada
	}
	s.publish(ctx, eventType, updated)
	return updated, nil
}

func (s *reservaService) Cancel(ctx context.Context, id string) (*model.Reserva, error) {
	return s.ChangeState(ctx, id, model.ReservaCancelado)
}

// ConfirmPayment marks a reserva paid on behalf of the payment provider.
// Confirming an already paid reserva is a no-op.
func (s *reservaService) ConfirmPayment(ctx context.Context, id string) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if current.Estado == model.ReservaPagado {
		return nil
	}
	_, err = s.ChangeState(ctx, id, model.ReservaPagado)
	return err
}

// ExpirePending cancels Pendiente reservas created before cutoff and returns
// how many were cancelled. Failures are logged and skipped.
func (s *reservaService) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.FindPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, apperrors.Internal("Failed to find pending reservas", err)
	}

	ctx = identity.WithIdentity(ctx, identity.System())
	expired := 0
	for _, r := range stale {
		if err := s.cancel(ctx, r); err != nil {
			s.cfg.Log.Warn("Failed to expire reserva", "id", r.ID, "error", err)
			continue
		}
		expired++
		r.Estado = model.ReservaCancelado
		s.publish(ctx, events.ReservaCancelada, r)
	}
	return expired, nil
}

// markPaid moves every slot to Pagado and then the reserva itself.
func (s *reservaService) markPaid(ctx context.Context, r *model.Reserva) error {
	return s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		sg := saga.New("pay-reserva", s.cfg.Log)
		for _, hid := range r.HorarioIDs {
			sg.Add(saga.NewStep("mark-paid-"+hid,
				func(ctx context.Context) error { return s.horarios.MarkPaid(ctx, hid, r.ID) },
				func(ctx context.Context) error { return s.horarios.RevertPaid(ctx, hid, r.ID) },
			))
		}
		sg.Add(s.swapEstadoStep(r, model.ReservaPagado))
		return sg.Run(txCtx, !s.tx.Atomic())
	})
}

// cancel releases every slot still held and then marks the reserva
// Cancelado. The cupon use stays recorded.
func (s *reservaService) cancel(ctx context.Context, r *model.Reserva) error {
	slotEstado := model.HorarioReservado
	if r.Estado == model.ReservaPagado {
		slotEstado = model.HorarioPagado
	}

	return s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		sg := saga.New("cancel-reserva", s.cfg.Log)
		for _, hid := range r.HorarioIDs {
			sg.Add(s.releaseStep(hid, r.ID, slotEstado))
		}
		sg.Add(s.swapEstadoStep(r, model.ReservaCancelado))
		return sg.Run(txCtx, !s.tx.Atomic())
	})
}

func (s *reservaService) swapEstadoStep(r *model.Reserva, to model.EstadoReserva) *saga.Step {
	return saga.NewStep("swap-estado",
		func(ctx context.Context) error {
			expect := cas.Expect{cas.FieldVersion: r.Version, "estado": r.Estado}
			if err := s.repo.CompareAndSwap(ctx, r.ID, expect, cas.Set{"estado": to}); err != nil {
				return s.mapError(err, r.ID)
			}
			return nil
		},
		nil,
	)
}

func (s *reservaService) claimStep(horarioID, reservaID string) *saga.Step {
	return saga.NewStep("claim-"+horarioID,
		func(ctx context.Context) error { return s.horarios.ClaimForReservation(ctx, horarioID, reservaID) },
		func(ctx context.Context) error {
			_, err := s.horarios.Release(ctx, horarioID, reservaID)
			return err
		},
	)
}

// releaseStep frees a slot; compensation claims it back and restores the
// Pagado estado when the slot had one. A slot that was already free when the
// step ran was freed by someone else and is not claimed back.
func (s *reservaService) releaseStep(horarioID, reservaID string, prior model.EstadoHorario) *saga.Step {
	released := false
	return saga.NewStep("release-"+horarioID,
		func(ctx context.Context) error {
			var err error
			released, err = s.horarios.Release(ctx, horarioID, reservaID)
			return err
		},
		func(ctx context.Context) error {
			if !released {
				return nil
			}
			if err := s.horarios.ClaimForReservation(ctx, horarioID, reservaID); err != nil {
				return err
			}
			// A cancel that won the race owns the outcome: the slot goes back.
			if r, err := s.repo.FindByID(ctx, reservaID); err == nil && r.Estado == model.ReservaCancelado {
				_, err := s.horarios.Release(ctx, horarioID, reservaID)
				return err
			}
			if prior == model.HorarioPagado {
				return s.horarios.MarkPaid(ctx, horarioID, reservaID)
			}
			return nil
		},
	)
}

// checkSlots verifies that every slot belongs to canchaID, shares one fecha
// and is free or already held by reservaID. It returns the common fecha.
func (s *reservaService) checkSlots(horarios []*model.Horario, canchaID, reservaID string) (string, error) {
	fecha := ""
	for _, h := range horarios {
		if h.CanchaID != canchaID {
			return "", apperrors.Validation(fmt.Sprintf("Horario %s does not belong to cancha %s", h.ID, canchaID), map[string]any{
				"horario_id": h.ID,
			})
		}
		if fecha == "" {
			fecha = h.Fecha
		} else if h.Fecha != fecha {
			return "", apperrors.Validation("All horarios of a reserva must be on the same fecha", map[string]any{
				"horario_id": h.ID,
			})
		}
		if reservaID != "" && h.OwnedBy(reservaID) {
			continue
		}
		if h.Claimed() {
			return "", apperrors.Conflict(fmt.Sprintf("Horario %s is not available", h.ID)).WithDetails(map[string]any{
				"horario_id": h.ID,
				"estado":     h.Estado,
			})
		}
	}

	duration, err := pricing.Duration(horarios)
	if err != nil {
		return "", apperrors.Internal("Stored horario has an invalid time range", err)
	}
	if duration < s.cfg.MinReservationDuration || duration > s.cfg.MaxReservationDuration {
		return "", apperrors.Validation(
			fmt.Sprintf("Reserva duration %s must be between %s and %s",
				duration, s.cfg.MinReservationDuration, s.cfg.MaxReservationDuration),
			map[string]any{"duration_minutes": int(duration.Minutes())},
		)
	}
	return fecha, nil
}

// baseTotal is the explicit total when one was supplied, otherwise the
// duration priced at the cancha's hourly rate.
func (s *reservaService) baseTotal(horarios []*model.Horario, cancha *model.Cancha, explicit *float64) (float64, bool, error) {
	if explicit != nil {
		return *explicit, true, nil
	}
	total, err := pricing.Total(horarios, cancha.PrecioPorHora)
	if err != nil {
		return 0, false, apperrors.Internal("Failed to price reserva", err)
	}
	return total, false, nil
}

func (s *reservaService) cancha(ctx context.Context, id string) (*model.Cancha, error) {
	c, err := s.canchas.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, canchaerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Cancha", id)
		}
		return nil, apperrors.Internal("Failed to retrieve cancha", err)
	}
	return c, nil
}

func (s *reservaService) load(ctx context.Context, id string) (*model.Reserva, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Reserva ID cannot be empty")
	}
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return r, nil
}

func (s *reservaService) publish(ctx context.Context, eventType string, r *model.Reserva) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), events.NewReservaEvent(eventType, r)); err != nil {
		s.cfg.Log.Error("Failed to publish reserva event",
			"event_type", eventType,
			"reserva_id", r.ID,
			"error", err,
		)
	}
}

func (s *reservaService) mapError(err error, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, reservaerrors.ErrNotFound):
		return apperrors.NotFoundWithID("Reserva", id)
	case errors.Is(err, cas.ErrConflict):
		return apperrors.ConcurrentModification("Reserva", id)
	case errors.Is(err, reservaerrors.ErrDuplicate):
		return apperrors.Conflict("Reserva already exists")
	default:
		return apperrors.Internal("Failed to access reservas", err)
	}
}

// difference returns the elements of a not present in b, in order.
func difference(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}
