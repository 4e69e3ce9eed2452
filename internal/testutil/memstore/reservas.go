package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	reservaerrors "canchas/internal/reservas/errors"
	"canchas/pkg/cas"
	"canchas/pkg/model"
)

type Reservas struct {
	*Collection[model.Reserva]
}

func NewReservas() *Reservas {
	return &Reservas{Collection: NewCollection[model.Reserva]()}
}

func (s *Reservas) Create(_ context.Context, r *model.Reserva) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1
	if err := s.Insert(r); err != nil {
		if errors.Is(err, cas.ErrDuplicate) {
			return reservaerrors.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Reservas) FindByID(_ context.Context, id string) (*model.Reserva, error) {
	r, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", reservaerrors.ErrNotFound, id)
	}
	return r, nil
}

func (s *Reservas) FindByUser(_ context.Context, userID string, limit int, offset int64) ([]*model.Reserva, error) {
	found := s.Find(func(r *model.Reserva) bool { return r.UserID == userID })
	sort.SliceStable(found, func(i, j int) bool { return found[i].CreatedAt.After(found[j].CreatedAt) })
	return page(found, limit, offset), nil
}

func (s *Reservas) CountByUser(_ context.Context, userID string) (int64, error) {
	found := s.Find(func(r *model.Reserva) bool { return r.UserID == userID })
	return int64(len(found)), nil
}

func (s *Reservas) FindPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]*model.Reserva, error) {
	found := s.Find(func(r *model.Reserva) bool {
		return r.Estado == model.ReservaPendiente && r.CreatedAt.Before(cutoff)
	})
	sort.SliceStable(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	return page(found, limit, 0), nil
}

func (s *Reservas) CompareAndSwap(_ context.Context, id string, expect cas.Expect, set cas.Set) error {
	return reservaError(s.Swap(id, expect, set), id)
}

func (s *Reservas) Delete(_ context.Context, id string, expect cas.Expect) error {
	return reservaError(s.Collection.Delete(id, expect), id)
}

func reservaError(err error, id string) error {
	switch {
	case errors.Is(err, cas.ErrNotFound):
		return fmt.Errorf("%w: %s", reservaerrors.ErrNotFound, id)
	case errors.Is(err, cas.ErrDuplicate):
		return reservaerrors.ErrDuplicate
	}
	return err
}
