package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	canchaerrors "canchas/internal/canchas/errors"
	horarioerrors "canchas/internal/horarios/errors"
	"canchas/pkg/cas"
	mongotx "canchas/pkg/db/mongo"
	"canchas/pkg/model"
)

type Horarios struct {
	*Collection[model.Horario]
	tx mongotx.TransactionManager
}

func NewHorarios() *Horarios {
	return &Horarios{
		Collection: NewCollection[model.Horario]([]string{"cancha_id", "fecha", "hora_inicio", "hora_fin"}),
		tx:         NewTxManager(),
	}
}

func (s *Horarios) Create(_ context.Context, h *model.Horario) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	h.CreatedAt = now
	h.UpdatedAt = now
	h.Version = 1
	if err := s.Insert(h); err != nil {
		if errors.Is(err, cas.ErrDuplicate) {
			return horarioerrors.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Horarios) FindByID(_ context.Context, id string) (*model.Horario, error) {
	h, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", horarioerrors.ErrNotFound, id)
	}
	return h, nil
}

func (s *Horarios) FindByIDs(_ context.Context, ids []string) ([]*model.Horario, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return s.Find(func(h *model.Horario) bool { return want[h.ID] }), nil
}

func (s *Horarios) FindByCanchaAndFecha(_ context.Context, canchaID string, fecha string) ([]*model.Horario, error) {
	out := s.Find(func(h *model.Horario) bool {
		return h.CanchaID == canchaID && h.Fecha == fecha
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].HoraInicio < out[j].HoraInicio })
	return out, nil
}

func (s *Horarios) CompareAndSwap(_ context.Context, id string, expect cas.Expect, set cas.Set) error {
	return horarioError(s.Swap(id, expect, set), id)
}

func (s *Horarios) Delete(_ context.Context, id string, expect cas.Expect) error {
	return horarioError(s.Collection.Delete(id, expect), id)
}

func (s *Horarios) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return s.tx.ExecuteTransaction(ctx, fn)
}

func horarioError(err error, id string) error {
	switch {
	case errors.Is(err, cas.ErrNotFound):
		return fmt.Errorf("%w: %s", horarioerrors.ErrNotFound, id)
	case errors.Is(err, cas.ErrDuplicate):
		return horarioerrors.ErrDuplicate
	}
	return err
}

type DayLocks struct {
	mu    sync.Mutex
	locks map[string]model.DayLock
}

func NewDayLocks() *DayLocks {
	return &DayLocks{locks: map[string]model.DayLock{}}
}

func (l *DayLocks) Acquire(_ context.Context, key string, owner string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := l.locks[key]; ok && existing.ExpiresAt.After(now) {
		return horarioerrors.ErrLocked
	}
	l.locks[key] = model.DayLock{ID: key, Owner: owner, ExpiresAt: now.Add(ttl), CreatedAt: now}
	return nil
}

func (l *DayLocks) Release(_ context.Context, key string, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.locks[key]; ok && existing.Owner == owner {
		delete(l.locks, key)
	}
	return nil
}

// Held reports whether a live lock exists for key.
func (l *DayLocks) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	existing, ok := l.locks[key]
	return ok && existing.ExpiresAt.After(time.Now().UTC())
}

type Canchas struct {
	mu      sync.Mutex
	canchas map[string]model.Cancha
}

func NewCanchas(canchas ...model.Cancha) *Canchas {
	s := &Canchas{canchas: map[string]model.Cancha{}}
	for _, c := range canchas {
		s.canchas[c.ID] = c
	}
	return s
}

func (s *Canchas) FindByID(_ context.Context, id string) (*model.Cancha, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.canchas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", canchaerrors.ErrNotFound, id)
	}
	return &c, nil
}
