package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	cuponerrors "canchas/internal/cupones/errors"
	"canchas/pkg/cas"
	mongotx "canchas/pkg/db/mongo"
	"canchas/pkg/model"
)

type Cupones struct {
	*Collection[model.CuponDescuento]
	tx mongotx.TransactionManager
}

func NewCupones() *Cupones {
	return &Cupones{
		Collection: NewCollection[model.CuponDescuento]([]string{"centro_id", "codigo"}),
		tx:         NewTxManager(),
	}
}

func (s *Cupones) Create(_ context.Context, c *model.CuponDescuento) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1
	if c.UsuariosUsos == nil {
		c.UsuariosUsos = map[string]int{}
	}
	if err := s.Insert(c); err != nil {
		if errors.Is(err, cas.ErrDuplicate) {
			return cuponerrors.ErrDuplicateCodigo
		}
		return err
	}
	return nil
}

func (s *Cupones) FindByID(_ context.Context, id string) (*model.CuponDescuento, error) {
	c, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cuponerrors.ErrNotFound, id)
	}
	return c, nil
}

func (s *Cupones) FindByCodigo(_ context.Context, centroID string, codigo string) (*model.CuponDescuento, error) {
	found := s.Find(func(c *model.CuponDescuento) bool {
		return c.CentroID == centroID && c.Codigo == codigo
	})
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", cuponerrors.ErrNotFound, codigo)
	}
	return found[0], nil
}

func (s *Cupones) FindByCentro(_ context.Context, centroID string, limit int, offset int64) ([]*model.CuponDescuento, error) {
	found := s.Find(func(c *model.CuponDescuento) bool { return c.CentroID == centroID })
	sort.SliceStable(found, func(i, j int) bool { return found[i].CreatedAt.After(found[j].CreatedAt) })
	return page(found, limit, offset), nil
}

func (s *Cupones) CountByCentro(ctx context.Context, centroID string) (int64, error) {
	found := s.Find(func(c *model.CuponDescuento) bool { return c.CentroID == centroID })
	return int64(len(found)), nil
}

func (s *Cupones) CompareAndSwap(_ context.Context, id string, expect cas.Expect, set cas.Set) error {
	return cuponError(s.Swap(id, expect, set), id)
}

func (s *Cupones) Delete(_ context.Context, id string, expect cas.Expect) error {
	return cuponError(s.Collection.Delete(id, expect), id)
}

func (s *Cupones) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return s.tx.ExecuteTransaction(ctx, fn)
}

func cuponError(err error, id string) error {
	switch {
	case errors.Is(err, cas.ErrNotFound):
		return fmt.Errorf("%w: %s", cuponerrors.ErrNotFound, id)
	case errors.Is(err, cas.ErrDuplicate):
		return cuponerrors.ErrDuplicateCodigo
	}
	return err
}

func page[T any](items []*T, limit int, offset int64) []*T {
	if offset >= int64(len(items)) {
		return []*T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
