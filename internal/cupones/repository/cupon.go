package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	cuponerrors "canchas/internal/cupones/errors"
	"canchas/pkg/cas"
	"canchas/pkg/config"
	mongotx "canchas/pkg/db/mongo"
	"canchas/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Cupones"

type CuponRepository interface {
	Create(ctx context.Context, c *model.CuponDescuento) error
	FindByID(ctx context.Context, id string) (*model.CuponDescuento, error)
	FindByCodigo(ctx context.Context, centroID string, codigo string) (*model.CuponDescuento, error)
	FindByCentro(ctx context.Context, centroID string, limit int, offset int64) ([]*model.CuponDescuento, error)
	CountByCentro(ctx context.Context, centroID string) (int64, error)
	CompareAndSwap(ctx context.Context, id string, expect cas.Expect, set cas.Set) error
	Delete(ctx context.Context, id string, expect cas.Expect) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoCuponRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	guard      *cas.Guard
	txManager  mongotx.TransactionManager
}

func NewMongoCuponRepository(cfg *config.Config, txManager mongotx.TransactionManager) CuponRepository {
	collection := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName)
	return &mongoCuponRepository{
		cfg:        cfg,
		collection: collection,
		guard:      cas.NewGuard(collection),
		txManager:  txManager,
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoCuponRepository) Create(ctx context.Context, c *model.CuponDescuento) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1
	if c.UsuariosUsos == nil {
		c.UsuariosUsos = map[string]int{}
	}

	if err := r.guard.Insert(ctx, c); err != nil {
		if errors.Is(err, cas.ErrDuplicate) {
			return cuponerrors.ErrDuplicateCodigo
		}
		return fmt.Errorf("failed to create cupon: %w", err)
	}
	return nil
}

func (r *mongoCuponRepository) FindByID(ctx context.Context, id string) (*model.CuponDescuento, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *mongoCuponRepository) FindByCodigo(ctx context.Context, centroID string, codigo string) (*model.CuponDescuento, error) {
	return r.findOne(ctx, bson.M{"centro_id": centroID, "codigo": codigo}, codigo)
}

func (r *mongoCuponRepository) findOne(ctx context.Context, filter bson.M, key string) (*model.CuponDescuento, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var c model.CuponDescuento
	if err := r.collection.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", cuponerrors.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to find cupon: %w", err)
	}
	return &c, nil
}

func (r *mongoCuponRepository) FindByCentro(ctx context.Context, centroID string, limit int, offset int64) ([]*model.CuponDescuento, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"centro_id": centroID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query cupones: %w", err)
	}
	defer cursor.Close(ctx)

	var cupones []*model.CuponDescuento
	if err = cursor.All(ctx, &cupones); err != nil {
		return nil, fmt.Errorf("failed to decode cupones: %w", err)
	}
	return cupones, nil
}

func (r *mongoCuponRepository) CountByCentro(ctx context.Context, centroID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"centro_id": centroID})
	if err != nil {
		return 0, fmt.Errorf("failed to count cupones: %w", err)
	}
	return count, nil
}

func (r *mongoCuponRepository) CompareAndSwap(ctx context.Context, id string, expect cas.Expect, set cas.Set) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return mapGuardError(r.guard.Swap(ctx, id, expect, set), id)
}

func (r *mongoCuponRepository) Delete(ctx context.Context, id string, expect cas.Expect) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return mapGuardError(r.guard.Delete(ctx, id, expect), id)
}

func (r *mongoCuponRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func mapGuardError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cas.ErrNotFound):
		return fmt.Errorf("%w: %s", cuponerrors.ErrNotFound, id)
	case errors.Is(err, cas.ErrDuplicate):
		return cuponerrors.ErrDuplicateCodigo
	default:
		return err
	}
}
