package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	horarioerrors "canchas/internal/horarios/errors"
	"canchas/pkg/cas"
	"canchas/pkg/config"
	mongotx "canchas/pkg/db/mongo"
	"canchas/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Horarios"
)

type HorarioRepository interface {
	Create(ctx context.Context, h *model.Horario) error
	FindByID(ctx context.Context, id string) (*model.Horario, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Horario, error)
	FindByCanchaAndFecha(ctx context.Context, canchaID string, fecha string) ([]*model.Horario, error)
	CompareAndSwap(ctx context.Context, id string, expect cas.Expect, set cas.Set) error
	Delete(ctx context.Context, id string, expect cas.Expect) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoHorarioRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	guard      *cas.Guard
	txManager  mongotx.TransactionManager
}

func NewMongoHorarioRepository(cfg *config.Config, txManager mongotx.TransactionManager) HorarioRepository {
	collection := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName)
	return &mongoHorarioRepository{
		cfg:        cfg,
		collection: collection,
		guard:      cas.NewGuard(collection),
		txManager:  txManager,
	}
}

// withTimeout leaves session contexts untouched: wrapping a SessionContext
// would detach the operation from its transaction.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoHorarioRepository) Create(ctx context.Context, h *model.Horario) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	h.CreatedAt = now
	h.UpdatedAt = now
	h.Version = 1

	if err := r.guard.Insert(ctx, h); err != nil {
		if errors.Is(err, cas.ErrDuplicate) {
			return horarioerrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create horario: %w", err)
	}
	return nil
}

func (r *mongoHorarioRepository) FindByID(ctx context.Context, id string) (*model.Horario, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var h model.Horario
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&h)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", horarioerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find horario: %w", err)
	}
	return &h, nil
}

// FindByIDs returns the horarios that exist, in no particular order.
func (r *mongoHorarioRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Horario, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query horarios: %w", err)
	}
	defer cursor.Close(ctx)

	var horarios []*model.Horario
	if err = cursor.All(ctx, &horarios); err != nil {
		return nil, fmt.Errorf("failed to decode horarios: %w", err)
	}
	return horarios, nil
}

func (r *mongoHorarioRepository) FindByCanchaAndFecha(ctx context.Context, canchaID string, fecha string) ([]*model.Horario, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"cancha_id": canchaID, "fecha": fecha}
	opts := options.Find().SetSort(bson.D{{Key: "hora_inicio", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query horarios: %w", err)
	}
	defer cursor.Close(ctx)

	var horarios []*model.Horario
	if err = cursor.All(ctx, &horarios); err != nil {
		return nil, fmt.Errorf("failed to decode horarios: %w", err)
	}
	return horarios, nil
}

func (r *mongoHorarioRepository) CompareAndSwap(ctx context.Context, id string, expect cas.Expect, set cas.Set) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return mapGuardError(r.guard.Swap(ctx, id, expect, set), id)
}

func (r *mongoHorarioRepository) Delete(ctx context.Context, id string, expect cas.Expect) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return mapGuardError(r.guard.Delete(ctx, id, expect), id)
}

func (r *mongoHorarioRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func mapGuardError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cas.ErrNotFound):
		return fmt.Errorf("%w: %s", horarioerrors.ErrNotFound, id)
	case errors.Is(err, cas.ErrDuplicate):
		return horarioerrors.ErrDuplicate
	default:
		return err
	}
}
