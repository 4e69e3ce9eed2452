package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservaerrors "canchas/internal/reservas/errors"
	"canchas/pkg/cas"
	"canchas/pkg/config"
	"canchas/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Reservas"

type ReservaRepository interface {
	Create(ctx context.Context, r *model.Reserva) error
	FindByID(ctx context.Context, id string) (*model.Reserva, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reserva, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reserva, error)
	CompareAndSwap(ctx context.Context, id string, expect cas.Expect, set cas.Set) error
	Delete(ctx context.Context, id string, expect cas.Expect) error
}

type mongoReservaRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	guard      *cas.Guard
}

func NewMongoReservaRepository(cfg *config.Config) ReservaRepository {
	collection := cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName)
	return &mongoReservaRepository{
		cfg:        cfg,
		collection: collection,
		guard:      cas.NewGuard(collection),
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservaRepository) Create(ctx context.Context, res *model.Reserva) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	res.CreatedAt = now
	res.UpdatedAt = now
	res.Version = 1

	if err := r.guard.Insert(ctx, res); err != nil {
		if errors.Is(err, cas.ErrDuplicate) {
			return reservaerrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create reserva: %w", err)
	}
	return nil
}

func (r *mongoReservaRepository) FindByID(ctx context.Context, id string) (*model.Reserva, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var res model.Reserva
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&res); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", reservaerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find reserva: %w", err)
	}
	return &res, nil
}

func (r *mongoReservaRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reserva, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *mongoReservaRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to count reservas: %w", err)
	}
	return count, nil
}

// FindPendingBefore returns Pendiente reservas created before cutoff, oldest
// first.
func (r *mongoReservaRepository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Reserva, error) {
	filter := bson.M{
		"estado":     model.ReservaPendiente,
		"created_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoReservaRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Reserva, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservas: %w", err)
	}
	defer cursor.Close(ctx)

	var reservas []*model.Reserva
	if err = cursor.All(ctx, &reservas); err != nil {
		return nil, fmt.Errorf("failed to decode reservas: %w", err)
	}
	return reservas, nil
}

func (r *mongoReservaRepository) CompareAndSwap(ctx context.Context, id string, expect cas.Expect, set cas.Set) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return mapGuardError(r.guard.Swap(ctx, id, expect, set), id)
}

func (r *mongoReservaRepository) Delete(ctx context.Context, id string, expect cas.Expect) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return mapGuardError(r.guard.Delete(ctx, id, expect), id)
}

func mapGuardError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cas.ErrNotFound):
		return fmt.Errorf("%w: %s", reservaerrors.ErrNotFound, id)
	case errors.Is(err, cas.ErrDuplicate):
		return reservaerrors.ErrDuplicate
	default:
		return err
	}
}
