package repository

import (
	"context"
	"fmt"
	"time"

	horarioerrors "canchas/internal/horarios/errors"
	"canchas/pkg/config"
	"canchas/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Horario_locks"

// DayLockRepository provides advisory locks keyed by cancha and fecha.
type DayLockRepository interface {
	Acquire(ctx context.Context, key string, owner string, ttl time.Duration) error
	Release(ctx context.Context, key string, owner string) error
}

type mongoDayLockRepository struct {
	collection *mongo.Collection
}

func NewMongoDayLockRepository(cfg *config.Config) DayLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDayLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

func LockKey(canchaID, fecha string) string {
	return fmt.Sprintf("horario_lock_%s_%s", canchaID, fecha)
}

// Acquire inserts the lock document. An existing lock that has expired is
// removed and the insert retried once; a live one yields ErrLocked.
func (r *mongoDayLockRepository) Acquire(ctx context.Context, key string, owner string, ttl time.Duration) error {
	now := time.Now().UTC()
	lock := &model.DayLock{
		ID:        key,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to acquire horario lock: %w", err)
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}})
	if err != nil {
		return fmt.Errorf("failed to clear expired horario lock: %w", err)
	}
	if res.DeletedCount == 0 {
		return horarioerrors.ErrLocked
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return horarioerrors.ErrLocked
		}
		return fmt.Errorf("failed to acquire horario lock: %w", err)
	}
	return nil
}

func (r *mongoDayLockRepository) Release(ctx context.Context, key string, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release horario lock: %w", err)
	}
	return nil
}
