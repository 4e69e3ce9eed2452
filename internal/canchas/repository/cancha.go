package repository

import (
	"context"
	"errors"
	"fmt"

	canchaerrors "canchas/internal/canchas/errors"
	"canchas/pkg/config"
	"canchas/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "Canchas"

// CanchaRepository is a read-only view of the venue catalog.
type CanchaRepository interface {
	FindByID(ctx context.Context, id string) (*model.Cancha, error)
}

type mongoCanchaRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCanchaRepository(cfg *config.Config) CanchaRepository {
	return &mongoCanchaRepository{
		cfg:        cfg,
		collection: cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Collection(CollectionName),
	}
}

func (r *mongoCanchaRepository) FindByID(ctx context.Context, id string) (*model.Cancha, error) {
	if _, ok := ctx.(mongo.SessionContext); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ReadTimeout)
		defer cancel()
	}

	var c model.Cancha
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", canchaerrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find cancha: %w", err)
	}
	return &c, nil
}
