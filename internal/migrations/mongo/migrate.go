package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	canchasrepo "canchas/internal/canchas/repository"
	cuponesrepo "canchas/internal/cupones/repository"
	horariosrepo "canchas/internal/horarios/repository"
	"canchas/internal/migrations/mongo/validators"
	reservasrepo "canchas/internal/reservas/repository"
	"canchas/pkg/logger"
)

type Collection struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection with its schema and indexes. The unique
// indexes back the duplicate checks the repositories rely on.
func Collections() []Collection {
	return []Collection{
		{
			Name:      canchasrepo.CollectionName,
			Validator: validators.CanchaValidator,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "centro_id", Value: 1}}},
			},
		},
		{
			Name:      horariosrepo.CollectionName,
			Validator: validators.HorarioValidator,
			Indexes: []mongo.IndexModel{
				{
					Keys: bson.D{
						{Key: "cancha_id", Value: 1},
						{Key: "fecha", Value: 1},
						{Key: "hora_inicio", Value: 1},
						{Key: "hora_fin", Value: 1},
					},
					Options: options.Index().SetUnique(true).SetName("uniq_cancha_fecha_horas"),
				},
				{Keys: bson.D{{Key: "reserva_id", Value: 1}}},
			},
		},
		{
			Name:      horariosrepo.LockCollectionName,
			Validator: validators.HorarioLockValidator,
			Indexes: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "expires_at", Value: 1}},
					Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at"),
				},
			},
		},
		{
			Name:      cuponesrepo.CollectionName,
			Validator: validators.CuponValidator,
			Indexes: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "centro_id", Value: 1}, {Key: "codigo", Value: 1}},
					Options: options.Index().SetUnique(true).SetName("uniq_centro_codigo"),
				},
				{Keys: bson.D{{Key: "centro_id", Value: 1}, {Key: "created_at", Value: -1}}},
			},
		},
		{
			Name:      reservasrepo.CollectionName,
			Validator: validators.ReservaValidator,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
				{Keys: bson.D{{Key: "estado", Value: 1}, {Key: "created_at", Value: 1}}},
			},
		},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
		log.Info("Collection ready", "collection", def.Name, "indexes", len(def.Indexes))
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	_, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	return err
}
