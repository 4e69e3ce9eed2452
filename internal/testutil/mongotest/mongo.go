// Package mongotest connects tests to a real MongoDB. Tests using it are
// skipped unless MONGO_TEST_URI is set.
package mongotest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	migrations "canchas/internal/migrations/mongo"
	"canchas/pkg/client"
	"canchas/pkg/config"
	"canchas/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const EnvMongoTestURI = "MONGO_TEST_URI"

// Config returns a configuration bound to a fresh, migrated database. The
// database is dropped when the test finishes.
func Config(t *testing.T) *config.Config {
	t.Helper()

	uri := os.Getenv(EnvMongoTestURI)
	if uri == "" {
		t.Skipf("%s not set, skipping MongoDB test", EnvMongoTestURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	dbName := "canchas_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	log := logger.Nop()

	if err := migrations.RunMigration(ctx, mc.Database(dbName), log); err != nil {
		t.Fatalf("failed to migrate %s: %v", dbName, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := mc.Database(dbName).Drop(ctx); err != nil {
			t.Logf("warning: failed to drop %s: %v", dbName, err)
		}
		if err := mc.Disconnect(ctx); err != nil {
			t.Logf("warning: failed to disconnect from MongoDB: %v", err)
		}
	})

	c := client.NewClient()
	c.Mongo = mc

	return &config.Config{
		MongoURI:          uri,
		MongoDatabaseName: dbName,
		MongoConnTimeout:  10 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		Log:               log,
		Client:            c,
	}
}
